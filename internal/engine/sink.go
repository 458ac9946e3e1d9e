package engine

import "time"

// Handle is whatever the presentation side produced for an element. The
// engine stores it and hands it back unchanged.
type Handle = any

// TargetKind says which registry a target came from.
type TargetKind string

const (
	TargetBlock TargetKind = "block"
	TargetLine  TargetKind = "line"
)

// Target names a registered element together with its handle.
type Target struct {
	Kind   TargetKind
	ID     string
	Handle Handle
}

// Class is a named visual state applied to a target.
type Class string

const (
	ClassHighlightHover      Class = "highlight-hover"
	ClassHighlightPermanent  Class = "highlight-permanent"
	ClassLineHover           Class = "line-hover"
	ClassLineSelected        Class = "line-selected"
	ClassLineHoverOnSelected Class = "line-hover-on-selected"

	// ClassHighlight is toggled by declarative block actions and is not
	// part of the selection state.
	ClassHighlight Class = "highlight"
)

// EffectKind names a presentation effect.
type EffectKind string

const (
	EffectShow      EffectKind = "show"
	EffectHide      EffectKind = "hide"
	EffectOpacity   EffectKind = "opacity"
	EffectAnimate   EffectKind = "animate"
	EffectScroll    EffectKind = "scroll"
	EffectDraggable EffectKind = "draggable"
)

// Phase marks the start or the settled end of a timed effect.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// Animation names the transition used by an effect.
type Animation string

const (
	AnimationFade  Animation = "fade"
	AnimationSlide Animation = "slide"
	AnimationScale Animation = "scale"
	AnimationShake Animation = "shake"
	AnimationPulse Animation = "pulse"
)

// ParseAnimation maps a name to a show/hide animation, defaulting to fade.
func ParseAnimation(name string) Animation {
	switch Animation(name) {
	case AnimationSlide, AnimationScale:
		return Animation(name)
	default:
		return AnimationFade
	}
}

// Effect is a presentation instruction. Only the fields relevant to Kind
// are set.
type Effect struct {
	Kind      EffectKind
	Phase     Phase
	Animation Animation
	Duration  time.Duration
	Easing    string
	Opacity   float64
	Smooth    bool
	Enabled   bool
}

// Sink applies engine decisions to whatever renders the lesson.
//
// Sink methods are called with the engine lock held and must not call back
// into the engine.
type Sink interface {
	AddClass(t Target, c Class)
	RemoveClass(t Target, c Class)
	ShowDescription(content string)
	ShowPlaceholder()
	ApplyEffect(t Target, fx Effect)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) AddClass(Target, Class)      {}
func (NopSink) RemoveClass(Target, Class)   {}
func (NopSink) ShowDescription(string)      {}
func (NopSink) ShowPlaceholder()            {}
func (NopSink) ApplyEffect(Target, Effect) {}
