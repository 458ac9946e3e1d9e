package server

import (
	"github.com/livetemplate/codelesson"
	"github.com/livetemplate/codelesson/internal/builder"
	"github.com/livetemplate/codelesson/internal/engine"
)

// Client actions.
const (
	ActionBlockHover  = "block.hover"
	ActionBlockClick  = "block.click"
	ActionBlockFocus  = "block.focus"
	ActionBlockAction = "block.action"
	ActionBlockDrag   = "block.drag"
	ActionBlockEffect = "block.effect"
	ActionLineHover   = "line.hover"
	ActionLineClick   = "line.click"
	ActionClear       = "clear"
	ActionStepNext    = "step.next"
	ActionStepPrev    = "step.prev"
	ActionStepJump    = "step.jump"
)

// ClientMessage is sent by the browser for every pointer event and
// navigation request.
type ClientMessage struct {
	Action    string `json:"action"`
	ID        string `json:"id,omitempty"`
	Enter     bool   `json:"enter,omitempty"`
	Event     string `json:"event,omitempty"`
	Index     int    `json:"index,omitempty"`
	Phase     string `json:"phase,omitempty"`     // block.drag: start or end
	Effect    string `json:"effect,omitempty"`    // block.effect: show, hide, toggle, blink, shake, pulse, scroll
	Animation string `json:"animation,omitempty"` // block.effect: fade, slide or scale
	Times     int    `json:"times,omitempty"`     // block.effect blink
}

// Server message types.
const (
	MessageHello  = "hello"
	MessageStep   = "step"
	MessagePatch  = "patch"
	MessageReload = "reload"
	MessageError  = "error"
)

// ServerMessage is sent to the browser.
type ServerMessage struct {
	Type    string    `json:"type"`
	Session string    `json:"session,omitempty"`
	Step    *StepView `json:"step,omitempty"`
	Ops     []Op      `json:"ops,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// StepView is a rendered step plus navigation state.
type StepView struct {
	LessonID    string              `json:"lessonId"`
	LessonTitle string              `json:"lessonTitle"`
	Position    codelesson.Position `json:"position"`
	Current     int                 `json:"current"`
	Total       int                 `json:"total"`
	HasPrev     bool                `json:"hasPrev"`
	HasNext     bool                `json:"hasNext"`
	BigTitle    string              `json:"bigTitle"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	DisplayHTML string              `json:"displayHtml"`
	CodeHTML    string              `json:"codeHtml"`
	Chapters    []Chapter           `json:"chapters"`
}

// Chapter is one big step in the navigation menu.
type Chapter struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Current bool   `json:"current,omitempty"`
}

// Patch operations.
const (
	OpAddClass    = "addClass"
	OpRemoveClass = "removeClass"
	OpDescription = "description"
	OpPlaceholder = "placeholder"
	OpEffect      = "effect"
)

// Op is one DOM mutation decided by the engine.
type Op struct {
	Op     string    `json:"op"`
	Target string    `json:"target,omitempty"`
	Class  string    `json:"class,omitempty"`
	HTML   string    `json:"html,omitempty"`
	Effect *EffectOp `json:"effect,omitempty"`
}

// EffectOp is the wire form of engine.Effect.
type EffectOp struct {
	Kind       string   `json:"kind"`
	Phase      string   `json:"phase,omitempty"`
	Animation  string   `json:"animation,omitempty"`
	DurationMs int64    `json:"durationMs,omitempty"`
	Easing     string   `json:"easing,omitempty"`
	Opacity    *float64 `json:"opacity,omitempty"`
	Smooth     bool     `json:"smooth,omitempty"`
	Enabled    bool     `json:"enabled,omitempty"`
}

func effectOp(fx engine.Effect) *EffectOp {
	op := &EffectOp{
		Kind:       string(fx.Kind),
		Phase:      string(fx.Phase),
		Animation:  string(fx.Animation),
		DurationMs: fx.Duration.Milliseconds(),
		Easing:     fx.Easing,
		Smooth:     fx.Smooth,
		Enabled:    fx.Enabled,
	}
	if fx.Kind == engine.EffectOpacity {
		opacity := fx.Opacity
		op.Opacity = &opacity
	}
	return op
}

// targetHandle returns the DOM id for an engine target. Handles registered
// by the builder are the DOM ids themselves.
func targetHandle(t engine.Target) string {
	if h, ok := t.Handle.(string); ok && h != "" {
		return h
	}
	if t.Kind == engine.TargetLine {
		return builder.LineHandle(t.ID)
	}
	return builder.BlockHandle(t.ID)
}

func stepView(nav *codelesson.Navigator, tree *builder.Tree) *StepView {
	lesson := nav.Lesson()
	pos := nav.Position()
	current, total := nav.Progress()
	v := &StepView{
		LessonID:    lesson.ID,
		LessonTitle: lesson.Title(),
		Position:    pos,
		Current:     current,
		Total:       total,
		HasPrev:     nav.HasPrev(),
		HasNext:     nav.HasNext(),
		BigTitle:    tree.BigTitle,
		Title:       tree.Title,
		Description: tree.Description,
		DisplayHTML: string(tree.DisplayHTML),
		CodeHTML:    string(tree.CodeHTML),
	}
	for i, big := range lesson.BigSteps {
		v.Chapters = append(v.Chapters, Chapter{Index: i, Title: big.Title, Current: i == pos.BigIndex})
	}
	return v
}
