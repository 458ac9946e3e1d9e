package engine

import (
	"time"

	"github.com/livetemplate/codelesson/internal/assoc"
)

// Show reveals a hidden block with the given animation.
func (e *Engine) Show(id assoc.BlockID, anim Animation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.show(id, anim)
}

func (e *Engine) show(id assoc.BlockID, anim Animation) {
	en, ok := e.blocks[id]
	if !ok {
		return
	}
	delete(e.hidden, id)
	e.sink.ApplyEffect(e.blockTarget(id, en), Effect{
		Kind:      EffectShow,
		Phase:     PhaseStart,
		Animation: anim,
		Duration:  e.cfg.AnimationDuration,
		Easing:    e.cfg.Easing,
	})
	e.afterBlock(e.cfg.RevealDelay, id, func(t Target) {
		e.sink.ApplyEffect(t, Effect{Kind: EffectShow, Phase: PhaseEnd, Animation: anim})
	})
}

// Hide animates a block out and then removes it from layout.
func (e *Engine) Hide(id assoc.BlockID, anim Animation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hide(id, anim)
}

func (e *Engine) hide(id assoc.BlockID, anim Animation) {
	en, ok := e.blocks[id]
	if !ok {
		return
	}
	e.hidden[id] = true
	e.sink.ApplyEffect(e.blockTarget(id, en), Effect{
		Kind:      EffectHide,
		Phase:     PhaseStart,
		Animation: anim,
		Duration:  e.cfg.AnimationDuration,
		Easing:    e.cfg.Easing,
	})
	e.afterBlock(e.cfg.AnimationDuration, id, func(t Target) {
		e.sink.ApplyEffect(t, Effect{Kind: EffectHide, Phase: PhaseEnd, Animation: anim})
	})
}

// MarkHidden records that a registered block was rendered hidden. No
// effect is emitted.
func (e *Engine) MarkHidden(id assoc.BlockID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.blocks[id]; ok {
		e.hidden[id] = true
	}
}

// Toggle shows a hidden block or hides a visible one.
func (e *Engine) Toggle(id assoc.BlockID, anim Animation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.toggle(id, anim)
}

func (e *Engine) toggle(id assoc.BlockID, anim Animation) {
	if e.hidden[id] {
		e.show(id, anim)
		return
	}
	e.hide(id, anim)
}

// maxBlinkTimes caps a single blink run.
const maxBlinkTimes = 10

// Blink flashes a block times times. Zero or negative uses the configured
// default and larger counts are capped at maxBlinkTimes.
func (e *Engine) Blink(id assoc.BlockID, times int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.blocks[id]; !ok {
		return
	}
	if times <= 0 {
		times = e.cfg.BlinkTimes
	}
	times = min(times, maxBlinkTimes)
	e.blinkTick(id, 0, times*2)
}

func (e *Engine) blinkTick(id assoc.BlockID, count, total int) {
	e.afterBlock(e.cfg.BlinkInterval, id, func(t Target) {
		opacity := 0.3
		if count%2 == 1 {
			opacity = 1
		}
		e.sink.ApplyEffect(t, Effect{Kind: EffectOpacity, Opacity: opacity})
		if count+1 >= total {
			e.sink.ApplyEffect(t, Effect{Kind: EffectOpacity, Opacity: 1})
			return
		}
		e.blinkTick(id, count+1, total)
	})
}

// Shake runs the shake animation on a block.
func (e *Engine) Shake(id assoc.BlockID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.animate(id, AnimationShake, e.cfg.ShakeDuration)
}

// Pulse runs the pulse animation on a block.
func (e *Engine) Pulse(id assoc.BlockID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.animate(id, AnimationPulse, e.cfg.PulseDuration)
}

func (e *Engine) animate(id assoc.BlockID, anim Animation, d time.Duration) {
	en, ok := e.blocks[id]
	if !ok {
		return
	}
	e.sink.ApplyEffect(e.blockTarget(id, en), Effect{Kind: EffectAnimate, Phase: PhaseStart, Animation: anim, Duration: d})
	e.afterBlock(d, id, func(t Target) {
		e.sink.ApplyEffect(t, Effect{Kind: EffectAnimate, Phase: PhaseEnd, Animation: anim})
	})
}

// ScrollToBlock brings a block into view.
func (e *Engine) ScrollToBlock(id assoc.BlockID, smooth bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scrollTo(id, smooth)
}

func (e *Engine) scrollTo(id assoc.BlockID, smooth bool) {
	if en, ok := e.blocks[id]; ok {
		e.sink.ApplyEffect(e.blockTarget(id, en), Effect{Kind: EffectScroll, Smooth: smooth})
	}
}

// FocusBlock selects a block as if it was clicked, scrolls to it and
// pulses it.
func (e *Engine) FocusBlock(id assoc.BlockID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.blocks[id]; !ok {
		return
	}
	e.clearAllSelections()
	e.selectBlock(id)
	e.scrollTo(id, true)
	e.animate(id, AnimationPulse, e.cfg.PulseDuration)
}

// EnableDrag makes a block draggable.
func (e *Engine) EnableDrag(id assoc.BlockID) {
	e.setDraggable(id, true)
}

// DisableDrag makes a block fixed again.
func (e *Engine) DisableDrag(id assoc.BlockID) {
	e.setDraggable(id, false)
}

func (e *Engine) setDraggable(id assoc.BlockID, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.blocks[id]
	if !ok {
		return
	}
	if enabled {
		e.draggable[id] = true
	} else {
		delete(e.draggable, id)
		if e.dragging == id {
			e.dragging = ""
		}
	}
	e.sink.ApplyEffect(e.blockTarget(id, en), Effect{Kind: EffectDraggable, Enabled: enabled})
}

// DragStart dims a draggable block while it is being dragged.
func (e *Engine) DragStart(id assoc.BlockID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.blocks[id]
	if !ok || !e.draggable[id] {
		return
	}
	e.dragging = id
	e.sink.ApplyEffect(e.blockTarget(id, en), Effect{Kind: EffectOpacity, Opacity: 0.5})
}

// DragEnd restores the block dimmed by DragStart.
func (e *Engine) DragEnd(id assoc.BlockID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dragging != id {
		return
	}
	e.dragging = ""
	if en, ok := e.blocks[id]; ok {
		e.sink.ApplyEffect(e.blockTarget(id, en), Effect{Kind: EffectOpacity, Opacity: 1})
	}
}

// Dragging returns the block being dragged, if any.
func (e *Engine) Dragging() (assoc.BlockID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.dragging, e.dragging != ""
}
