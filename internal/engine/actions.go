package engine

import "github.com/livetemplate/codelesson/internal/assoc"

// ActionKind is what a declarative block action does to its targets.
type ActionKind string

const (
	ActionHighlight       ActionKind = "highlight"
	ActionUnhighlight     ActionKind = "unhighlight"
	ActionToggleHighlight ActionKind = "toggleHighlight"
	ActionShow            ActionKind = "show"
	ActionHide            ActionKind = "hide"
	ActionToggle          ActionKind = "toggle"
)

// Action runs Kind on Targets when Event fires on the owning block.
type Action struct {
	Event     string
	Kind      ActionKind
	Targets   []assoc.BlockID
	Animation Animation
}

// RegisterActions attaches declarative actions to a block. They are
// dropped by Reset.
func (e *Engine) RegisterActions(id assoc.BlockID, actions []Action) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(actions) == 0 {
		delete(e.actions, id)
		return
	}
	e.actions[id] = append([]Action(nil), actions...)
}

// TriggerActions runs every action of block id bound to event and returns
// how many ran. Actions only touch presentation, never the selection.
func (e *Engine) TriggerActions(id assoc.BlockID, event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.blocks[id]; !ok {
		return 0
	}
	ran := 0
	for _, a := range e.actions[id] {
		if a.Event != event {
			continue
		}
		ran++
		for _, target := range a.Targets {
			e.runAction(a, target)
		}
	}
	return ran
}

func (e *Engine) runAction(a Action, target assoc.BlockID) {
	if _, ok := e.blocks[target]; !ok {
		return
	}
	anim := a.Animation
	if anim == "" {
		anim = AnimationFade
	}
	switch a.Kind {
	case ActionHighlight:
		e.marked[target] = true
		e.addBlockClass(target, ClassHighlight)
	case ActionUnhighlight:
		delete(e.marked, target)
		e.removeBlockClass(target, ClassHighlight)
	case ActionToggleHighlight:
		if e.marked[target] {
			delete(e.marked, target)
			e.removeBlockClass(target, ClassHighlight)
		} else {
			e.marked[target] = true
			e.addBlockClass(target, ClassHighlight)
		}
	case ActionShow:
		e.show(target, anim)
	case ActionHide:
		e.hide(target, anim)
	case ActionToggle:
		e.toggle(target, anim)
	default:
		e.log.Debug().Str("action", string(a.Kind)).Msg("unknown block action")
	}
}
