package codelesson

import (
	"fmt"
	"sync"
)

// Navigator tracks the small step a viewer is on. Moving forward past the
// last small step of a big step enters the first small step of the next
// one; moving back from the first small step lands on the last small step
// of the previous big step.
type Navigator struct {
	mu sync.RWMutex

	lesson *Lesson
	pos    Position

	// Visited records every step the viewer has seen.
	visited map[Position]bool
}

// NewNavigator starts at the first step of lesson.
func NewNavigator(lesson *Lesson) *Navigator {
	n := &Navigator{
		lesson:  lesson,
		visited: make(map[Position]bool),
	}
	n.pos = n.firstFrom(0)
	n.visited[n.pos] = true
	return n
}

// Lesson returns the lesson being navigated.
func (n *Navigator) Lesson() *Lesson {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lesson
}

// Position returns the current step.
func (n *Navigator) Position() Position {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pos
}

// Current returns the current big and small step. Both are nil for a
// lesson without steps.
func (n *Navigator) Current() (*BigStep, *SmallStep) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	big, small, err := n.lesson.Step(n.pos)
	if err != nil {
		return nil, nil
	}
	return big, small
}

// Next moves one step forward and reports whether it moved.
func (n *Navigator) Next() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	next, ok := n.next(n.pos)
	if !ok {
		return false
	}
	n.moveTo(next)
	return true
}

// Prev moves one step back and reports whether it moved.
func (n *Navigator) Prev() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev, ok := n.prev(n.pos)
	if !ok {
		return false
	}
	n.moveTo(prev)
	return true
}

// HasNext reports whether Next would move.
func (n *Navigator) HasNext() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	_, ok := n.next(n.pos)
	return ok
}

// HasPrev reports whether Prev would move.
func (n *Navigator) HasPrev() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	_, ok := n.prev(n.pos)
	return ok
}

// JumpToBigStep moves to the first small step of big step i.
func (n *Navigator) JumpToBigStep(i int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	pos := Position{BigIndex: i}
	if _, _, err := n.lesson.Step(pos); err != nil {
		return err
	}
	n.moveTo(pos)
	return nil
}

// Restore moves to a saved position, clamped to the lesson, and returns
// where it ended up.
func (n *Navigator) Restore(pos Position) Position {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.moveTo(n.clamp(pos))
	return n.pos
}

// SetLesson swaps in a reloaded lesson, keeping the position when it still
// exists.
func (n *Navigator) SetLesson(lesson *Lesson) Position {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.lesson = lesson
	n.pos = n.clamp(n.pos)
	return n.pos
}

// Progress returns the 1-based index of the current step and the total.
func (n *Navigator) Progress() (current, total int) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for bi := 0; bi < n.pos.BigIndex && bi < len(n.lesson.BigSteps); bi++ {
		current += len(n.lesson.BigSteps[bi].SmallSteps)
	}
	total = n.lesson.StepCount()
	if total == 0 {
		return 0, 0
	}
	return current + n.pos.SmallIndex + 1, total
}

// Visited reports whether the viewer has been on pos.
func (n *Navigator) Visited(pos Position) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.visited[pos]
}

// HandleAction runs a navigation action sent by the viewer and reports
// whether the position changed.
func (n *Navigator) HandleAction(action string, data map[string]interface{}) (bool, error) {
	switch action {
	case "nextStep":
		return n.Next(), nil
	case "prevStep":
		return n.Prev(), nil
	case "jumpToStep":
		raw, ok := data["bigIndex"]
		if !ok {
			return false, fmt.Errorf("missing bigIndex")
		}
		i, ok := toInt(raw)
		if !ok {
			return false, fmt.Errorf("bigIndex must be a number, got %T", raw)
		}
		before := n.Position()
		if err := n.JumpToBigStep(i); err != nil {
			return false, err
		}
		return n.Position() != before, nil
	default:
		return false, fmt.Errorf("unknown navigation action: %s", action)
	}
}

func toInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), x == float64(int(x))
	default:
		return 0, false
	}
}

func (n *Navigator) moveTo(pos Position) {
	n.pos = pos
	n.visited[pos] = true
}

func (n *Navigator) next(pos Position) (Position, bool) {
	steps := n.lesson.BigSteps
	if pos.BigIndex < len(steps) && pos.SmallIndex+1 < len(steps[pos.BigIndex].SmallSteps) {
		return Position{BigIndex: pos.BigIndex, SmallIndex: pos.SmallIndex + 1}, true
	}
	next := n.firstFrom(pos.BigIndex + 1)
	if next.BigIndex >= len(steps) {
		return pos, false
	}
	return next, true
}

func (n *Navigator) prev(pos Position) (Position, bool) {
	if pos.SmallIndex > 0 {
		return Position{BigIndex: pos.BigIndex, SmallIndex: pos.SmallIndex - 1}, true
	}
	for bi := pos.BigIndex - 1; bi >= 0; bi-- {
		if k := len(n.lesson.BigSteps[bi].SmallSteps); k > 0 {
			return Position{BigIndex: bi, SmallIndex: k - 1}, true
		}
	}
	return pos, false
}

// firstFrom returns the first small step at or after big step bi, or a
// position past the end.
func (n *Navigator) firstFrom(bi int) Position {
	for ; bi < len(n.lesson.BigSteps); bi++ {
		if len(n.lesson.BigSteps[bi].SmallSteps) > 0 {
			return Position{BigIndex: bi}
		}
	}
	return Position{BigIndex: bi}
}

func (n *Navigator) clamp(pos Position) Position {
	steps := n.lesson.BigSteps
	if len(steps) == 0 {
		return Position{}
	}
	if pos.BigIndex < 0 {
		pos = Position{}
	}
	if pos.BigIndex >= len(steps) {
		pos.BigIndex = len(steps) - 1
		pos.SmallIndex = len(steps[pos.BigIndex].SmallSteps) - 1
	}
	if pos.SmallIndex < 0 {
		pos.SmallIndex = 0
	}
	if k := len(steps[pos.BigIndex].SmallSteps); pos.SmallIndex >= k {
		pos.SmallIndex = k - 1
	}
	if pos.SmallIndex < 0 {
		return n.firstFrom(0)
	}
	return pos
}
