// Package enginetest provides a recording Sink and a manual clock for
// tests that drive an engine.
package enginetest

import (
	"slices"
	"sync"
	"time"

	"github.com/livetemplate/codelesson/internal/engine"
)

// Mutation is one call received by a Recorder.
type Mutation struct {
	Op      string // add, remove, description, placeholder, effect
	Kind    engine.TargetKind
	ID      string
	Class   engine.Class
	Effect  engine.Effect
	Content string
}

type key struct {
	kind engine.TargetKind
	id   string
}

// Recorder is an engine.Sink that keeps the class set of every target and a
// log of every call.
type Recorder struct {
	mu                sync.Mutex
	mutations         []Mutation
	classes           map[key]map[engine.Class]bool
	description       string
	descriptionActive bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{classes: make(map[key]map[engine.Class]bool)}
}

func (r *Recorder) AddClass(t engine.Target, c engine.Class) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{t.Kind, t.ID}
	if r.classes[k] == nil {
		r.classes[k] = make(map[engine.Class]bool)
	}
	r.classes[k][c] = true
	r.mutations = append(r.mutations, Mutation{Op: "add", Kind: t.Kind, ID: t.ID, Class: c})
}

func (r *Recorder) RemoveClass(t engine.Target, c engine.Class) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.classes[key{t.Kind, t.ID}], c)
	r.mutations = append(r.mutations, Mutation{Op: "remove", Kind: t.Kind, ID: t.ID, Class: c})
}

func (r *Recorder) ShowDescription(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.description = content
	r.descriptionActive = true
	r.mutations = append(r.mutations, Mutation{Op: "description", Content: content})
}

func (r *Recorder) ShowPlaceholder() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.description = ""
	r.descriptionActive = false
	r.mutations = append(r.mutations, Mutation{Op: "placeholder"})
}

func (r *Recorder) ApplyEffect(t engine.Target, fx engine.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mutations = append(r.mutations, Mutation{Op: "effect", Kind: t.Kind, ID: t.ID, Effect: fx})
}

// Classes returns the sorted classes currently on a target.
func (r *Recorder) Classes(kind engine.TargetKind, id string) []engine.Class {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []engine.Class
	for c, on := range r.classes[key{kind, id}] {
		if on {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// BlockHas reports whether a block currently carries class c.
func (r *Recorder) BlockHas(id string, c engine.Class) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.classes[key{engine.TargetBlock, id}][c]
}

// LineHas reports whether a line currently carries class c.
func (r *Recorder) LineHas(id string, c engine.Class) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.classes[key{engine.TargetLine, id}][c]
}

// Description returns the shown description and whether it is active.
// An inactive description means the placeholder is shown.
func (r *Recorder) Description() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.description, r.descriptionActive
}

// Mutations returns a copy of the call log.
func (r *Recorder) Mutations() []Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.mutations)
}

// Effects returns the effects applied to one target, in order.
func (r *Recorder) Effects(id string) []engine.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []engine.Effect
	for _, m := range r.mutations {
		if m.Op == "effect" && m.ID == id {
			out = append(out, m.Effect)
		}
	}
	return out
}

// ClearLog forgets recorded calls but keeps class state.
func (r *Recorder) ClearLog() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mutations = nil
}

// ManualScheduler is an engine.Scheduler driven by Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*task
}

type task struct {
	at      time.Duration
	seq     int
	f       func()
	stopped bool
}

func (t *task) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// stopper guards task.stopped with the scheduler lock.
type stopper struct {
	s *ManualScheduler
	t *task
}

func (st stopper) Stop() bool {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	return st.t.Stop()
}

// NewManualScheduler returns a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements engine.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) engine.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &task{at: s.now + d, seq: s.seq, f: f}
	s.tasks = append(s.tasks, t)
	return stopper{s: s, t: t}
}

// Advance moves the clock forward and runs every task that becomes due,
// including tasks scheduled by other tasks.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := -1
		for i, t := range s.tasks {
			if t.stopped || t.at > target {
				continue
			}
			if next < 0 || t.at < s.tasks[next].at || (t.at == s.tasks[next].at && t.seq < s.tasks[next].seq) {
				next = i
			}
		}
		if next < 0 {
			s.now = target
			s.tasks = slices.DeleteFunc(s.tasks, func(t *task) bool { return t.stopped })
			s.mu.Unlock()
			return
		}
		t := s.tasks[next]
		s.tasks = slices.Delete(s.tasks, next, next+1)
		s.now = t.at
		s.mu.Unlock()

		t.f()
	}
}

// Pending returns the number of tasks not yet run or stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}
