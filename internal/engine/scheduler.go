package engine

import (
	"time"

	"github.com/livetemplate/codelesson/internal/assoc"
)

// Timer is a pending scheduled task.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. Implementations may call f on any goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules with the runtime timer.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// afterBlock schedules fn against a block. The task is dropped when the
// engine was reset or the block re-registered before it fires.
// Caller must hold e.mu.
func (e *Engine) afterBlock(d time.Duration, id assoc.BlockID, fn func(Target)) {
	epoch := e.epoch
	entry, ok := e.blocks[id]
	if !ok {
		return
	}
	serial := entry.serial

	e.nextTimer++
	key := e.nextTimer
	e.timers[key] = e.cfg.Scheduler.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		delete(e.timers, key)
		if e.epoch != epoch {
			return
		}
		cur, ok := e.blocks[id]
		if !ok || cur.serial != serial {
			return
		}
		fn(e.blockTarget(id, cur))
	})
}

// stopTimers cancels every pending task. Caller must hold e.mu.
func (e *Engine) stopTimers() {
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
	}
}
