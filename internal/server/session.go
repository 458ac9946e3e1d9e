package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livetemplate/codelesson"
	"github.com/livetemplate/codelesson/internal/assoc"
	"github.com/livetemplate/codelesson/internal/builder"
	"github.com/livetemplate/codelesson/internal/engine"
	"github.com/livetemplate/codelesson/internal/logging"
	"github.com/livetemplate/codelesson/internal/progress"
)

// outboxSize bounds the messages queued for a slow browser before the
// session is dropped.
const outboxSize = 256

// Session is one browser viewing one lesson. It owns the navigator and the
// interaction engine of that viewer and implements engine.Sink by turning
// engine decisions into patch messages.
type Session struct {
	id     string
	server *Server
	viewer string
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	// opMu serializes gestures, navigation and reloads. It is taken before
	// the engine lock; Sink methods never take it.
	opMu   sync.Mutex
	nav    *codelesson.Navigator
	engine *engine.Engine

	mu       sync.Mutex
	batching bool
	discard  bool
	ops      []Op

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ engine.Sink = (*Session)(nil)

func newSession(s *Server, lesson *codelesson.Lesson, viewer string) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(logging.WithSessionID(context.Background(), id))
	sess := &Session{
		id:     id,
		server: s,
		viewer: viewer,
		log:    s.log.With().Str("component", "ws").Str("session", id).Str("lesson", lesson.ID).Logger(),
		ctx:    ctx,
		cancel: cancel,
		nav:    codelesson.NewNavigator(lesson),
		out:    make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}

	cfg := s.engineCfg
	cfg.Logger = &sess.log
	sess.engine = engine.New(sess, cfg)
	return sess
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// LessonID returns the id of the lesson on screen.
func (s *Session) LessonID() string { return s.nav.Lesson().ID }

// Position returns the step on screen.
func (s *Session) Position() codelesson.Position { return s.nav.Position() }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// start greets the browser, restores saved progress and renders the step.
func (s *Session) start() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.send(ServerMessage{Type: MessageHello, Session: s.id})

	if s.viewer != "" {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		rec, ok, err := s.server.progress.Load(ctx, s.LessonID(), s.viewer)
		cancel()
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("failed to load progress")
		case ok:
			pos := s.nav.Restore(codelesson.Position{BigIndex: rec.BigIndex, SmallIndex: rec.SmallIndex})
			s.log.Debug().Stringer("position", pos).Msg("progress restored")
		}
	}

	if err := s.showStep(MessageStep); err != nil {
		return err
	}
	s.saveProgress()
	return nil
}

// Handle runs one client message.
func (s *Session) Handle(msg ClientMessage) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	block := assoc.BlockID(msg.ID)
	line := assoc.LineID(msg.ID)

	switch msg.Action {
	case ActionBlockHover:
		s.gesture(func() { s.engine.BlockHover(block, msg.Enter) })
	case ActionBlockClick:
		s.gesture(func() { s.engine.BlockClick(block) })
	case ActionBlockFocus:
		s.gesture(func() { s.engine.FocusBlock(block) })
	case ActionBlockAction:
		s.gesture(func() { s.engine.TriggerActions(block, builder.NormalizeEvent(msg.Event)) })
	case ActionBlockDrag:
		switch msg.Phase {
		case string(engine.PhaseStart):
			s.gesture(func() { s.engine.DragStart(block) })
		case string(engine.PhaseEnd):
			s.gesture(func() { s.engine.DragEnd(block) })
		default:
			return fmt.Errorf("unknown drag phase %q", msg.Phase)
		}
	case ActionBlockEffect:
		return s.effect(block, msg)
	case ActionLineHover:
		s.gesture(func() { s.engine.LineHover(line, msg.Enter) })
	case ActionLineClick:
		s.gesture(func() { s.engine.LineClick(line) })
	case ActionClear:
		s.gesture(s.engine.ClearAllSelections)
	case ActionStepNext:
		return s.navigate("nextStep", nil)
	case ActionStepPrev:
		return s.navigate("prevStep", nil)
	case ActionStepJump:
		return s.navigate("jumpToStep", map[string]interface{}{"bigIndex": msg.Index})
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

func (s *Session) effect(id assoc.BlockID, msg ClientMessage) error {
	anim := engine.ParseAnimation(msg.Animation)
	var run func()
	switch msg.Effect {
	case "show":
		run = func() { s.engine.Show(id, anim) }
	case "hide":
		run = func() { s.engine.Hide(id, anim) }
	case "toggle":
		run = func() { s.engine.Toggle(id, anim) }
	case "blink":
		run = func() { s.engine.Blink(id, msg.Times) }
	case "shake":
		run = func() { s.engine.Shake(id) }
	case "pulse":
		run = func() { s.engine.Pulse(id) }
	case "scroll":
		run = func() { s.engine.ScrollToBlock(id, true) }
	default:
		return fmt.Errorf("unknown effect %q", msg.Effect)
	}
	s.gesture(run)
	return nil
}

func (s *Session) navigate(action string, data map[string]interface{}) error {
	moved, err := s.nav.HandleAction(action, data)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	if err := s.showStep(MessageStep); err != nil {
		return err
	}
	s.saveProgress()
	return nil
}

// reload swaps in a re-parsed lesson and re-renders the current step.
func (s *Session) reload(lesson *codelesson.Lesson) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.nav.SetLesson(lesson)
	if err := s.showStep(MessageReload); err != nil {
		s.log.Error().Err(err).Msg("failed to render reloaded lesson")
		s.sendError(err.Error())
	}
}

// showStep registers the current step with the engine and sends it as a
// message of type kind. Mutations emitted while registering are dropped:
// the new markup already reflects the reset state.
// Caller must hold s.opMu.
func (s *Session) showStep(kind string) error {
	tree, err := s.server.Tree(s.nav.Lesson(), s.nav.Position())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.batching, s.discard, s.ops = true, true, nil
	s.mu.Unlock()

	tree.Register(s.engine)

	s.mu.Lock()
	s.batching, s.discard, s.ops = false, false, nil
	s.mu.Unlock()

	s.send(ServerMessage{Type: kind, Step: stepView(s.nav, tree)})
	return nil
}

// gesture runs fn and sends everything it changed as a single patch.
// Caller must hold s.opMu.
func (s *Session) gesture(fn func()) {
	s.mu.Lock()
	s.batching, s.ops = true, nil
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	ops := s.ops
	s.batching, s.ops = false, nil
	s.mu.Unlock()

	if len(ops) > 0 {
		s.send(ServerMessage{Type: MessagePatch, Ops: ops})
	}
}

func (s *Session) saveProgress() {
	if s.viewer == "" {
		return
	}
	pos := s.nav.Position()
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	err := s.server.progress.Save(ctx, progress.Record{
		LessonID:   s.LessonID(),
		Viewer:     s.viewer,
		BigIndex:   pos.BigIndex,
		SmallIndex: pos.SmallIndex,
	})
	if err != nil {
		s.log.Warn().Ctx(ctx).Err(err).Msg("failed to save progress")
	}
}

// emit queues op in the current gesture, or sends it on its own when it
// comes from a deferred effect.
func (s *Session) emit(op Op) {
	s.mu.Lock()
	if s.batching {
		if !s.discard {
			s.ops = append(s.ops, op)
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.send(ServerMessage{Type: MessagePatch, Ops: []Op{op}})
}

// AddClass implements engine.Sink.
func (s *Session) AddClass(t engine.Target, c engine.Class) {
	s.emit(Op{Op: OpAddClass, Target: targetHandle(t), Class: string(c)})
}

// RemoveClass implements engine.Sink.
func (s *Session) RemoveClass(t engine.Target, c engine.Class) {
	s.emit(Op{Op: OpRemoveClass, Target: targetHandle(t), Class: string(c)})
}

// ShowDescription implements engine.Sink.
func (s *Session) ShowDescription(content string) {
	s.emit(Op{Op: OpDescription, HTML: content})
}

// ShowPlaceholder implements engine.Sink.
func (s *Session) ShowPlaceholder() {
	s.emit(Op{Op: OpPlaceholder})
}

// ApplyEffect implements engine.Sink.
func (s *Session) ApplyEffect(t engine.Target, fx engine.Effect) {
	s.emit(Op{Op: OpEffect, Target: targetHandle(t), Effect: effectOp(fx)})
}

func (s *Session) sendError(message string) {
	s.send(ServerMessage{Type: MessageError, Error: message})
}

// send queues msg for the writer. It never blocks: a browser that cannot
// keep up is disconnected.
func (s *Session) send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal message")
		return
	}

	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.out <- data:
	default:
		s.log.Warn().Msg("outbox full, closing session")
		s.Close()
	}
}

// Close ends the session. It is safe to call from Sink methods and more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
}

// finish stops pending engine effects after the connection is gone.
func (s *Session) finish() {
	s.Close()
	s.engine.Close()
}
