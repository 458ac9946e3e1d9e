package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/livetemplate/codelesson"
	"github.com/livetemplate/codelesson/internal/builder"
	"github.com/livetemplate/codelesson/internal/cache"
	"github.com/livetemplate/codelesson/internal/config"
	"github.com/livetemplate/codelesson/internal/engine"
	"github.com/livetemplate/codelesson/internal/logging"
	"github.com/livetemplate/codelesson/internal/progress"
)

// Server serves the lessons of one directory (or fs.FS) to browsers.
type Server struct {
	fsys    fs.FS
	rootDir string // empty when serving from a non-disk fs.FS
	config  *config.Config
	log     zerolog.Logger

	engineCfg engine.Config

	mu       sync.RWMutex
	lessons  map[string]*codelesson.Lesson
	files    map[string]string // lesson file (slash path) -> lesson id
	problems []error

	trees    *cache.MemoryCache[*builder.Tree]
	progress progress.Store

	sessMu   sync.RWMutex
	sessions map[string]*Session

	watcher    *Watcher
	stopLimits context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = logging.Component(l, "server") }
}

// WithProgressStore sets where viewer positions are saved. The default is
// an in-memory store.
func WithProgressStore(st progress.Store) Option {
	return func(s *Server) { s.progress = st }
}

// WithEngineConfig overrides the engine configuration derived from the
// interaction section of the config.
func WithEngineConfig(cfg engine.Config) Option {
	return func(s *Server) { s.engineCfg = cfg }
}

// New creates a server for the lessons below rootDir.
func New(rootDir string, cfg *config.Config, opts ...Option) *Server {
	s := NewFS(os.DirFS(rootDir), cfg, opts...)
	s.rootDir = rootDir
	return s
}

// NewFS creates a server for lessons read from fsys. Hot reload is not
// available for it.
func NewFS(fsys fs.FS, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		fsys:      fsys,
		config:    cfg,
		log:       zerolog.Nop(),
		engineCfg: engineConfig(cfg.Interaction),
		lessons:   make(map[string]*codelesson.Lesson),
		files:     make(map[string]string),
		trees:     cache.NewMemoryCache[*builder.Tree](0),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.progress == nil {
		s.progress = progress.NewMemoryStore()
	}
	return s
}

func engineConfig(c config.InteractionConfig) engine.Config {
	return engine.Config{
		AnimationDuration: c.GetAnimationDuration(),
		Easing:            c.Easing,
		RevealDelay:       c.GetRevealDelay(),
		BlinkInterval:     c.GetBlinkInterval(),
		BlinkTimes:        c.BlinkTimes,
	}
}

// Config returns the server configuration.
func (s *Server) Config() *config.Config { return s.config }

// Discover loads every lesson, replacing what was loaded before. Files
// that fail to parse, and lessons that fail validation in strict mode, are
// left out and reported by Problems.
func (s *Server) Discover() error {
	mode, err := codelesson.ParseValidationMode(s.config.Lessons.Validation)
	if err != nil {
		return err
	}

	loaded, errs := codelesson.LoadDir(s.fsys, s.config.IsIgnored)

	lessons := make(map[string]*codelesson.Lesson, len(loaded))
	files := make(map[string]string, len(loaded))
	for _, err := range errs {
		s.log.Warn().Err(err).Msg("lesson skipped")
	}
	for _, l := range loaded {
		if err := s.admit(l, mode); err != nil {
			errs = append(errs, err)
			continue
		}
		lessons[l.ID] = l
		files[l.SourceFile] = l.ID
	}

	s.mu.Lock()
	s.lessons = lessons
	s.files = files
	s.problems = errs
	s.mu.Unlock()

	s.trees.InvalidateAll()
	s.log.Info().Int("lessons", len(lessons)).Int("problems", len(errs)).Msg("lessons discovered")
	return nil
}

// admit validates a lesson according to mode. It returns an error only
// when the lesson must not be served.
func (s *Server) admit(l *codelesson.Lesson, mode codelesson.ValidationMode) error {
	if mode == codelesson.ValidationOff {
		return nil
	}
	err := l.Validate()
	if err == nil {
		return nil
	}
	if mode == codelesson.ValidationStrict {
		s.log.Error().Err(err).Str("lesson", l.ID).Str("file", l.SourceFile).Msg("lesson rejected")
		return fmt.Errorf("%s: %w", l.SourceFile, err)
	}
	s.log.Warn().Err(err).Str("lesson", l.ID).Str("file", l.SourceFile).Msg("lesson has problems")
	return nil
}

// Problems returns the errors of the last Discover or Reload.
func (s *Server) Problems() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]error(nil), s.problems...)
}

// Lesson returns a loaded lesson by id.
func (s *Server) Lesson(id string) (*codelesson.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lessons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", codelesson.ErrLessonNotFound, id)
	}
	return l, nil
}

// Lessons returns the loaded lessons sorted by id. Unpublished lessons are
// included only when all is true.
func (s *Server) Lessons(all bool) []*codelesson.Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*codelesson.Lesson, 0, len(s.lessons))
	for _, l := range s.lessons {
		if all || l.IsPublished() {
			out = append(out, l)
		}
	}
	sortLessons(out)
	return out
}

func treeKey(lessonID string, pos codelesson.Position) string {
	return lessonID + "@" + pos.String()
}

// Tree returns the rendered step, building it on a cache miss.
func (s *Server) Tree(lesson *codelesson.Lesson, pos codelesson.Position) (*builder.Tree, error) {
	key := treeKey(lesson.ID, pos)
	if t, ok := s.trees.Get(key); ok {
		return t, nil
	}
	t, err := builder.Build(lesson, pos, builder.Options{Placeholder: s.config.Interaction.Placeholder})
	if err != nil {
		return nil, err
	}
	s.trees.Set(key, t, s.config.Cache.GetTTL())
	return t, nil
}

// Reload re-reads one lesson file and re-renders every session viewing
// the lesson. relPath is relative to the lessons directory.
func (s *Server) Reload(relPath string) error {
	rel := filepath.ToSlash(relPath)
	if !codelesson.IsLessonFile(rel) || s.config.IsIgnored(rel) {
		return nil
	}

	s.mu.RLock()
	oldID, known := s.files[rel]
	s.mu.RUnlock()

	data, err := fs.ReadFile(s.fsys, rel)
	if errors.Is(err, fs.ErrNotExist) {
		if known {
			s.removeLesson(rel, oldID)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if !codelesson.LooksLikeLesson(data) {
		return nil
	}

	lesson, err := codelesson.Parse(rel, data)
	if err != nil {
		return err
	}
	mode, err := codelesson.ParseValidationMode(s.config.Lessons.Validation)
	if err != nil {
		return err
	}
	if err := s.admit(lesson, mode); err != nil {
		return err
	}

	s.mu.Lock()
	if prev, dup := s.lessons[lesson.ID]; dup && prev.SourceFile != rel {
		s.mu.Unlock()
		return fmt.Errorf("%s: duplicate lesson id %q (first declared in %s)", rel, lesson.ID, prev.SourceFile)
	}
	if known && oldID != lesson.ID {
		delete(s.lessons, oldID)
	}
	s.lessons[lesson.ID] = lesson
	s.files[rel] = lesson.ID
	s.mu.Unlock()

	if known && oldID != lesson.ID {
		s.trees.InvalidatePrefix(oldID + "@")
	}
	s.trees.InvalidatePrefix(lesson.ID + "@")
	s.log.Info().Str("lesson", lesson.ID).Str("file", rel).Msg("lesson reloaded")

	for _, sess := range s.sessionsFor(lesson.ID) {
		sess.reload(lesson)
	}
	return nil
}

func (s *Server) removeLesson(rel, id string) {
	s.mu.Lock()
	delete(s.lessons, id)
	delete(s.files, rel)
	s.mu.Unlock()

	s.trees.InvalidatePrefix(id + "@")
	s.log.Info().Str("lesson", id).Str("file", rel).Msg("lesson removed")
	for _, sess := range s.sessionsFor(id) {
		sess.sendError("lesson was removed")
	}
}

func (s *Server) registerSession(sess *Session) {
	s.sessMu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.sessMu.Unlock()
	s.log.Debug().Str("session", sess.id).Int("active", n).Msg("session registered")
}

func (s *Server) unregisterSession(sess *Session) {
	s.sessMu.Lock()
	delete(s.sessions, sess.id)
	n := len(s.sessions)
	s.sessMu.Unlock()
	s.log.Debug().Str("session", sess.id).Int("active", n).Msg("session unregistered")
}

// SessionCount returns the number of connected viewers.
func (s *Server) SessionCount() int {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) sessionsFor(lessonID string) []*Session {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()

	var out []*Session
	for _, sess := range s.sessions {
		if sess.LessonID() == lessonID {
			out = append(out, sess)
		}
	}
	return out
}

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveIndex)
	mux.HandleFunc("GET /lessons/{id}", s.serveLesson)
	mux.HandleFunc("GET /ws", s.serveWebSocket)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", assetHandler()))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/lessons", s.handleListLessons)
	api.HandleFunc("GET /api/lessons/{id}", s.handleGetLesson)
	api.HandleFunc("GET /api/lessons/{id}/steps/{big}/{small}", s.handleGetStep)
	api.HandleFunc("GET /api/lessons/{id}/progress", s.handleGetProgress)
	api.HandleFunc("PUT /api/lessons/{id}/progress", s.handlePutProgress)
	api.HandleFunc("GET /api/progress", s.handleListProgress)

	apiCfg := s.config.API
	ctx, cancel := context.WithCancel(context.Background())
	if s.stopLimits != nil {
		s.stopLimits()
	}
	s.stopLimits = cancel
	limit, _ := RateLimitMiddleware(ctx, apiCfg.GetRateLimitRPS(), apiCfg.GetRateLimitBurst(), 0, s.log)

	var apiHandler http.Handler = api
	apiHandler = limit(apiHandler)
	apiHandler = CORSMiddleware(apiCfg.GetCORSOrigins())(apiHandler)
	mux.Handle("/api/", apiHandler)

	var h http.Handler = mux
	h = WithCompression(h)
	h = SecurityHeadersMiddleware()(h)
	h = AccessLogMiddleware(s.log)(h)
	return h
}

// EnableWatch reloads lessons when their files change.
func (s *Server) EnableWatch() error {
	if s.rootDir == "" {
		return fmt.Errorf("hot reload needs a lessons directory")
	}
	w, err := NewWatcher(s.rootDir, s.Reload, s.log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	s.watcher = w
	s.watcher.Start()
	s.log.Info().Str("dir", s.rootDir).Msg("file watcher started")
	return nil
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// Close stops background work and closes every session and the progress
// store.
func (s *Server) Close() error {
	err := s.StopWatch()
	if s.stopLimits != nil {
		s.stopLimits()
	}
	s.trees.Stop()

	s.sessMu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessMu.RUnlock()
	for _, sess := range sessions {
		sess.Close()
	}

	return errors.Join(err, s.progress.Close())
}
