package server

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/livetemplate/codelesson"
)

// debounceDelay collapses the burst of events editors emit for one save.
const debounceDelay = 100 * time.Millisecond

// Watcher watches a lessons directory and reports changed lesson files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	rootDir  string
	onReload func(relPath string) error
	log      zerolog.Logger
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher for rootDir and all of its subdirectories.
// onReload receives paths relative to rootDir.
func NewWatcher(rootDir string, onReload func(string) error, log zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		rootDir:  rootDir,
		onReload: onReload,
		log:      log.With().Str("component", "watch").Logger(),
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}

	if err := w.addDirectoryRecursive(rootDir); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// addDirectoryRecursive adds a directory and all its subdirectories to the watcher.
func (w *Watcher) addDirectoryRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.log.Debug().Str("dir", path).Msg("watching directory")
		return nil
	})
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Error().Err(err).Msg("watch error")

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectoryRecursive(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !codelesson.IsLessonFile(event.Name) {
		return
	}

	rel, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		rel = event.Name
	}
	w.schedule(rel)
}

// schedule runs onReload for rel once no event arrived for debounceDelay.
func (w *Watcher) schedule(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[rel]; ok {
		t.Stop()
	}
	w.pending[rel] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, rel)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		w.log.Debug().Str("file", rel).Msg("file changed")
		if err := w.onReload(rel); err != nil {
			w.log.Error().Err(err).Str("file", rel).Msg("reload failed")
		}
	})
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for rel, t := range w.pending {
			t.Stop()
			delete(w.pending, rel)
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
