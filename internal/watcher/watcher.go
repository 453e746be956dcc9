// Package watcher notices edits to the flat-file rule store and asks for a
// new link pass.
package watcher

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileEvent is the last change seen for one watched file within a
// debounce window.
type FileEvent struct {
	Path      string    `json:"path"`
	Op        string    `json:"op"` // "create", "write", "remove", "rename"
	Timestamp time.Time `json:"timestamp"`
}

// FileEventHandler receives one debounced batch, sorted by path. It runs on
// the watcher's event loop and must return quickly.
type FileEventHandler func(events []FileEvent)

// Config holds watcher configuration.
type Config struct {
	// DebounceDelay is the quiet period after the last event before a
	// batch is delivered.
	DebounceDelay time.Duration
}

// DefaultConfig returns default watcher configuration.
func DefaultConfig() Config {
	return Config{DebounceDelay: 500 * time.Millisecond}
}

// Watcher reports changes to individual files. Editors and the rule store
// replace files by rename, which drops a watch on the file itself, so the
// parent directory is watched and events are filtered by name.
type Watcher struct {
	fs      *fsnotify.Watcher
	delay   time.Duration
	handler FileEventHandler
	logger  zerolog.Logger

	mu    sync.RWMutex
	files map[string]struct{}
	dirs  map[string]int

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher that delivers batches to handler once started.
func New(config Config, handler FileEventHandler, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	delay := config.DebounceDelay
	if delay <= 0 {
		delay = DefaultConfig().DebounceDelay
	}

	return &Watcher{
		fs:      fsw,
		delay:   delay,
		handler: handler,
		logger:  logger.With().Str("component", "watcher").Logger(),
		files:   make(map[string]struct{}),
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
	}, nil
}

// Start runs the event loop in the background.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop delivers any pending batch, ends the event loop and releases the
// fsnotify handle. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.fs.Close()
	})
	return err
}

// AddFile starts watching path. The file may not exist yet; its directory
// must.
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}

	w.logger.Info().Str("path", abs).Msg("Watching file")
	return nil
}

// RemoveFile stops watching path. The directory watch is dropped with its
// last file.
func (w *Watcher) RemoveFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	if w.dirs[dir]--; w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if err := w.fs.Remove(dir); err != nil {
		w.logger.Debug().Err(err).Str("dir", dir).Msg("Failed to remove directory watch")
	}
	return nil
}

// WatchedFiles returns the watched files, sorted.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (w *Watcher) watching(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[path]
	return ok
}

// loop owns the pending batch and the debounce timer; nothing else touches
// them.
func (w *Watcher) loop() {
	defer w.wg.Done()

	pending := make(map[string]FileEvent)
	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()
	errs := w.fs.Errors

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]FileEvent, 0, len(pending))
		for _, e := range pending {
			batch = append(batch, e)
		}
		slices.SortFunc(batch, func(a, b FileEvent) int { return cmp.Compare(a.Path, b.Path) })
		clear(pending)

		w.logger.Debug().Int("count", len(batch)).Msg("Flushed file events")
		if w.handler != nil {
			w.handler(batch)
		}
	}

	for {
		select {
		case <-w.done:
			flush()
			return

		case <-timer.C:
			flush()

		case event, ok := <-w.fs.Events:
			if !ok {
				flush()
				return
			}
			name := filepath.Clean(event.Name)
			op := opName(event)
			if op == "" || !w.watching(name) {
				continue
			}
			pending[name] = FileEvent{Path: name, Op: op, Timestamp: time.Now()}
			timer.Reset(w.delay)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func opName(event fsnotify.Event) string {
	switch {
	case event.Has(fsnotify.Create):
		return "create"
	case event.Has(fsnotify.Write):
		return "write"
	case event.Has(fsnotify.Remove):
		return "remove"
	case event.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}
