// Package watch reports changes to a project file and the survey data files
// it references.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/signalsfoundry/compass-survey/internal/logging"
)

// DefaultDebounce is how long a path must stay quiet before it is reported.
const DefaultDebounce = 300 * time.Millisecond

// ReloadFunc is called with the settled set of changed paths, sorted.
type ReloadFunc func(ctx context.Context, changed []string)

// Option customises a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// Watcher watches the directories holding a project and its survey files.
// Directories rather than files are watched so editors that save by
// renaming a temporary file are still seen.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	log      logging.Logger
	debounce time.Duration

	project string
	files   map[string]bool // absolute paths of interest
	dirs    map[string]bool // directories added to fsw
	pending map[string]time.Time
}

// New creates a Watcher for the project file at projectPath.
func New(projectPath string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("watch.New: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch.New: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		log:      logging.Noop(),
		debounce: DefaultDebounce,
		project:  abs,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	if err := w.SetFiles(nil); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// SetFiles replaces the survey data files of interest. The project file is
// always watched. Directories are added as needed and never removed.
func (w *Watcher) SetFiles(paths []string) error {
	files := map[string]bool{w.project: true}
	for _, p := range paths {
		abs, err := filepath.Abs(filepath.FromSlash(p))
		if err != nil {
			return fmt.Errorf("watch.SetFiles: %w", err)
		}
		files[abs] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = files
	for f := range files {
		dir := filepath.Dir(f)
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch.SetFiles: watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	return nil
}

// Run delivers debounced changes to reload until ctx is cancelled. It
// closes the underlying watcher before returning, so a Watcher runs once.
func (w *Watcher) Run(ctx context.Context, reload ReloadFunc) error {
	defer w.fsw.Close()

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "watch error", logging.Err(err))

		case now := <-ticker.C:
			if changed := w.settled(now); len(changed) > 0 {
				w.log.Info(ctx, "files changed", logging.Any("paths", changed))
				reload(ctx, changed)
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[name] {
		return
	}
	w.log.Debug(ctx, "file event", logging.String("path", name), logging.String("op", event.Op.String()))
	w.pending[name] = time.Now()
}

// settled removes and returns the pending paths quiet for at least the
// debounce interval.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(out)
	return out
}
