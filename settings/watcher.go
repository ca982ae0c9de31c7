package settings

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/c360/swarmpulse/errors"
)

// DefaultDebounce collapses bursts of writes from editors and atomic renames.
const DefaultDebounce = 250 * time.Millisecond

// WatcherOption configures a FileWatcher
type WatcherOption func(*FileWatcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// FileWatcher reloads a settings file into a Store when it changes.
// The parent directory is watched so replace-by-rename saves are seen.
type FileWatcher struct {
	path     string
	store    *Store
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFileWatcher creates a watcher for path feeding store.
func NewFileWatcher(path string, store *Store, opts ...WatcherOption) *FileWatcher {
	w := &FileWatcher{
		path:     filepath.Clean(path),
		store:    store,
		debounce: DefaultDebounce,
		logger:   slog.Default().With("component", "settings-watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start loads the file once and begins watching. It is a no-op when running.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	if err := w.reload(); err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapTransient(err, "FileWatcher", "Start", "create settings directory")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapTransient(err, "FileWatcher", "Start", "create watcher")
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return errors.WrapTransient(err, "FileWatcher", "Start", "watch directory")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = fw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx, fw, w.done)

	w.logger.Info("Watching settings file", "path", w.path)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	fw, cancel, done := w.watcher, w.cancel, w.done
	w.watcher, w.cancel, w.done = nil, nil, nil
	w.mu.Unlock()

	if fw == nil {
		return
	}
	cancel()
	<-done
	if err := fw.Close(); err != nil {
		w.logger.Warn("Closing settings watcher failed", "error", err)
	}
}

func (w *FileWatcher) run(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Settings watcher error", "error", err)

		case <-timer.C:
			if err := w.reload(); err != nil {
				w.logger.Warn("Settings reload failed, keeping previous settings", "path", w.path, "error", err)
			}
		}
	}
}

// reload applies the file to the store. A missing file leaves the store untouched.
func (w *FileWatcher) reload() error {
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		return nil
	}
	s, err := Load(w.path)
	if err != nil {
		return err
	}
	changed, err := w.store.Set(s)
	if err != nil {
		return err
	}
	if changed {
		w.logger.Info("Settings reloaded", "path", w.path, "enabled", s.Enabled, "url", s.URL)
	}
	return nil
}
