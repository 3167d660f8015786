package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period FileWatcher waits for before reloading.
const DefaultDebounce = 250 * time.Millisecond

// WatcherConfig configures a FileWatcher.
type WatcherConfig struct {
	// Path is the rules file or directory to watch.
	Path string

	// Debounce is how long the watcher waits after the last change before
	// reloading (default DefaultDebounce).
	Debounce time.Duration
}

// FileWatcher watches rule files and calls a reload function after each
// burst of changes. Directories are watched recursively, including ones
// created after the watch started.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	config   WatcherConfig
	debounce *Debouncer
	logger   *slog.Logger

	// file is set when a single file is watched.
	file string

	mu      sync.Mutex
	running bool
}

// NewFileWatcher creates a watcher for config.Path.
func NewFileWatcher(config WatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		config:   config,
		debounce: NewDebouncer(config.Debounce),
		logger:   logger.With("component", "rules-watcher"),
	}, nil
}

// Watch blocks until ctx is cancelled, calling onChange after file changes
// settle. Calls to onChange never overlap. A failed reload is logged and
// watching continues. The watcher cannot be reused after Watch returns.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func(ctx context.Context) error) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.debounce.Stop()
		if err := fw.watcher.Close(); err != nil {
			fw.logger.Warn("failed to close watcher", "error", err)
		}
	}()

	if err := fw.addPath(fw.config.Path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.config.Path, err)
	}

	fw.logger.Info("watching rules",
		"path", fw.config.Path,
		"debounce_ms", fw.config.Debounce.Milliseconds(),
	)

	reload := func() {
		fw.logger.Info("rules changed, reloading", "path", fw.config.Path)
		if err := onChange(ctx); err != nil {
			fw.logger.Error("rules reload failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("rules watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(filepath.Base(event.Name)) {
					if err := fw.addDirectory(event.Name); err != nil {
						fw.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					fw.debounce.Trigger(reload)
					continue
				}
			}

			if !fw.shouldProcess(event) {
				continue
			}
			fw.logger.Debug("rules file event", "path", event.Name, "op", event.Op.String())
			fw.debounce.Trigger(reload)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("rules watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fw.addDirectory(path)
	}
	// Watch the parent so that editors replacing the file are noticed.
	fw.file = filepath.Clean(path)
	return fw.watcher.Add(filepath.Dir(path))
}

func (fw *FileWatcher) addDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		return nil
	})
}

func (fw *FileWatcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if fw.file != "" {
		return filepath.Clean(event.Name) == fw.file
	}
	if isHidden(filepath.Base(event.Name)) {
		return false
	}
	return hasRuleExtension(event.Name)
}

// Debouncer runs the most recently triggered callback once no trigger has
// arrived for the configured interval. Callbacks run one at a time.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool

	run sync.Mutex
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one and restarting
// the quiet period.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	cb := d.callback
	d.callback = nil
	stopped := d.stopped
	d.mu.Unlock()

	if stopped || cb == nil {
		return
	}

	d.run.Lock()
	defer d.run.Unlock()
	cb()
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
