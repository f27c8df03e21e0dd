package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// Watcher wraps fsnotify behind the idle -> starting -> ready -> (paused? ->
// active) -> stopping -> idle state machine from the design. Symlinks are
// never followed.
type Watcher struct {
	cfg       Config
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer

	mu       sync.Mutex
	state    State
	stopCh   chan struct{}
	doneCh   chan struct{}
	rootAbs  string
}

// New constructs a Watcher in the idle state.
func New(cfg Config) *Watcher {
	cfg = cfg.WithDefaults()
	return &Watcher{cfg: cfg, state: StateIdle}
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start performs the initial recursive scan synchronously, then begins
// watching in the background. It returns once the initial scan completes
// (the watcher is "ready"). Errors during the initial scan reject Start and
// leave the watcher idle; Start while active or paused fails with
// ErrAlreadyWatching.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateActive || w.state == StatePaused {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}
	w.state = StateStarting
	w.mu.Unlock()

	rootAbs, err := filepath.Abs(w.cfg.Root)
	if err != nil {
		w.setState(StateIdle)
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.rootAbs = rootAbs

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.setState(StateIdle)
		return diagnoseWatcherError(err)
	}

	if err := addRecursive(fsw, rootAbs, w.cfg.ExcludedDirs); err != nil {
		_ = fsw.Close()
		w.setState(StateIdle)
		return diagnoseWatcherError(err)
	}

	w.mu.Lock()
	w.fsWatcher = fsw
	w.debouncer = NewDebouncer(w.cfg.DebounceInterval, w.cfg.OnBatch)
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.state = StateActive
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	go w.run(ctx, stopCh, doneCh)
	return nil
}

// Stop is idempotent; it clears pending debounce state (timer, queue, pause
// flag) and returns to idle. Restart is allowed afterward.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.state == StateIdle {
		w.mu.Unlock()
		return nil
	}
	w.state = StateStopping
	stopCh := w.stopCh
	doneCh := w.doneCh
	fsw := w.fsWatcher
	debouncer := w.debouncer
	w.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	if debouncer != nil {
		debouncer.Stop()
	}
	if fsw != nil {
		_ = fsw.Close()
	}
	if doneCh != nil {
		<-doneCh
	}

	w.setState(StateIdle)
	return nil
}

// Pause causes subsequent events to be dropped, not queued, until Resume.
func (w *Watcher) Pause() {
	w.mu.Lock()
	if w.state == StateActive {
		w.state = StatePaused
	}
	debouncer := w.debouncer
	w.mu.Unlock()
	if debouncer != nil {
		debouncer.Pause()
	}
}

// Resume reverses Pause.
func (w *Watcher) Resume() {
	w.mu.Lock()
	if w.state == StatePaused {
		w.state = StateActive
	}
	debouncer := w.debouncer
	w.mu.Unlock()
	if debouncer != nil {
		debouncer.Resume()
	}
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// After-ready errors are logged; watching continues.
			slog.Warn("watcher_error", slog.String("error", diagnoseWatcherError(err).Error()))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	info, statErr := os.Lstat(ev.Name)
	if statErr == nil && info.Mode()&os.ModeSymlink != 0 {
		return
	}

	isDir := statErr == nil && info.IsDir()

	relPath, err := filepath.Rel(w.rootAbs, ev.Name)
	if err != nil {
		relPath = ev.Name
	}
	relPath = toForwardSlash(relPath)

	if isDir {
		if ev.Op&fsnotify.Create != 0 && !w.isExcludedPath(relPath) {
			_ = w.fsWatcher.Add(ev.Name)
		}
		return
	}

	if w.shouldDrop(relPath) {
		return
	}

	var eventType EventType
	switch {
	case ev.Op&fsnotify.Create != 0:
		eventType = EventAdd
	case ev.Op&fsnotify.Write != 0:
		eventType = EventChange
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		eventType = EventUnlink
	case ev.Op&fsnotify.Chmod != 0:
		return
	default:
		return
	}

	w.debouncer.Add(relPath, eventType)
}

// shouldDrop reports whether relPath is a dotfile, extensionless, has an
// unregistered extension, or sits under an excluded directory.
func (w *Watcher) shouldDrop(relPath string) bool {
	if w.isExcludedPath(relPath) {
		return true
	}
	base := filepath.Base(relPath)
	if strings.HasPrefix(base, ".") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return true
	}
	if len(w.cfg.Extensions) > 0 && !w.cfg.Extensions[ext] {
		return true
	}
	return false
}

func (w *Watcher) isExcludedPath(relPath string) bool {
	for _, segment := range strings.Split(relPath, "/") {
		if w.cfg.ExcludedDirs[segment] {
			return true
		}
	}
	return false
}

// addRecursive adds root and every non-excluded, non-symlink subdirectory
// to fsw.
func addRecursive(fsw *fsnotify.Watcher, root string, excluded map[string]bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return fsw.Add(path)
		}
		if excluded[d.Name()] {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func toForwardSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// diagnoseWatcherError annotates EMFILE failures with a pointer at the
// file-descriptor limit, per the design's error-handling note.
func diagnoseWatcherError(err error) error {
	if errors.Is(err, syscall.EMFILE) {
		return fmt.Errorf("%w: too many open files, raise the process file-descriptor limit (ulimit -n)", err)
	}
	return err
}
