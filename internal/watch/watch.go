package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reruns a function whenever one of its targets changes.
type Watcher struct {
	targets  []string
	debounce time.Duration
	log      *zap.Logger
}

// New creates a watcher. Targets may be files or directories; files are
// watched through their parent directory so editors that replace them on
// save are still seen.
func New(targets []string, debounce time.Duration, log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{targets: targets, debounce: debounce, log: log}
}

// Run calls fn once, then again after every settled burst of changes, until
// ctx is cancelled. Errors from fn are logged and do not stop the watch.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	match, err := w.add(fw)
	if err != nil {
		return err
	}

	w.runOnce(ctx, fn)

	pending := time.NewTimer(w.debounce)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !match(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			w.log.Debug("change detected", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			pending.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-pending.C:
			w.runOnce(ctx, fn)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		w.log.Error("run failed", zap.Error(err))
	}
}

// add registers the targets and returns a filter for event paths.
func (w *Watcher) add(fw *fsnotify.Watcher) (func(string) bool, error) {
	files := make(map[string]bool)
	var dirs []string
	watched := make(map[string]bool)

	for _, t := range w.targets {
		abs, err := filepath.Abs(t)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", t, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.log.Warn("not watching missing path", zap.String("path", abs))
			continue
		}
		dir := abs
		if info.IsDir() {
			dirs = append(dirs, abs)
		} else {
			files[abs] = true
			dir = filepath.Dir(abs)
		}
		if watched[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
		watched[dir] = true
		w.log.Info("watching", zap.String("path", dir))
	}

	if len(watched) == 0 {
		return nil, fmt.Errorf("none of the watch targets exist: %s", strings.Join(w.targets, ", "))
	}

	return func(name string) bool {
		abs, err := filepath.Abs(name)
		if err != nil {
			return false
		}
		if files[abs] {
			return true
		}
		for _, d := range dirs {
			if filepath.Dir(abs) == d {
				return true
			}
		}
		return false
	}, nil
}
