package config

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher rebuilds the Runtime when the configuration file or one of its
// schema files changes. Failed rebuilds are logged and the previous Runtime
// stays in effect; rebuilds with an unchanged digest are skipped.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *zap.Logger
	apply    func(*Runtime)
	current  *Runtime
}

// NewWatcher returns a Watcher for the config at path. current is the
// Runtime already in effect; apply receives every replacement.
func NewWatcher(path string, current *Runtime, log *zap.Logger, apply func(*Runtime)) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	debounce := time.Duration(defaultDebounceMs) * time.Millisecond
	if current != nil && current.Config != nil {
		debounce = time.Duration(current.Config.Reload.DebounceMs) * time.Millisecond
	}
	return &Watcher{path: path, debounce: debounce, log: log, apply: apply, current: current}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	watched := map[string]bool{}
	files := map[string]bool{}
	addWatches := func(rt *Runtime) {
		paths := []string{w.path}
		if rt != nil && rt.Config != nil {
			paths = append(paths, rt.Config.SchemaFiles()...)
		}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				continue
			}
			files[abs] = true
			// editors replace files by rename, so watch directories
			dir := filepath.Dir(abs)
			if watched[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				w.log.Warn("config watch failed", zap.String("dir", dir), zap.Error(err))
				continue
			}
			watched[dir] = true
		}
	}
	addWatches(w.current)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.log.Info("config auto-reload enabled", zap.String("path", w.path), zap.Duration("debounce", w.debounce))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timerC:
			timerC = nil
			if rt := w.reload(); rt != nil {
				addWatches(rt)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", zap.Error(err))
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldTriggerReload(evt, files) {
				resetTimer()
			}
		}
	}
}

// reload returns the new Runtime when one was applied.
func (w *Watcher) reload() *Runtime {
	rt, err := LoadRuntime(w.path)
	if err != nil {
		w.log.Error("config reload failed; keeping previous configuration", zap.Error(err))
		return nil
	}
	if w.current != nil && rt.Digest == w.current.Digest {
		w.log.Debug("config unchanged", zap.String("path", w.path))
		return nil
	}
	w.current = rt
	w.apply(rt)
	w.log.Info("config reloaded", zap.String("path", w.path), zap.String("binding", rt.Pipeline.Binding().String()),
		zap.Stringer("limits", rt.Pipeline.Limits()))
	return rt
}

func shouldTriggerReload(evt fsnotify.Event, files map[string]bool) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(evt.Name)
	if err != nil {
		return false
	}
	return files[abs]
}
