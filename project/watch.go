package project

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"snap-blaster/debug"
	"snap-blaster/scene"
)

const debounceDuration = 100 * time.Millisecond

// Watcher reloads a project file whenever it changes on disk
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path. The parent directory is watched so
// editors that replace the file on save are still seen.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := formatOf(abs); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{path: abs, watcher: w}, nil
}

// Run calls fn with the reloaded project after each burst of changes,
// or with the load error. It returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, fn func(*scene.Project, error)) error {
	defer w.watcher.Close()

	timer := newDebounceTimer()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			resetDebounceTimer(timer)

		case <-timer.C:
			p, err := Load(w.path)
			debug.Log("project", "reload %s: err=%v", filepath.Base(w.path), err)
			fn(p, err)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			debug.Log("project", "watcher error: %v", err)
		}
	}
}

// Watch is NewWatcher followed by Run
func Watch(ctx context.Context, path string, fn func(*scene.Project, error)) error {
	w, err := NewWatcher(path)
	if err != nil {
		return err
	}
	return w.Run(ctx, fn)
}

func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

func resetDebounceTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(debounceDuration)
}
