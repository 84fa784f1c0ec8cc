package rowan

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watcher reloads resources in place when their source files change on
// disk, pairing a Loader with the directory tree its DirFetcher reads
// from. Names of reloaded resources arrive on Events; reload and watch
// failures arrive on Errors. Both channels close after Close.
type Watcher struct {
	loader  *Loader
	root    string
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

// WatchAssets watches dirs for changes to files the loader has already
// loaded. root must match the DirFetcher root so changed paths resolve
// back to resource sources. Watching is not recursive; list each
// directory that holds live-edited assets. With no dirs, root itself is
// watched.
func WatchAssets(l *Loader, root string, dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		dirs = []string{root}
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		loader:  l,
		root:    root,
		watcher: fsw,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.Events)
	defer close(w.Errors)

	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < watchDebounce {
				continue
			}
			last[event.Name] = now
			w.reload(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			case <-w.closeCh:
				return
			}
		case <-w.closeCh:
			return
		}
	}
}

// reload maps a changed file back to the resource that was loaded from it
// and loads it again. Files no resource came from are ignored.
func (w *Watcher) reload(osPath string) {
	rel, err := filepath.Rel(w.root, osPath)
	if err != nil {
		return
	}
	res, ok := w.loader.ResourceFor(filepath.ToSlash(rel))
	if !ok {
		return
	}
	if err := w.loader.Reload(res.Name); err != nil {
		select {
		case w.Errors <- err:
		case <-w.closeCh:
		}
		return
	}
	debugf("reloaded %q after change to %s", res.Name, osPath)
	select {
	case w.Events <- res.Name:
	case <-w.closeCh:
	}
}
