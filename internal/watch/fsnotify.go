package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FSWatcher is a Watcher backed by the host OS's inotify/kqueue/ReadDirectoryChanges
// facility via fsnotify. It watches a single repository root recursively,
// adding new directories to the watch set as they are created.
type FSWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
}

// NewFSWatcher creates a watcher rooted at root and starts watching root
// and all of its subdirectories. The caller must call Close to release
// the underlying OS resources.
func NewFSWatcher(root string) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	fw := &FSWatcher{
		root:    root,
		watcher: w,
		events:  make(chan Event, 1024),
		errors:  make(chan error, 16),
		done:    make(chan struct{}),
	}

	if err := fw.addTree(root); err != nil {
		w.Close()
		return nil, err
	}

	go fw.run()
	return fw, nil
}

func (fw *FSWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
		return nil
	})
}

func (fw *FSWatcher) run() {
	for {
		select {
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleRaw(ev)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		case <-fw.done:
			return
		}
	}
}

func (fw *FSWatcher) handleRaw(ev fsnotify.Event) {
	rel, err := filepath.Rel(fw.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return
	}

	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			fw.watcher.Add(ev.Name)
		}
		fw.emit(Event{Path: rel, Kind: EventModified})
	case ev.Op&fsnotify.Write == fsnotify.Write:
		fw.emit(Event{Path: rel, Kind: EventModified})
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		fw.emit(Event{Path: rel, Kind: EventRemoved})
	}
}

func (fw *FSWatcher) emit(ev Event) {
	select {
	case fw.events <- ev:
	case <-fw.done:
	}
}

// Events returns the channel of translated, repository-relative events.
func (fw *FSWatcher) Events() <-chan Event { return fw.events }

// Errors returns the channel of underlying watch errors.
func (fw *FSWatcher) Errors() <-chan error { return fw.errors }

// Close stops the watch goroutine and releases the OS watch handles.
func (fw *FSWatcher) Close() error {
	close(fw.done)
	return fw.watcher.Close()
}

var _ Watcher = (*FSWatcher)(nil)
