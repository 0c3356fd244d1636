// Package watch monitors the data directory for changed inputs using
// github.com/fsnotify/fsnotify. It watches recursively, filters the
// event stream down to dataset and coverage artifacts, and debounces
// rapid events (editors and coverage exporters often trigger several
// writes per save).
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is how long a path stays muted after firing. Coverage
// exports rewrite the whole document, which inotify reports as a burst.
const debounceInterval = 250 * time.Millisecond

// Watcher monitors a data directory and reports changed input files.
type Watcher struct {
	fw      *fsnotify.Watcher
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New creates a file system watcher.
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:   fw,
		done: make(chan struct{}),
	}, nil
}

// Watch starts monitoring root recursively. onChange is called with
// the absolute path of each changed dataset or coverage file.
func (w *Watcher) Watch(root string, onChange func(path string)) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	// Register root and every subdirectory that can hold inputs.
	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != absRoot && ignoreDir(info.Name()) {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	lastFired := make(map[string]time.Time)
	var dmu sync.Mutex

	go func() {
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				path := event.Name

				// New directories join the watch list so files written
				// into them later are seen.
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(path); err == nil && info.IsDir() {
						if !ignoreDir(info.Name()) {
							w.fw.Add(path)
						}
						continue
					}
				}

				if !relevantFile(path) {
					continue
				}

				dmu.Lock()
				now := time.Now()
				if last, ok := lastFired[path]; ok && now.Sub(last) < debounceInterval {
					dmu.Unlock()
					continue
				}
				lastFired[path] = now
				dmu.Unlock()

				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					onChange(path)
				}

			case _, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				// fsnotify recovers on its own; the next event round
				// resumes normally.

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// Stop ends monitoring and releases all resources. Safe to call
// multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

// ignoreDir reports whether a directory and everything under it should
// stay outside the watch list.
func ignoreDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "__pycache__", "node_modules", "vendor":
		return true
	}
	return false
}

// relevantFile reports whether a change to path should trigger
// re-analysis. Inputs are CSV datasets and coverage JSON documents;
// everything else, editor droppings included, is noise.
func relevantFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".json":
		return true
	}
	return false
}
