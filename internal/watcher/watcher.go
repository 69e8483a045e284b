package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Filter decides which root-relative paths are watched
type Filter interface {
	ShouldIgnore(relPath string) bool
}

// Watcher reports settled changes to the documents under a docs root
type Watcher struct {
	root      string
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	filter    Filter
	isDoc     func(path string) bool
	stopCh    chan struct{}
}

// New creates a Watcher for root. isDoc selects the files whose changes are
// reported; filter may be nil.
func New(root string, debounceMs int, filter Filter, isDoc func(string) bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:      root,
		fs:        fsw,
		debouncer: NewDebouncer(debounceMs),
		filter:    filter,
		isDoc:     isDoc,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches root and every directory below it
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	go w.loop(ctx)

	slog.Info("watching docs", "path", w.root)
	return nil
}

// Changes returns the channel of settled document changes
func (w *Watcher) Changes() <-chan Change {
	return w.debouncer.Changes()
}

// Flush emits pending changes without waiting for the quiet period
func (w *Watcher) Flush() {
	w.debouncer.Flush()
}

// Stop stops watching
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fs.Close()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("error walking path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, ok := w.rel(event.Name)
	if !ok || w.ignored(rel) {
		return
	}

	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()

	switch {
	case event.Has(fsnotify.Create):
		if isDir {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
		if w.isDoc(rel) {
			w.debouncer.Add(rel, OpCreate)
		}

	case event.Has(fsnotify.Write):
		if !isDir && w.isDoc(rel) {
			w.debouncer.Add(rel, OpWrite)
		}

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// the new name of a rename arrives as a create
		if w.isDoc(rel) {
			w.debouncer.Add(rel, OpRemove)
		}
	}
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) ignored(rel string) bool {
	return w.filter != nil && w.filter.ShouldIgnore(rel)
}
