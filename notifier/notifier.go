package notifier

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/magdyamr542/gindev/events"
	"github.com/magdyamr542/gindev/matcher"
)

// A notifier watches a set of root directories recursively and emits events
// when a file below them is added, changed or removed. Errors are sent over
// the error channel. The notifier keeps watching until ctx is done or the
// returned Closer is called.
type Notifier interface {
	Notify(ctx context.Context, roots []string, events chan<- events.Event, errors chan<- error) (Closer, error)
}

// Closer stops watching. It is safe to call more than once.
type Closer func() error

// IgnoreFunc reports whether a project-relative path must not be watched.
type IgnoreFunc func(rel string) bool

type notifier struct {
	projectDir string
	ignore     IgnoreFunc
	logger     hclog.Logger
}

func New(projectDir string, ignore IgnoreFunc, logger hclog.Logger) Notifier {
	if ignore == nil {
		ignore = func(string) bool { return false }
	}
	return &notifier{projectDir: projectDir, ignore: ignore, logger: logger}
}

func (n *notifier) Notify(ctx context.Context,
	roots []string,
	eventCh chan<- events.Event,
	errorCh chan<- error) (Closer, error) {

	// Create new watcher.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	var once sync.Once
	closer := func() error {
		var err error
		once.Do(func() { err = watcher.Close() })
		return err
	}

	// Roots that fail are reported and skipped; the rest keep working.
	for _, root := range roots {
		if err := n.addRecursive(watcher, root, true, nil); err != nil {
			n.logger.Error("watch root failed", "root", root, "error", err)
			sendErr(ctx, errorCh, fmt.Errorf("watch %s: %w", root, err))
		}
	}

	// Start listening for events.
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				n.handle(ctx, watcher, event, eventCh)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				n.logger.Error("watcher error", "error", err)
				sendErr(ctx, errorCh, err)
			case <-ctx.Done():
				n.logger.Debug("stopping the files watcher")
				return
			}
		}
	}()

	return closer, nil
}

func (n *notifier) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event, eventCh chan<- events.Event) {
	rel := matcher.Relative(n.projectDir, event.Name)
	if n.ignore(rel) {
		return
	}

	var op events.Op
	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files may land before the watch is in place; report what is already there.
			found := func(path, rel string) { emit(ctx, eventCh, events.OpAdd, path, rel) }
			if err := n.addRecursive(watcher, event.Name, false, found); err != nil {
				n.logger.Warn("watch new directory failed", "path", rel, "error", err)
			}
			return
		}
		op = events.OpAdd
	case event.Has(fsnotify.Write):
		op = events.OpChange
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = events.OpUnlink
	default:
		return
	}

	emit(ctx, eventCh, op, event.Name, rel)
}

func emit(ctx context.Context, eventCh chan<- events.Event, op events.Op, file, rel string) {
	select {
	case eventCh <- events.Event{Op: op, File: file, Rel: rel, Timestamp: time.Now()}:
	case <-ctx.Done():
	}
}

// addRecursive watches dir and every directory below it that is not ignored.
// The root itself is exempt from the ignore predicate. found, if set, is
// called for every regular file that is not ignored.
func (n *notifier) addRecursive(watcher *fsnotify.Watcher, dir string, isRoot bool, found func(path, rel string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			n.logger.Warn("error walking path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			if found != nil && d.Type().IsRegular() {
				if rel := matcher.Relative(n.projectDir, path); !n.ignore(rel) {
					found(path, rel)
				}
			}
			return nil
		}
		if !(isRoot && path == dir) && n.ignore(matcher.Relative(n.projectDir, path)) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			if path == dir {
				return err
			}
			n.logger.Warn("failed to add subdirectory", "path", path, "error", err)
			return nil
		}
		n.logger.Trace("added watch path", "path", path)
		return nil
	})
}

func sendErr(ctx context.Context, errorCh chan<- error, err error) {
	if errorCh == nil {
		return
	}
	select {
	case errorCh <- err:
	case <-ctx.Done():
	default:
	}
}
