// Package watch reruns work when source files change.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Op is a set of file system changes.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
	{OpChmod, "CHMOD"},
}

func (o Op) String() string {
	var parts []string
	for _, n := range opNames {
		if o&n.op != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Has reports whether any of the bits in x is set.
func (o Op) Has(x Op) bool { return o&x != 0 }

// Event describes one change.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Watcher wraps an OS-native notifier.
type Watcher struct {
	w    *fsnotify.Watcher
	evC  chan Event
	erC  chan error
	done chan struct{}
	log  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New creates a watcher and starts its event loop. A nil logger discards
// output.
func New(logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fw := &Watcher{
		w:    w,
		evC:  make(chan Event, 128),
		erC:  make(chan error, 1),
		done: make(chan struct{}),
		log:  logger,
	}
	go fw.loop()
	return fw, nil
}

func translate(in fsnotify.Op) Op {
	var op Op
	if in.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if in.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if in.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if in.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if in.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (fw *Watcher) loop() {
	defer close(fw.evC)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			select {
			case fw.evC <- Event{Path: ev.Name, Op: translate(ev.Op), Time: time.Now()}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.erC <- err:
			default:
				fw.log.Warn("watch error dropped", zap.Error(err))
			}
		case <-fw.done:
			return
		}
	}
}

func (fw *Watcher) Events() <-chan Event  { return fw.evC }
func (fw *Watcher) Errors() <-chan error  { return fw.erC }
func (fw *Watcher) Add(name string) error { return fw.w.Add(name) }

// Close stops the event loop and releases the notifier. It is safe to call
// from several goroutines; every call returns the result of the first.
func (fw *Watcher) Close() error {
	fw.closeOnce.Do(func() {
		close(fw.done)
		fw.closeErr = fw.w.Close()
	})
	return fw.closeErr
}

// Run watches the given files and calls fn after each write or create of one
// of them. Parent directories are watched so that editors replacing a file by
// rename are still observed. Run returns nil when ctx is cancelled and the
// first error returned by fn otherwise.
func (fw *Watcher) Run(ctx context.Context, paths []string, fn func(Event) error) error {
	files := make(map[string]bool, len(paths))
	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return errors.Wrapf(err, "resolve %s", p)
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return errors.Wrapf(err, "watch %s", dir)
		}
		dirs[dir] = true
	}
	fw.log.Info("watching", zap.Strings("files", paths))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.evC:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Path)
			if err != nil || !files[abs] || !ev.Op.Has(OpWrite|OpCreate) {
				continue
			}
			fw.log.Debug("change detected", zap.String("path", ev.Path), zap.Stringer("op", ev.Op))
			ev.Path = abs
			if err := fn(ev); err != nil {
				return err
			}
		case err := <-fw.erC:
			fw.log.Warn("watch error", zap.Error(err))
		}
	}
}
