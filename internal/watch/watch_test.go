package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		in   fsnotify.Op
		want Op
	}{
		{fsnotify.Create, OpCreate},
		{fsnotify.Write | fsnotify.Chmod, OpWrite | OpChmod},
		{fsnotify.Remove, OpRemove},
		{fsnotify.Rename, OpRename},
		{0, 0},
	}
	for _, c := range cases {
		if got := translate(c.in); got != c.want {
			t.Fatalf("translate(%v): want %v, got %v", c.in, c.want, got)
		}
	}
}

func TestOpString(t *testing.T) {
	if s := (OpCreate | OpWrite).String(); s != "CREATE|WRITE" {
		t.Fatalf("want CREATE|WRITE, got %s", s)
	}
	if s := Op(0).String(); s != "NONE" {
		t.Fatalf("want NONE, got %s", s)
	}
}

func TestRunCallsOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "kernel.tir")
	other := filepath.Join(dir, "other.tir")
	if err := os.WriteFile(target, []byte("func f() {\n}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	stop := errors.New("stop")
	seen := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background(), []string{target}, func(ev Event) error {
			seen <- ev.Path
			return stop
		})
	}()

	// Give Run time to register the directory, then touch an unrelated file
	// before the watched one.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.WriteFile(target, []byte("func g() {\n}\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case p := <-seen:
		if p != target {
			t.Fatalf("want %s, got %s", target, p)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no change reported")
	}
	if err := <-done; err != stop {
		t.Fatalf("want callback error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "a.tir")
	if err := w.Run(ctx, []string{path}, func(Event) error { return nil }); err != nil {
		t.Fatalf("want nil on cancellation, got %v", err)
	}
}

func TestRunMissingDirectory(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	path := filepath.Join(t.TempDir(), "absent", "a.tir")
	if err := w.Run(context.Background(), []string{path}, func(Event) error { return nil }); err == nil {
		t.Fatalf("watching a missing directory must fail")
	}
}

func TestCloseConcurrent(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(w.Close)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close again: %v", err)
	}

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Fatalf("want the event channel closed")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("event loop did not stop")
	}
}
