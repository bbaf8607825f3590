package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type readyLog struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newReadyLog() *readyLog {
	return &readyLog{ch: make(chan string, 8)}
}

func (r *readyLog) add(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.ch <- path
}

func TestWatcherReportsVideoAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	ready := newReadyLog()

	w, err := New(zerolog.Nop(), dir, 100*time.Millisecond, ready.add)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Start()
	defer w.Stop()

	video := filepath.Join(dir, "session.mp4")
	f, err := os.Create(video)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		f.Write([]byte("data"))
		time.Sleep(20 * time.Millisecond)
	}
	f.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden.mp4"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ready.ch:
		if got != video {
			t.Errorf("ready = %s, want %s", got, video)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for recording")
	}

	time.Sleep(300 * time.Millisecond)
	ready.mu.Lock()
	defer ready.mu.Unlock()
	if len(ready.paths) != 1 {
		t.Errorf("expected exactly one callback, got %v", ready.paths)
	}
}

func TestWatcherStopCancelsPending(t *testing.T) {
	dir := t.TempDir()
	ready := newReadyLog()

	w, err := New(zerolog.Nop(), dir, 200*time.Millisecond, ready.add)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, "a.webm"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()

	select {
	case got := <-ready.ch:
		t.Errorf("unexpected callback for %s after Stop", got)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestNewMissingDir(t *testing.T) {
	if _, err := New(zerolog.Nop(), filepath.Join(t.TempDir(), "missing"), time.Second, func(string) {}); err == nil {
		t.Error("expected error for missing directory")
	}
}
