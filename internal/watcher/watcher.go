// Package watcher turns a drop folder into a stream of finished recordings.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog"
)

// OnReady is called once a video file has stopped changing
type OnReady func(path string)

// Watcher monitors one directory. A file is reported after it has seen no
// writes for the debounce period.
type Watcher struct {
	logger   zerolog.Logger
	dir      string
	delay    time.Duration
	callback OnReady
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	debounce map[string]*time.Timer
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for dir
func New(logger zerolog.Logger, dir string, delay time.Duration, cb OnReady) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Watcher{
		logger:   logger.With().Str("component", "watcher").Logger(),
		dir:      dir,
		delay:    delay,
		callback: cb,
		watcher:  fw,
		debounce: make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Start processes events in the background
func (w *Watcher) Start() {
	go w.eventLoop()
	w.logger.Info().Str("dir", w.dir).Dur("debounce", w.delay).Msg("watching for recordings")
}

// Stop ends the event loop and cancels pending callbacks
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()

		w.mu.Lock()
		for name, timer := range w.debounce {
			timer.Stop()
			delete(w.debounce, name)
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watch error")
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") {
		return
	}
	if !util.IsVideoFile(event.Name) {
		return
	}

	name := event.Name
	if event.Has(fsnotify.Remove) {
		w.cancel(name)
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	// A rename event names the old path; only the new name fires a create.
	if event.Has(fsnotify.Rename) && !util.FileExists(name) {
		w.cancel(name)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stop:
		return
	default:
	}
	if timer, ok := w.debounce[name]; ok {
		timer.Stop()
	}
	w.debounce[name] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.debounce, name)
		w.mu.Unlock()

		w.logger.Info().Str("input", name).Msg("recording ready")
		w.callback(name)
	})
}

func (w *Watcher) cancel(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[name]; ok {
		timer.Stop()
		delete(w.debounce, name)
	}
}
