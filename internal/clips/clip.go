package clips

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kikiluvv/killreel/internal/detect"
)

// Clip is a media file produced by one stage of the pipeline
type Clip struct {
	ID       string        `json:"id"`
	Path     string        `json:"path"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
	Part     int           `json:"part"`
	// Event is set on clips cut directly around a detected event.
	Event *detect.Event `json:"event,omitempty"`
	// Sources lists the files a merged or derived clip was built from.
	Sources []string `json:"sources,omitempty"`
}

// Failure records one artifact that could not be produced
type Failure struct {
	Item string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Item, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Tracker records intermediate files so they can be removed when a run ends
type Tracker struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]bool
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		seen: make(map[string]bool),
	}
}

// Add registers paths for cleanup
func (t *Tracker) Add(paths ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range paths {
		if p == "" || t.seen[p] {
			continue
		}
		t.seen[p] = true
		t.paths = append(t.paths, p)
	}
}

// AddClips registers the files behind clips
func (t *Tracker) AddClips(cs []Clip) {
	for _, c := range cs {
		t.Add(c.Path)
	}
}

// All returns tracked paths in registration order
func (t *Tracker) All() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// Cleanup removes every tracked file and forgets them. Missing files are
// ignored; other removal errors are returned per path.
func (t *Tracker) Cleanup() []Failure {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.seen = make(map[string]bool)
	t.mu.Unlock()

	var failures []Failure
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			failures = append(failures, Failure{Item: p, Err: err})
		}
	}
	return failures
}
