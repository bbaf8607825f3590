// Package music hands out background tracks without repeats.
package music

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kikiluvv/killreel/pkg/util"
)

// Pool is a shuffled set of tracks drawn without replacement. It is safe for
// concurrent use.
type Pool struct {
	mu     sync.Mutex
	tracks []string
	total  int
}

// NewPool shuffles tracks with rng. A nil rng uses the global source.
func NewPool(tracks []string, rng *rand.Rand) *Pool {
	shuffled := append([]string(nil), tracks...)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return &Pool{tracks: shuffled, total: len(shuffled)}
}

// LoadDir builds a pool from the audio files directly inside dir. A missing
// directory yields an empty pool.
func LoadDir(dir string, rng *rand.Rand) (*Pool, error) {
	tracks, err := ListTracks(dir)
	if err != nil {
		return nil, err
	}
	return NewPool(tracks, rng), nil
}

// ListTracks returns the audio files in dir in name order
func ListTracks(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read music dir: %w", err)
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() || !util.IsAudioFile(e.Name()) {
			continue
		}
		tracks = append(tracks, filepath.Join(dir, e.Name()))
	}
	sort.Strings(tracks)
	return tracks, nil
}

// Seeded returns a deterministic rng for seed, or nil for seed 0
func Seeded(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
}

// Draw removes and returns one track. ok is false once the pool is empty
// and on a nil pool.
func (p *Pool) Draw() (track string, ok bool) {
	if p == nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tracks) == 0 {
		return "", false
	}
	last := len(p.tracks) - 1
	track = p.tracks[last]
	p.tracks = p.tracks[:last]
	return track, true
}

// Len returns how many tracks remain
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

// Total returns the pool size before any draws
func (p *Pool) Total() int {
	if p == nil {
		return 0
	}
	return p.total
}
