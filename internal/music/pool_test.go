package music

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

func TestDrawWithoutReplacement(t *testing.T) {
	tracks := []string{"a.mp3", "b.mp3", "c.wav", "d.aac"}
	p := NewPool(tracks, Seeded(42))

	seen := make(map[string]bool)
	for i := 0; i < len(tracks); i++ {
		track, ok := p.Draw()
		if !ok {
			t.Fatalf("draw %d failed with %d tracks", i+1, len(tracks))
		}
		if seen[track] {
			t.Fatalf("track %s returned twice", track)
		}
		seen[track] = true
	}

	if track, ok := p.Draw(); ok || track != "" {
		t.Errorf("draw past exhaustion returned %q, %v", track, ok)
	}
	if p.Len() != 0 || p.Total() != 4 {
		t.Errorf("Len=%d Total=%d", p.Len(), p.Total())
	}
}

func TestEmptyPool(t *testing.T) {
	p := NewPool(nil, nil)
	if _, ok := p.Draw(); ok {
		t.Error("empty pool must not yield a track")
	}
}

func TestNewPoolDoesNotAliasInput(t *testing.T) {
	tracks := []string{"a.mp3", "b.mp3"}
	p := NewPool(tracks, Seeded(1))
	p.Draw()
	if tracks[0] != "a.mp3" || tracks[1] != "b.mp3" {
		t.Errorf("input slice modified: %v", tracks)
	}
}

func TestConcurrentDraws(t *testing.T) {
	var tracks []string
	for i := 0; i < 50; i++ {
		tracks = append(tracks, filepath.Join("m", string(rune('A'+i%26))+string(rune('a'+i/26))+".mp3"))
	}
	p := NewPool(tracks, nil)

	var (
		mu  sync.Mutex
		got []string
		wg  sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				track, ok := p.Draw()
				if !ok {
					return
				}
				mu.Lock()
				got = append(got, track)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(got) != len(tracks) {
		t.Fatalf("drew %d tracks, want %d", len(got), len(tracks))
	}
	sort.Strings(got)
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("duplicate track %s", got[i])
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.mp3", "two.m4a", "cover.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0755); err != nil {
		t.Fatal(err)
	}

	p, err := LoadDir(dir, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if p.Total() != 2 {
		t.Errorf("expected 2 tracks, got %d", p.Total())
	}
}

func TestLoadDirMissing(t *testing.T) {
	p, err := LoadDir(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if p.Total() != 0 {
		t.Errorf("expected empty pool, got %d", p.Total())
	}
}
