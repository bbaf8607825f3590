package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRecognizer struct {
	mu     sync.Mutex
	active int
	peak   int
	calls  atomic.Int32
	closed atomic.Bool
	delay  time.Duration
	text   string
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ image.Image) (string, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()

	time.Sleep(f.delay)
	f.calls.Add(1)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return f.text, nil
}

func (f *fakeRecognizer) Close() error {
	f.closed.Store(true)
	return nil
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 255, A: 255})
		}
	}
	return img
}

func TestPoolBoundsConcurrency(t *testing.T) {
	rec := &fakeRecognizer{delay: 20 * time.Millisecond, text: "ENEMY DOWNED"}
	pool := NewPool(zerolog.Nop(), rec, 2)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := pool.Recognize(context.Background(), testImage(4, 4))
			if err != nil || text != "ENEMY DOWNED" {
				t.Errorf("Recognize = %q, %v", text, err)
			}
		}()
	}
	wg.Wait()

	if got := rec.calls.Load(); got != 6 {
		t.Errorf("expected 6 calls, got %d", got)
	}
	if rec.peak > 2 {
		t.Errorf("expected at most 2 concurrent recognitions, saw %d", rec.peak)
	}
}

func TestPoolClose(t *testing.T) {
	rec := &fakeRecognizer{}
	pool := NewPool(zerolog.Nop(), rec, 1)

	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rec.closed.Load() {
		t.Error("backend not closed")
	}
	if err := pool.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := pool.Recognize(context.Background(), testImage(1, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPoolCancelledContext(t *testing.T) {
	rec := &fakeRecognizer{delay: 200 * time.Millisecond}
	pool := NewPool(zerolog.Nop(), rec, 1)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := pool.Recognize(ctx, testImage(1, 1)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestTesseractArgs(t *testing.T) {
	tests := []struct {
		name string
		opts TesseractOptions
		want []string
	}{
		{"defaults", TesseractOptions{Language: "eng", PSM: 6}, []string{"stdin", "stdout", "-l", "eng", "--psm", "6"}},
		{"bare", TesseractOptions{}, []string{"stdin", "stdout"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tesseractArgs(tt.opts)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("  ENEMY\n DOWNED \n\n"); got != "ENEMY DOWNED" {
		t.Errorf("normalize = %q", got)
	}
}

func TestRemoteRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "image/png" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if _, err := png.Decode(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text": "ENEMY\nDOWNED"}`)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, time.Second)
	defer r.Close()

	text, err := r.Recognize(context.Background(), testImage(8, 8))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "ENEMY DOWNED" {
		t.Errorf("text = %q", text)
	}
}

func TestRemoteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, time.Second)
	if _, err := r.Recognize(context.Background(), testImage(2, 2)); err == nil {
		t.Error("expected error for 503")
	}
}

func TestPixelsGeometry(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		wantW int
	}{
		{"wide crop", 200, 40, 240},
		{"capped", 2000, 40, 320},
		{"narrow", 10, 48, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, w := pixels(testImage(tt.w, tt.h), recHeight, recMaxWidth)
			if w != tt.wantW {
				t.Errorf("width = %d, want %d", w, tt.wantW)
			}
			if len(data) != 3*recHeight*w {
				t.Errorf("len = %d, want %d", len(data), 3*recHeight*w)
			}
			for _, v := range data {
				if v < -1 || v > 1 {
					t.Fatalf("value %f out of range", v)
				}
			}
		})
	}
}

func TestCTCGreedy(t *testing.T) {
	dict := []string{"A", "B", " "}
	// classes: 0 blank, 1 A, 2 B, 3 space; decodes A A _ A space B
	steps := [][]float32{
		{0.1, 0.8, 0.05, 0.05},
		{0.1, 0.8, 0.05, 0.05},
		{0.9, 0.05, 0.03, 0.02},
		{0.1, 0.8, 0.05, 0.05},
		{0.1, 0.1, 0.1, 0.7},
		{0.1, 0.1, 0.7, 0.1},
	}
	var flat []float32
	for _, s := range steps {
		flat = append(flat, s...)
	}
	if got := ctcGreedy(flat, len(steps), 4, dict); got != "AA B" {
		t.Errorf("ctcGreedy = %q, want %q", got, "AA B")
	}
}
