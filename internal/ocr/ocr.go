// Package ocr recognizes text in cropped frame regions.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kikiluvv/killreel/internal/config"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Pool.Recognize after Close
var ErrClosed = errors.New("ocr pool closed")

// Recognizer extracts text from an image. An image without text yields "".
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// New builds the backend named in cfg
func New(logger zerolog.Logger, cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Backend {
	case config.BackendTesseract:
		return NewTesseract(TesseractOptions{
			Path:     cfg.TesseractPath,
			Language: cfg.Language,
			PSM:      cfg.PSM,
		})
	case config.BackendONNX:
		return NewONNX(logger, ONNXOptions{
			ModelPath:   cfg.ModelPath,
			DictPath:    cfg.DictPath,
			LibraryPath: cfg.LibraryPath,
			UseGPU:      cfg.UseGPU,
		})
	case config.BackendRemote:
		return NewRemote(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown ocr backend %q", cfg.Backend)
	}
}

type result struct {
	text string
	err  error
}

type job struct {
	ctx   context.Context
	img   image.Image
	reply chan result
}

// Pool runs a Recognizer on a fixed number of workers. It is created once per
// process and shared by every part scan.
type Pool struct {
	logger zerolog.Logger
	rec    Recognizer
	jobs   chan job
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool starts workers goroutines in front of rec
func NewPool(logger zerolog.Logger, rec Recognizer, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		logger: logger.With().Str("component", "ocr").Logger(),
		rec:    rec,
		jobs:   make(chan job),
		done:   make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	p.logger.Debug().Int("workers", workers).Msg("ocr pool started")
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case j := <-p.jobs:
			text, err := p.rec.Recognize(j.ctx, j.img)
			j.reply <- result{text: text, err: err}
		}
	}
}

// Recognize submits img and waits for its text
func (p *Pool) Recognize(ctx context.Context, img image.Image) (string, error) {
	reply := make(chan result, 1)
	select {
	case p.jobs <- job{ctx: ctx, img: img, reply: reply}:
	case <-p.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-reply:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the workers and closes the backend
func (p *Pool) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
		err = p.rec.Close()
	})
	return err
}
