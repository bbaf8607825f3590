package clips

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kikiluvv/killreel/internal/detect"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Window returns the extraction window around an event. The start is clamped
// at zero; the duration is always pre + post even when clamping shortens the
// lead-in.
func Window(at, pre, post time.Duration) (start, duration time.Duration) {
	start = at - pre
	if start < 0 {
		start = 0
	}
	return start, pre + post
}

// Extractor cuts a window out of a media file
type Extractor interface {
	ExtractWindow(ctx context.Context, input string, opts ffmpeg.WindowOptions) error
}

// Exporter cuts one clip per event from the source recording
type Exporter struct {
	logger  zerolog.Logger
	extract Extractor
	pre     time.Duration
	post    time.Duration
	workers int
}

// NewExporter creates an exporter running up to workers extractions at once
func NewExporter(logger zerolog.Logger, extract Extractor, pre, post time.Duration, workers int) *Exporter {
	if workers < 1 {
		workers = 1
	}
	return &Exporter{
		logger:  logger.With().Str("component", "exporter").Logger(),
		extract: extract,
		pre:     pre,
		post:    post,
		workers: workers,
	}
}

// Export writes clip_001, clip_002, ... in event order. Event timestamps are
// on the source timeline. A failed extraction does not stop the others;
// returned clips keep event order and skip failures.
func (e *Exporter) Export(ctx context.Context, source string, events []detect.Event, outDir string) ([]Clip, []Failure) {
	if len(events) == 0 {
		return nil, nil
	}

	ext := filepath.Ext(source)
	planned := make([]Clip, len(events))
	for i, ev := range events {
		start, duration := Window(ev.At, e.pre, e.post)
		id := fmt.Sprintf("clip_%03d", i+1)
		event := ev
		planned[i] = Clip{
			ID:       id,
			Path:     filepath.Join(outDir, id+ext),
			Start:    start,
			Duration: duration,
			Part:     ev.Part,
			Event:    &event,
			Sources:  []string{source},
		}
	}

	if err := util.EnsureDir(outDir); err != nil {
		failures := make([]Failure, len(planned))
		for i, c := range planned {
			failures[i] = Failure{Item: c.Path, Err: fmt.Errorf("%w: %v", ffmpeg.ErrExtract, err)}
		}
		return nil, failures
	}

	e.logger.Info().Str("input", source).Int("events", len(events)).Msg("exporting clips")

	errs := make([]error, len(planned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, c := range planned {
		g.Go(func() error {
			errs[i] = e.extract.ExtractWindow(gctx, source, ffmpeg.WindowOptions{
				Start:        c.Start,
				Duration:     c.Duration,
				Output:       c.Path,
				ProgressFunc: ffmpeg.LogProgress(e.logger, c.ID),
			})
			if errs[i] != nil {
				e.logger.Error().Err(errs[i]).Str("clip", c.ID).Dur("at", c.Event.At).Msg("clip export failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		exported []Clip
		failures []Failure
	)
	for i, c := range planned {
		if errs[i] != nil {
			failures = append(failures, Failure{Item: c.Path, Err: errs[i]})
			continue
		}
		exported = append(exported, c)
	}
	return exported, failures
}
