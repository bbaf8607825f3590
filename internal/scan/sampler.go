// Package scan samples frames from a part and reads the kill feed.
package scan

import (
	"context"
	"image"
	"time"

	"github.com/kikiluvv/killreel/internal/detect"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/internal/observe"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

// FrameSource decodes single frames. ok is false for a decode gap.
type FrameSource interface {
	FrameAt(ctx context.Context, input string, at time.Duration) (image.Image, bool)
}

// TextReader turns a cropped region into text
type TextReader interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Options controls sampling
type Options struct {
	Interval time.Duration
	Region   Region
	// Resize scales the crop before recognition; 1 keeps it as is.
	Resize float64
}

// Sampler walks a part at a fixed interval
type Sampler struct {
	logger  zerolog.Logger
	frames  FrameSource
	text    TextReader
	opts    Options
	metrics *observe.Metrics
}

// NewSampler creates a sampler. metrics may be nil.
func NewSampler(logger zerolog.Logger, frames FrameSource, text TextReader, opts Options, metrics *observe.Metrics) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Resize <= 0 {
		opts.Resize = 1
	}
	return &Sampler{
		logger:  logger.With().Str("component", "scan").Logger(),
		frames:  frames,
		text:    text,
		opts:    opts,
		metrics: metrics,
	}
}

// Scan emits one sample per interval, in increasing time, relative to the
// start of the part. A part whose first frame cannot be decoded yields no
// samples and no error. Only context cancellation is returned.
func (s *Sampler) Scan(ctx context.Context, part ffmpeg.Part, emit func(detect.Sample)) (int, error) {
	logger := s.logger.With().Int("part", part.Index).Str("input", part.Path).Logger()

	first, ok := s.frames.FrameAt(ctx, part.Path, 0)
	if !ok {
		logger.Warn().Msg("cannot decode first frame, skipping part")
		return 0, nil
	}
	rect := s.opts.Region.Rect(first.Bounds())
	logger.Debug().
		Str("rect", rect.String()).
		Dur("duration", part.Duration).
		Msg("scanning part")

	count := 0
	for t := time.Duration(0); t < part.Duration; t += s.opts.Interval {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		frame := first
		if t > 0 {
			if frame, ok = s.frames.FrameAt(ctx, part.Path, t); !ok {
				continue
			}
		}

		start := time.Now()
		text, err := s.text.Recognize(ctx, s.prepare(frame, rect))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return count, ctxErr
			}
			logger.Debug().Err(err).Dur("at", t).Msg("recognition failed")
			text = ""
		}
		s.metrics.RecordSample(ctx, time.Since(start))

		emit(detect.Sample{At: t, Text: text})
		count++
	}

	logger.Debug().Int("samples", count).Msg("part scanned")
	return count, nil
}

func (s *Sampler) prepare(frame image.Image, rect image.Rectangle) image.Image {
	crop := Crop(frame, rect)
	if s.opts.Resize >= 1 {
		return crop
	}
	w := uint(float64(crop.Bounds().Dx()) * s.opts.Resize)
	if w < 1 {
		w = 1
	}
	return resize.Resize(w, 0, crop, resize.Bilinear)
}
