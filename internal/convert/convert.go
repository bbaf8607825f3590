// Package convert produces delivery encodes of finished shorts.
package convert

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kikiluvv/killreel/internal/clips"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Transcoder re-encodes a file
type Transcoder interface {
	Transcode(ctx context.Context, spec ffmpeg.TranscodeSpec) error
}

// Converter center-crops to 9:16 and encodes with a delivery preset. It
// holds no per-call state.
type Converter struct {
	logger  zerolog.Logger
	tc      Transcoder
	encoder string
	width   int
	height  int
}

// New creates a converter. encoder is the H.264 encoder used for mp4.
func New(logger zerolog.Logger, tc Transcoder, encoder string, width, height int) *Converter {
	if encoder == "" {
		encoder = "libx264"
	}
	return &Converter{
		logger:  logger.With().Str("component", "convert").Logger(),
		tc:      tc,
		encoder: encoder,
		width:   width,
		height:  height,
	}
}

// Preset returns the codec settings for format including the crop filter
func (c *Converter) Preset(format string) (ffmpeg.CodecSpec, error) {
	spec, err := ffmpeg.PresetFor(format, c.encoder)
	if err != nil {
		return ffmpeg.CodecSpec{}, err
	}
	spec.VideoFilter = ffmpeg.NewFilterBuilder().
		CropExpr("in_h*9/16", "in_h", "(in_w-out_w)/2", "0").
		Scale(c.width, c.height).
		Build()
	return spec, nil
}

// Convert writes one delivery file for in under outDir
func (c *Converter) Convert(ctx context.Context, in clips.Clip, format, outDir string) (clips.Clip, error) {
	codec, err := c.Preset(format)
	if err != nil {
		return clips.Clip{}, fmt.Errorf("%w: %v", ffmpeg.ErrTranscode, err)
	}

	output := filepath.Join(outDir, util.Stem(in.Path)+codec.Extension)
	err = c.tc.Transcode(ctx, ffmpeg.TranscodeSpec{
		Input:        in.Path,
		Output:       output,
		Codec:        codec,
		ProgressFunc: ffmpeg.LogProgress(c.logger, in.ID+"_"+format),
	})
	if err != nil {
		return clips.Clip{}, err
	}

	return clips.Clip{
		ID:       in.ID + "_" + format,
		Path:     output,
		Start:    in.Start,
		Duration: in.Duration,
		Part:     in.Part,
		Sources:  []string{in.Path},
	}, nil
}

// ConvertAll converts every clip into every format. Results are ordered by
// clip then format; failures are per output.
func (c *Converter) ConvertAll(ctx context.Context, in []clips.Clip, formats []string, outDir string, workers int) ([]clips.Clip, []clips.Failure) {
	type job struct {
		clip   clips.Clip
		format string
	}
	var jobs []job
	for _, cl := range in {
		for _, f := range formats {
			jobs = append(jobs, job{cl, f})
		}
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	if err := util.EnsureDir(outDir); err != nil {
		failures := make([]clips.Failure, len(jobs))
		for i, j := range jobs {
			failures[i] = clips.Failure{Item: j.clip.Path, Err: fmt.Errorf("%w: %v", ffmpeg.ErrTranscode, err)}
		}
		return nil, failures
	}
	if workers < 1 {
		workers = 1
	}

	c.logger.Info().Int("clips", len(in)).Strs("formats", formats).Msg("converting deliverables")

	results := make([]clips.Clip, len(jobs))
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			results[i], errs[i] = c.Convert(gctx, j.clip, j.format, outDir)
			if errs[i] != nil {
				c.logger.Error().Err(errs[i]).Str("clip", j.clip.ID).Str("format", j.format).Msg("conversion failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      []clips.Clip
		failures []clips.Failure
	)
	for i, j := range jobs {
		if errs[i] != nil {
			failures = append(failures, clips.Failure{Item: j.clip.Path + " -> " + j.format, Err: errs[i]})
			continue
		}
		out = append(out, results[i])
	}
	return out, failures
}
