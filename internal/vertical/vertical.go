// Package vertical re-assembles merged clips into portrait shorts.
package vertical

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kikiluvv/killreel/internal/clips"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/internal/overlays"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Transformer renders a TransformSpec
type Transformer interface {
	Transform(ctx context.Context, spec ffmpeg.TransformSpec) error
}

// TrackSource hands out background music, one track per render
type TrackSource interface {
	Draw() (string, bool)
}

// Options sets the canvas and encoder
type Options struct {
	Width  int
	Height int
	Bar    int
	Codec  ffmpeg.CodecSpec
	// NoSourceAudio marks inputs without an audio stream. Shorts that draw
	// no music track are then rendered silent.
	NoSourceAudio bool
}

// Reformatter renders one vertical short per input clip
type Reformatter struct {
	logger   zerolog.Logger
	render   Transformer
	music    TrackSource
	overlays *overlays.Registry
	opts     Options
}

// New creates a reformatter. music and registry may be nil.
func New(logger zerolog.Logger, render Transformer, music TrackSource, registry *overlays.Registry, opts Options) *Reformatter {
	return &Reformatter{
		logger:   logger.With().Str("component", "vertical").Logger(),
		render:   render,
		music:    music,
		overlays: registry,
		opts:     opts,
	}
}

// Reformat renders in onto the vertical canvas under outDir
func (r *Reformatter) Reformat(ctx context.Context, in clips.Clip, outDir string) (clips.Clip, error) {
	spec := ffmpeg.TransformSpec{
		Input:  in.Path,
		Output: filepath.Join(outDir, util.Stem(in.Path)+"_vertical"+r.opts.Codec.Extension),
		Width:  r.opts.Width,
		Height: r.opts.Height,
		Bar:    r.opts.Bar,
		Codec:  r.opts.Codec,

		ProgressFunc: ffmpeg.LogProgress(r.logger, in.ID),
	}

	if r.overlays != nil {
		spec.Overlays = r.overlays.Resolve(r.logger)
	}

	if r.music != nil {
		if track, ok := r.music.Draw(); ok {
			spec.Music = track
		} else {
			r.logger.Debug().Str("clip", in.ID).Msg("music pool exhausted, keeping source audio")
		}
	}
	if spec.Music == "" && r.opts.NoSourceAudio {
		spec.Mute = true
	}

	if err := r.render.Transform(ctx, spec); err != nil {
		return clips.Clip{}, err
	}

	out := clips.Clip{
		ID:       in.ID + "_vertical",
		Path:     spec.Output,
		Start:    in.Start,
		Duration: in.Duration,
		Part:     in.Part,
		Sources:  []string{in.Path},
	}
	if spec.Music != "" {
		out.Sources = append(out.Sources, spec.Music)
	}
	return out, nil
}

// ReformatAll renders every clip with up to workers renders in flight.
// Failures are per clip; results keep input order and skip failures.
func (r *Reformatter) ReformatAll(ctx context.Context, in []clips.Clip, outDir string, workers int) ([]clips.Clip, []clips.Failure) {
	if len(in) == 0 {
		return nil, nil
	}
	if err := util.EnsureDir(outDir); err != nil {
		failures := make([]clips.Failure, len(in))
		for i, c := range in {
			failures[i] = clips.Failure{Item: c.Path, Err: fmt.Errorf("%w: %v", ffmpeg.ErrTransform, err)}
		}
		return nil, failures
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]clips.Clip, len(in))
	errs := make([]error, len(in))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range in {
		g.Go(func() error {
			results[i], errs[i] = r.Reformat(gctx, c, outDir)
			if errs[i] != nil {
				r.logger.Error().Err(errs[i]).Str("clip", c.ID).Msg("vertical render failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      []clips.Clip
		failures []clips.Failure
	)
	for i := range in {
		if errs[i] != nil {
			failures = append(failures, clips.Failure{Item: in[i].Path, Err: errs[i]})
			continue
		}
		out = append(out, results[i])
	}
	return out, failures
}
