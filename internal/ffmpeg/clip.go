package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/kikiluvv/killreel/pkg/util"
)

// WindowOptions defines a lossless window extraction
type WindowOptions struct {
	Start        time.Duration
	Duration     time.Duration
	Output       string
	ProgressFunc ProgressFunc
}

// ExtractWindow copies [Start, Start+Duration) of input into Output without
// re-encoding. The cut snaps to keyframes.
func (e *Executor) ExtractWindow(ctx context.Context, input string, opts WindowOptions) error {
	if opts.Duration <= 0 {
		return fmt.Errorf("%w: invalid clip duration %v", ErrExtract, opts.Duration)
	}
	if opts.Output == "" {
		return fmt.Errorf("%w: output path is required", ErrExtract)
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", opts.Duration).
		Msg("extracting clip")

	args := []string{
		"-ss", util.FormatSeconds(opts.Start),
		"-i", input,
		"-t", util.FormatSeconds(opts.Duration),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		opts.Output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("clip extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtract, opts.Output, err)
	}

	e.logger.Debug().Str("output", opts.Output).Msg("clip extraction complete")
	return nil
}
