package ffmpeg

import (
	"context"
	"fmt"
	"strings"
)

// Transcode re-encodes a file with the given codec preset
func (e *Executor) Transcode(ctx context.Context, spec TranscodeSpec) error {
	args, err := buildTranscodeArgs(spec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}

	e.logger.Info().
		Str("input", spec.Input).
		Str("output", spec.Output).
		Str("codec", spec.Codec.VideoCodec).
		Msg("transcoding")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: spec.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("transcode output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTranscode, spec.Output, err)
	}
	return nil
}

func buildTranscodeArgs(spec TranscodeSpec) ([]string, error) {
	if spec.Input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if spec.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}

	args := append([]string{}, spec.Codec.InputArgs...)
	args = append(args, "-i", spec.Input)

	vf := spec.Codec.VideoFilter + spec.Codec.FilterSuffix
	vf = strings.TrimPrefix(vf, ",")
	if vf != "" {
		args = append(args, "-vf", vf)
	}

	args = append(args, "-map", "0:v:0", "-map", "0:a?")
	args = append(args, spec.Codec.Args()...)
	args = append(args, spec.Output)
	return args, nil
}
