package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const outputLabel = "vout"

// Transform renders a clip onto a vertical canvas with overlays and an
// optional looped music bed
func (e *Executor) Transform(ctx context.Context, spec TransformSpec) error {
	args, err := buildTransformArgs(spec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransform, err)
	}

	e.logger.Info().
		Str("input", spec.Input).
		Str("output", spec.Output).
		Int("overlays", len(spec.Overlays)).
		Str("music", spec.Music).
		Msg("rendering vertical")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: spec.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransform, spec.Output, err)
	}

	e.logger.Info().Str("output", spec.Output).Msg("render completed")
	return nil
}

// buildTransformArgs builds the ffmpeg argument list for a vertical render.
// Input 0 is the clip, inputs 1..n the overlay images, then the music bed.
func buildTransformArgs(spec TransformSpec) ([]string, error) {
	if err := validateTransformSpec(spec); err != nil {
		return nil, err
	}

	args := append([]string{}, spec.Codec.InputArgs...)
	args = append(args, "-i", spec.Input)
	for _, ov := range spec.Overlays {
		args = append(args, "-i", ov.Path)
	}

	musicIndex := -1
	if spec.Music != "" {
		musicIndex = 1 + len(spec.Overlays)
		args = append(args, musicInputArgs(spec.Music)...)
	}

	graph := buildVerticalGraph(spec)
	args = append(args, "-filter_complex", graph)
	args = append(args, "-map", "["+outputLabel+"]")
	if musicIndex < 0 && spec.Mute {
		args = append(args, spec.Codec.VideoOnlyArgs()...)
		args = append(args, "-an")
	} else {
		args = append(args, audioMapArgs(musicIndex)...)
		args = append(args, spec.Codec.Args()...)
	}
	if musicIndex >= 0 {
		args = append(args, "-shortest")
	}
	args = append(args, spec.Output)

	return args, nil
}

// buildVerticalGraph scales the source to the content height, crops it to
// the canvas width, pads onto the canvas and stacks the overlays in order
func buildVerticalGraph(spec TransformSpec) string {
	contentHeight := spec.Height - spec.Bar
	suffix := strings.TrimPrefix(spec.Codec.FilterSuffix, ",")
	n := len(spec.Overlays)

	label := func(step int) string {
		if step == n && suffix == "" {
			return outputLabel
		}
		if step == 0 {
			return "base"
		}
		return "v" + strconv.Itoa(step)
	}

	base := NewFilterBuilder().
		ScaleToHeight(contentHeight).
		CropExpr(fmt.Sprintf("min(in_w,%d)", spec.Width), strconv.Itoa(contentHeight), "(in_w-out_w)/2", "0").
		Pad(spec.Width, spec.Height, "(ow-iw)/2", "0", "black").
		Build()

	graph := NewFilterGraph().Chain([]string{"0:v"}, base, label(0))

	for i, ov := range spec.Overlays {
		step := i + 1
		scaled := "ov" + strconv.Itoa(step)
		scale := NewFilterBuilder().Scale(ov.Width, ov.Height).Build()
		if scale == "" {
			scale = "null"
		}
		graph.Chain([]string{fmt.Sprintf("%d:v", step)}, scale, scaled)
		graph.Chain([]string{label(step - 1), scaled}, fmt.Sprintf("overlay=%s:%s", exprOr(ov.X), exprOr(ov.Y)), label(step))
	}

	if suffix != "" {
		graph.Chain([]string{label(n)}, suffix, outputLabel)
	}

	return graph.Build()
}

func validateTransformSpec(spec TransformSpec) error {
	if spec.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if spec.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return fmt.Errorf("canvas size must be positive")
	}
	if spec.Bar < 0 || spec.Bar >= spec.Height {
		return fmt.Errorf("bar height must be in [0, %d)", spec.Height)
	}
	for _, ov := range spec.Overlays {
		if ov.Path == "" {
			return fmt.Errorf("overlay path is required")
		}
	}
	return nil
}

func exprOr(expr string) string {
	if expr == "" {
		return "0"
	}
	return quoteExpr(expr)
}
