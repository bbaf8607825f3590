package ffmpeg

import (
	"context"
	"strings"
)

// hardwareEncoders are tried in order before falling back to libx264
var hardwareEncoders = []string{"h264_nvenc", "h264_qsv", "h264_vaapi", "h264_videotoolbox"}

// HWEncoder holds the arguments a hardware H.264 encoder needs
type HWEncoder struct {
	Encoder      string
	InputArgs    []string
	QualityArgs  []string
	FilterSuffix string
}

// DetectH264Encoder probes for a working hardware H.264 encoder by encoding a
// test frame with each candidate. The result is cached per executor.
func (e *Executor) DetectH264Encoder(ctx context.Context) string {
	e.encoderOnce.Do(func() {
		e.encoder = e.detectEncoder(ctx)
	})
	return e.encoder
}

func (e *Executor) detectEncoder(ctx context.Context) string {
	out, err := e.output(ctx, e.ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		e.logger.Warn().Err(err).Msg("listing encoders failed, using libx264")
		return "libx264"
	}
	list := string(out)

	for _, enc := range hardwareEncoders {
		if !strings.Contains(list, enc) {
			continue
		}
		if e.testEncoder(ctx, enc) {
			e.logger.Info().Str("encoder", enc).Msg("hardware H.264 encoder detected")
			return enc
		}
		e.logger.Debug().Str("encoder", enc).Msg("encoder compiled in but hardware test failed")
	}

	e.logger.Info().Msg("no hardware encoder available, using libx264")
	return "libx264"
}

// testEncoder verifies a hardware encoder works by encoding a single test frame
func (e *Executor) testEncoder(ctx context.Context, encoder string) bool {
	hw := EncoderConfig(encoder)
	args := []string{"-hide_banner", "-v", "error"}
	args = append(args, hw.InputArgs...)
	args = append(args,
		"-f", "lavfi", "-i", "color=black:s=64x64:d=0.1:r=1",
		"-frames:v", "1", "-an",
	)
	if hw.FilterSuffix != "" {
		args = append(args, "-vf", strings.TrimPrefix(hw.FilterSuffix, ","))
	}
	args = append(args, "-c:v", encoder, "-f", "null", "-")

	_, err := e.output(ctx, e.ffmpegPath, args...)
	return err == nil
}

// EncoderConfig returns the arguments needed to drive encoder
func EncoderConfig(encoder string) HWEncoder {
	switch {
	case strings.Contains(encoder, "nvenc"):
		return HWEncoder{
			Encoder:     encoder,
			QualityArgs: []string{"-preset", "p4"},
		}
	case strings.Contains(encoder, "qsv"):
		return HWEncoder{
			Encoder:     encoder,
			InputArgs:   []string{"-init_hw_device", "qsv=hw:/dev/dri/renderD128"},
			QualityArgs: []string{"-preset", "veryfast"},
		}
	case strings.Contains(encoder, "vaapi"):
		return HWEncoder{
			Encoder:      encoder,
			InputArgs:    []string{"-init_hw_device", "vaapi=/dev/dri/renderD128", "-filter_hw_device", "vaapi"},
			FilterSuffix: "," + NewFilterBuilder().Format("nv12").Custom("hwupload").Build(),
		}
	case strings.Contains(encoder, "videotoolbox"):
		return HWEncoder{
			Encoder: encoder,
		}
	default:
		return HWEncoder{
			Encoder:     "libx264",
			QualityArgs: []string{"-preset", "veryfast"},
		}
	}
}
