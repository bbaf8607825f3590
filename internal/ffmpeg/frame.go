package ffmpeg

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"time"

	"github.com/kikiluvv/killreel/pkg/util"
)

// FrameAt decodes the frame nearest to at. ok is false at end of stream or on
// any decode failure; callers treat that as a gap, not an error.
func (e *Executor) FrameAt(ctx context.Context, input string, at time.Duration) (img image.Image, ok bool) {
	out, err := e.output(ctx, e.ffmpegPath,
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-ss", util.FormatSeconds(at),
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		e.logger.Debug().Err(err).Str("input", input).Dur("at", at).Msg("frame decode failed")
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}

	img, err = png.Decode(bytes.NewReader(out))
	if err != nil {
		e.logger.Debug().Err(err).Str("input", input).Dur("at", at).Msg("frame not decodable")
		return nil, false
	}
	return img, true
}
