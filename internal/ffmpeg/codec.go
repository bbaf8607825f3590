package ffmpeg

import (
	"fmt"
	"strings"
)

// CodecSpec is an encoder configuration for a render or transcode
type CodecSpec struct {
	Name         string
	Extension    string
	VideoCodec   string
	AudioCodec   string
	CRF          int
	VideoBitrate string
	MaxRate      string
	BufSize      string
	AudioBitrate string
	PixFmt       string
	// VideoFilter is applied with -vf by Transcode
	VideoFilter string
	// FilterSuffix is appended to whatever video filter chain feeds the encoder
	FilterSuffix string
	// InputArgs go before -i (hardware device setup)
	InputArgs []string
	// ExtraArgs are encoder specific switches appended after the codec flags
	ExtraArgs []string
	FastStart bool
}

// Args renders the output-side encoder flags
func (c CodecSpec) Args() []string {
	return c.args(true)
}

// VideoOnlyArgs is Args without the audio encoder flags
func (c CodecSpec) VideoOnlyArgs() []string {
	return c.args(false)
}

func (c CodecSpec) args(audio bool) []string {
	var args []string
	if c.VideoCodec != "" {
		args = append(args, "-c:v", c.VideoCodec)
	}
	if c.CRF > 0 {
		args = append(args, "-crf", fmt.Sprintf("%d", c.CRF))
	}
	if c.VideoBitrate != "" {
		args = append(args, "-b:v", c.VideoBitrate)
	}
	if c.MaxRate != "" {
		args = append(args, "-maxrate", c.MaxRate)
	}
	if c.BufSize != "" {
		args = append(args, "-bufsize", c.BufSize)
	}
	args = append(args, c.ExtraArgs...)
	if c.PixFmt != "" {
		args = append(args, "-pix_fmt", c.PixFmt)
	}
	if audio && c.AudioCodec != "" {
		args = append(args, "-c:a", c.AudioCodec)
	}
	if audio && c.AudioBitrate != "" {
		args = append(args, "-b:a", c.AudioBitrate)
	}
	if c.FastStart {
		args = append(args, "-movflags", "+faststart")
	}
	return args
}

// VP9Opus is the constant-quality WebM preset used for vertical shorts
func VP9Opus() CodecSpec {
	return CodecSpec{
		Name:         "webm",
		Extension:    ".webm",
		VideoCodec:   "libvpx-vp9",
		AudioCodec:   "libopus",
		CRF:          30,
		VideoBitrate: "0",
		AudioBitrate: "128k",
		PixFmt:       "yuv420p",
		ExtraArgs:    []string{"-deadline", "realtime", "-cpu-used", "4", "-row-mt", "1"},
	}
}

// H264AAC returns an MP4 preset for the given H.264 encoder with the reels
// bitrate ladder
func H264AAC(encoder string) CodecSpec {
	hw := EncoderConfig(encoder)
	spec := CodecSpec{
		Name:         "mp4",
		Extension:    ".mp4",
		VideoCodec:   hw.Encoder,
		AudioCodec:   "aac",
		VideoBitrate: "6M",
		MaxRate:      "8M",
		BufSize:      "12M",
		AudioBitrate: "128k",
		InputArgs:    hw.InputArgs,
		ExtraArgs:    hw.QualityArgs,
		FilterSuffix: hw.FilterSuffix,
		FastStart:    true,
	}
	if !strings.Contains(hw.Encoder, "vaapi") {
		spec.PixFmt = "yuv420p"
	}
	return spec
}

// PresetFor returns the codec preset for a container format name
func PresetFor(format, encoder string) (CodecSpec, error) {
	switch format {
	case "webm":
		return VP9Opus(), nil
	case "mp4":
		return H264AAC(encoder), nil
	default:
		return CodecSpec{}, fmt.Errorf("unknown output format %q", format)
	}
}
