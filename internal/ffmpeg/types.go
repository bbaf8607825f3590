package ffmpeg

import (
	"time"

	"github.com/rs/zerolog"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath     string        `json:"path"`
	Duration     time.Duration `json:"duration"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	FPS          float64       `json:"fps"`
	Bitrate      int64         `json:"bitrate"`
	VideoCodec   string        `json:"video_codec"`
	HasAudio     bool          `json:"has_audio"`
	AudioCodec   string        `json:"audio_codec,omitempty"`
	AudioBitrate int64         `json:"audio_bitrate,omitempty"`
}

// Part is one contiguous sub-file of a longer recording
type Part struct {
	Index    int // 1-based
	Path     string
	Offset   time.Duration
	Duration time.Duration
	// Temporary parts were written by Split and may be deleted after scanning.
	Temporary bool
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

// LogProgress returns a ProgressFunc that reports each progress block for
// item at debug level
func LogProgress(logger zerolog.Logger, item string) ProgressFunc {
	return func(p *Progress) {
		logger.Debug().
			Str("item", item).
			Int("frame", p.Frame).
			Float64("fps", p.FPS).
			Str("time", p.Time).
			Str("speed", p.Speed).
			Msg("ffmpeg progress")
	}
}

// OverlaySpec places one static image on the vertical canvas
type OverlaySpec struct {
	Path   string
	Width  int
	Height int
	X      string
	Y      string
}

// TransformSpec describes a vertical re-assembly render
type TransformSpec struct {
	Input    string
	Output   string
	Width    int
	Height   int
	Bar      int // reserved strip at the bottom of the canvas
	Overlays []OverlaySpec
	// Music is looped under the video when set; the render stops at the
	// shorter stream.
	Music string
	// Mute drops audio entirely. Ignored when Music is set.
	Mute         bool
	Codec        CodecSpec
	ProgressFunc ProgressFunc
}

// TranscodeSpec describes a delivery-format conversion
type TranscodeSpec struct {
	Input        string
	Output       string
	Codec        CodecSpec
	ProgressFunc ProgressFunc
}
