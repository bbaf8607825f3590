package ffmpeg

import "errors"

// Failure classes for external media operations. Callers match them with
// errors.Is; the wrapped cause carries the ffmpeg diagnostics.
var (
	ErrProbe     = errors.New("probe failed")
	ErrSegment   = errors.New("segmentation failed")
	ErrExtract   = errors.New("extraction failed")
	ErrConcat    = errors.New("concatenation failed")
	ErrTransform = errors.New("transform failed")
	ErrTranscode = errors.New("transcode failed")
)
