package ffmpeg

import "strconv"

// musicInputArgs adds a music bed input that loops until the video ends
func musicInputArgs(path string) []string {
	return []string{"-stream_loop", "-1", "-i", path}
}

// audioMapArgs selects the audio stream for a render: the music bed when one
// was added, otherwise the source audio if the source has any
func audioMapArgs(musicIndex int) []string {
	if musicIndex < 0 {
		return []string{"-map", "0:a?"}
	}
	return []string{"-map", strconv.Itoa(musicIndex) + ":a:0"}
}
