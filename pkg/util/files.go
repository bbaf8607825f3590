package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	videoExtensions = map[string]bool{
		".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true, ".m4v": true, ".ts": true,
	}
	audioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".aac": true, ".m4a": true,
	}
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a regular file exists
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CopyFile copies src to dst byte for byte
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// GetExtension returns the lowercased file extension
func GetExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Stem returns the file name without directory and extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsVideoFile reports whether the path has a known video container extension
func IsVideoFile(path string) bool {
	return videoExtensions[GetExtension(path)]
}

// IsAudioFile reports whether the path has a known music track extension
func IsAudioFile(path string) bool {
	return audioExtensions[GetExtension(path)]
}
