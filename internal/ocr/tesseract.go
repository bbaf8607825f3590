package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
)

// TesseractOptions configures the tesseract CLI backend
type TesseractOptions struct {
	Path     string
	Language string
	PSM      int
}

// Tesseract runs the tesseract binary once per image. The PNG goes in on
// stdin and the text comes back on stdout.
type Tesseract struct {
	path string
	args []string
}

// NewTesseract resolves the binary and fixes the argument list
func NewTesseract(opts TesseractOptions) (*Tesseract, error) {
	if opts.Path == "" {
		opts.Path = "tesseract"
	}
	path, err := exec.LookPath(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("tesseract not found: %w", err)
	}
	return &Tesseract{path: path, args: tesseractArgs(opts)}, nil
}

func tesseractArgs(opts TesseractOptions) []string {
	args := []string{"stdin", "stdout"}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	if opts.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(opts.PSM))
	}
	return args
}

// Recognize implements Recognizer
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.path, t.args...)
	cmd.Stdin = &buf
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return normalize(string(out)), nil
}

// Close implements Recognizer
func (t *Tesseract) Close() error { return nil }

// normalize collapses whitespace so multi-line kill feeds match as one line
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
