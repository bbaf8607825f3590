package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kikiluvv/killreel/pkg/util"
)

// PlanParts divides total into n contiguous spans. The last span absorbs the
// rounding remainder so the spans cover total exactly.
func PlanParts(total time.Duration, n int) ([]Part, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: part count must be at least 1, got %d", ErrSegment, n)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: unknown duration", ErrSegment)
	}

	length := total / time.Duration(n)
	parts := make([]Part, n)
	for i := range parts {
		offset := time.Duration(i) * length
		d := length
		if i == n-1 {
			d = total - offset
		}
		parts[i] = Part{Index: i + 1, Offset: offset, Duration: d}
	}
	return parts, nil
}

// Split cuts input into n stream-copied parts under outDir. A single part is
// the input itself and nothing is written.
func (e *Executor) Split(ctx context.Context, input string, total time.Duration, n int, outDir string) ([]Part, error) {
	parts, err := PlanParts(total, n)
	if err != nil {
		return nil, err
	}

	if n == 1 {
		parts[0].Path = input
		return parts, nil
	}

	if err := util.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSegment, err)
	}

	e.logger.Info().
		Str("input", input).
		Int("parts", n).
		Dur("part_length", parts[0].Duration).
		Msg("splitting recording")

	stem := util.Stem(input)
	ext := filepath.Ext(input)

	for i := range parts {
		p := &parts[i]
		p.Path = filepath.Join(outDir, fmt.Sprintf("%s_part%d%s", stem, p.Index, ext))
		p.Temporary = true

		args := []string{
			"-ss", util.FormatSeconds(p.Offset),
			"-i", input,
			"-t", util.FormatSeconds(p.Duration),
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
			p.Path,
		}

		err := e.Run(ctx, RunOptions{
			Args: args,
			LogHandler: func(line string) {
				e.logger.Debug().Str("ffmpeg", line).Int("part", p.Index).Msg("segmenting")
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: part %d: %v", ErrSegment, p.Index, err)
		}

		e.logger.Debug().Int("part", p.Index).Str("output", p.Path).Msg("part written")
	}

	return parts, nil
}
