// Package merge groups exported clips into small batches and joins each
// batch into one file.
package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kikiluvv/killreel/internal/clips"
	"github.com/kikiluvv/killreel/internal/config"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Partition splits n ordered items into batches of two. When n is odd and at
// least 3, the trailing item joins the last pair. A single item forms a batch
// of its own. The result holds item indexes.
func Partition(n int) [][]int {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return [][]int{{0}}
	}

	batches := make([][]int, 0, n/2)
	for i := 0; i+1 < n; i += 2 {
		batches = append(batches, []int{i, i + 1})
	}
	if n%2 == 1 {
		last := &batches[len(batches)-1]
		*last = append(*last, n-1)
	}
	return batches
}

// Group splits clips into independently merged groups. Global scope keeps
// every clip in one group; local scope keeps one group per part.
func Group(all []clips.Clip, scope string) [][]clips.Clip {
	if len(all) == 0 {
		return nil
	}
	if scope != config.ScopeLocal {
		return [][]clips.Clip{all}
	}

	var groups [][]clips.Clip
	index := make(map[int]int)
	for _, c := range all {
		g, ok := index[c.Part]
		if !ok {
			g = len(groups)
			index[c.Part] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], c)
	}
	return groups
}

// Concatenator joins files in order
type Concatenator interface {
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
}

// Batch is one planned merge
type Batch struct {
	Index  int
	Clips  []clips.Clip
	Output string
}

// Merger turns exported clips into merged batch files
type Merger struct {
	logger  zerolog.Logger
	concat  Concatenator
	workers int
}

// NewMerger creates a merger running up to workers joins at once
func NewMerger(logger zerolog.Logger, concat Concatenator, workers int) *Merger {
	if workers < 1 {
		workers = 1
	}
	return &Merger{
		logger:  logger.With().Str("component", "merger").Logger(),
		concat:  concat,
		workers: workers,
	}
}

// Plan assigns clips to numbered batches under outDir. Numbering is 1-based
// and continuous across groups.
func Plan(all []clips.Clip, scope, outDir string) []Batch {
	var batches []Batch
	for _, group := range Group(all, scope) {
		for _, idx := range Partition(len(group)) {
			members := make([]clips.Clip, len(idx))
			for i, j := range idx {
				members[i] = group[j]
			}
			n := len(batches) + 1
			batches = append(batches, Batch{
				Index:  n,
				Clips:  members,
				Output: filepath.Join(outDir, fmt.Sprintf("merged_%03d%s", n, filepath.Ext(members[0].Path))),
			})
		}
	}
	return batches
}

// Merge writes every batch. A batch of one is copied byte for byte; larger
// batches are concatenated. Failures are per batch; the merged clips are
// returned in batch order and skip failed batches.
func (m *Merger) Merge(ctx context.Context, all []clips.Clip, scope, outDir string) ([]clips.Clip, []clips.Failure) {
	batches := Plan(all, scope, outDir)
	if len(batches) == 0 {
		return nil, nil
	}

	if err := util.EnsureDir(outDir); err != nil {
		failures := make([]clips.Failure, len(batches))
		for i, b := range batches {
			failures[i] = clips.Failure{Item: b.Output, Err: fmt.Errorf("%w: %v", ffmpeg.ErrConcat, err)}
		}
		return nil, failures
	}

	m.logger.Info().Int("clips", len(all)).Int("batches", len(batches)).Str("scope", scope).Msg("merging clips")

	results := make([]*clips.Clip, len(batches))
	errs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, b := range batches {
		g.Go(func() error {
			results[i], errs[i] = m.mergeBatch(gctx, b)
			if errs[i] != nil {
				m.logger.Error().Err(errs[i]).Int("batch", b.Index).Msg("merge failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged   []clips.Clip
		failures []clips.Failure
	)
	for i, r := range results {
		if errs[i] != nil {
			failures = append(failures, clips.Failure{Item: batches[i].Output, Err: errs[i]})
			continue
		}
		merged = append(merged, *r)
	}
	return merged, failures
}

func (m *Merger) mergeBatch(ctx context.Context, b Batch) (*clips.Clip, error) {
	inputs := make([]string, len(b.Clips))
	var total time.Duration
	for i, c := range b.Clips {
		inputs[i] = c.Path
		total += c.Duration
	}

	if len(inputs) == 1 {
		if err := util.CopyFile(inputs[0], b.Output); err != nil {
			return nil, fmt.Errorf("%w: %v", ffmpeg.ErrConcat, err)
		}
	} else if err := m.concat.Concat(ctx, ffmpeg.ConcatOptions{
		Inputs:       inputs,
		Output:       b.Output,
		ProgressFunc: ffmpeg.LogProgress(m.logger, filepath.Base(b.Output)),
	}); err != nil {
		return nil, err
	}

	m.logger.Debug().Int("batch", b.Index).Int("inputs", len(inputs)).Str("output", b.Output).Msg("batch merged")

	return &clips.Clip{
		ID:       fmt.Sprintf("merged_%03d", b.Index),
		Path:     b.Output,
		Start:    b.Clips[0].Start,
		Duration: total,
		Part:     b.Clips[0].Part,
		Sources:  inputs,
	}, nil
}
