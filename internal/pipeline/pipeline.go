// Package pipeline sequences a recording from probe to delivery files.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kikiluvv/killreel/internal/clips"
	"github.com/kikiluvv/killreel/internal/config"
	"github.com/kikiluvv/killreel/internal/convert"
	"github.com/kikiluvv/killreel/internal/detect"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/internal/logging"
	"github.com/kikiluvv/killreel/internal/merge"
	"github.com/kikiluvv/killreel/internal/music"
	"github.com/kikiluvv/killreel/internal/observe"
	"github.com/kikiluvv/killreel/internal/overlays"
	"github.com/kikiluvv/killreel/internal/scan"
	"github.com/kikiluvv/killreel/internal/vertical"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Media is everything the pipeline needs from ffmpeg. *ffmpeg.Executor
// implements it.
type Media interface {
	ProbeVideo(ctx context.Context, file string) (*ffmpeg.VideoInfo, error)
	Split(ctx context.Context, input string, total time.Duration, n int, outDir string) ([]ffmpeg.Part, error)
	DetectH264Encoder(ctx context.Context) string
	scan.FrameSource
	clips.Extractor
	merge.Concatenator
	vertical.Transformer
	convert.Transcoder
}

// Deps are the collaborators shared across runs
type Deps struct {
	Media Media
	OCR   scan.TextReader
	// Music overrides the per-run pool loaded from music.dir.
	Music vertical.TrackSource
	// Overlays overrides the registry built from vertical.overlays.
	Overlays *overlays.Registry
	Metrics  *observe.Metrics
}

// Pipeline orchestrates the entire highlight workflow
type Pipeline struct {
	logger zerolog.Logger
	cfg    *config.Config
	deps   Deps
}

// New creates a new pipeline instance
func New(logger zerolog.Logger, cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		cfg:    cfg,
		deps:   deps,
	}
}

// Run processes one recording. Probe, split and scan errors abort the run.
// Per-artifact failures are collected in the report unless fail_fast is set.
// A recording without events returns OutcomeNoEvents and a nil error.
func (p *Pipeline) Run(ctx context.Context, input string) (*Report, error) {
	if input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}

	report := newReport(input, ModeDetect)
	logger := logging.WithRun(p.logger, report.RunID, input)
	workDir := filepath.Join(p.cfg.WorkDir, report.RunID)
	tracker := clips.NewTracker()
	defer p.cleanup(logger, tracker, workDir, report)

	logger.Info().Msg("starting highlight pipeline")

	det, err := p.detect(ctx, logger, input, workDir)
	if err != nil {
		return nil, err
	}
	report.Source = det.Source
	report.SourceDuration = det.Duration
	report.Parts = len(det.Parts)
	report.Samples = det.Samples
	report.Events = det.Events

	if len(det.Events) == 0 {
		report.Outcome = OutcomeNoEvents
		report.Elapsed = time.Since(report.StartedAt)
		logger.Info().Int("samples", det.Samples).Msg("no events found")
		return report, nil
	}

	report.OutputDir = p.outputDir(input, report)
	err = p.produce(ctx, logger, input, workDir, tracker, report)
	return p.finish(logger, report, err)
}

// CutOptions selects clip windows by hand instead of scanning
type CutOptions struct {
	Starts []time.Duration
	Length time.Duration
	// Formats override convert.formats. When both are empty vertical.format
	// is used.
	Formats []string
}

// Cut extracts Length-long windows at the given start times and converts
// each into 9:16 delivery files. Starts outside the recording are reported
// as export failures.
func (p *Pipeline) Cut(ctx context.Context, input string, opts CutOptions) (*Report, error) {
	if input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}
	if len(opts.Starts) == 0 {
		return nil, fmt.Errorf("at least one start time is required")
	}
	if opts.Length <= 0 {
		return nil, fmt.Errorf("clip length must be positive, got %v", opts.Length)
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = p.cfg.Convert.Formats
	}
	if len(formats) == 0 {
		formats = []string{p.cfg.Vertical.Format}
	}
	for _, f := range formats {
		if _, err := ffmpeg.PresetFor(f, ""); err != nil {
			return nil, err
		}
	}

	report := newReport(input, ModeManual)
	logger := logging.WithRun(p.logger, report.RunID, input)
	workDir := filepath.Join(p.cfg.WorkDir, report.RunID)
	tracker := clips.NewTracker()
	defer p.cleanup(logger, tracker, workDir, report)

	logger.Info().Int("starts", len(opts.Starts)).Dur("length", opts.Length).Msg("starting manual cut")

	start := time.Now()
	source, err := p.deps.Media.ProbeVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	p.deps.Metrics.ObserveStage(ctx, StageProbe, start)
	report.Source = source
	report.SourceDuration = source.Duration

	var outside []clips.Failure
	for _, at := range opts.Starts {
		if at < 0 || at >= source.Duration {
			outside = append(outside, clips.Failure{
				Item: util.FormatDuration(at),
				Err:  fmt.Errorf("%w: start %v outside recording of %v", ffmpeg.ErrExtract, at, source.Duration),
			})
			continue
		}
		report.Events = append(report.Events, detect.Event{At: at, Keyword: manualKeyword})
	}

	report.OutputDir = p.outputDir(input, report)
	err = p.produceManual(ctx, logger, input, workDir, formats, opts.Length, outside, tracker, report)
	return p.finish(logger, report, err)
}

// Scan runs probe, split and detection only
func (p *Pipeline) Scan(ctx context.Context, input string) (*Detection, error) {
	runID := uuid.New().String()
	logger := logging.WithRun(p.logger, runID, input)
	workDir := filepath.Join(p.cfg.WorkDir, runID)
	defer os.RemoveAll(workDir)

	return p.detect(ctx, logger, input, workDir)
}

func (p *Pipeline) detect(ctx context.Context, logger zerolog.Logger, input, workDir string) (*Detection, error) {
	if p.deps.OCR == nil {
		return nil, fmt.Errorf("no text recognizer configured")
	}

	start := time.Now()
	source, err := p.deps.Media.ProbeVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	total := source.Duration
	p.deps.Metrics.ObserveStage(ctx, StageProbe, start)

	start = time.Now()
	parts, err := p.deps.Media.Split(ctx, input, total, p.cfg.Scan.Parts, filepath.Join(workDir, "parts"))
	if err != nil {
		return nil, err
	}
	p.deps.Metrics.ObserveStage(ctx, StageSplit, start)

	logger.Info().Dur("duration", total).Int("parts", len(parts)).Msg("recording split")

	region, err := scan.ParseRegion(p.cfg.Scan.Region)
	if err != nil {
		return nil, err
	}
	sampler := scan.NewSampler(logger, p.deps.Media, p.deps.OCR, scan.Options{
		Interval: p.cfg.Scan.Interval,
		Region:   region,
		Resize:   p.cfg.Scan.Resize,
	}, p.deps.Metrics)

	detCfg := detect.Config{
		Keywords: p.cfg.Scan.Keywords,
		Cooldown: p.cfg.Clip.EffectiveCooldown(),
	}
	matcher := detect.NewMatcher(detCfg.Keywords)

	// parts only collect keyword matches; the cooldown runs once over the
	// combined timeline
	start = time.Now()
	perPart := make([][]detect.Sample, len(parts))
	samples := make([]int, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Scan.ParallelParts)
	for i, part := range parts {
		g.Go(func() error {
			var matched []detect.Sample
			n, err := sampler.Scan(gctx, part, func(s detect.Sample) {
				if keyword, ok := matcher.Match(s.Text); ok {
					logger.Debug().Int("part", part.Index).Dur("at", part.Offset+s.At).Str("keyword", keyword).Msg("keyword seen")
					matched = append(matched, s)
				}
			})
			samples[i] = n
			if part.Temporary {
				if rmErr := os.Remove(part.Path); rmErr != nil && !os.IsNotExist(rmErr) {
					logger.Warn().Err(rmErr).Str("path", part.Path).Msg("cannot remove part")
				}
			}
			if err != nil {
				return err
			}
			perPart[i] = detect.Rebase(matched, part.Index, part.Offset)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	p.deps.Metrics.ObserveStage(ctx, StageScan, start)

	events := detect.Combine(perPart, detCfg)
	if events == nil {
		events = []detect.Event{}
	}
	totalSamples := 0
	for _, n := range samples {
		totalSamples += n
	}
	for _, ev := range events {
		logger.Info().Int("part", ev.Part).Dur("at", ev.At).Str("keyword", ev.Keyword).Msg("event detected")
		p.deps.Metrics.RecordEvent(ctx, ev.Keyword)
	}

	return &Detection{
		Source:   source,
		Duration: total,
		Parts:    parts,
		Samples:  totalSamples,
		Events:   events,
	}, nil
}

// produce runs export, merge, reformat and convert into report
func (p *Pipeline) produce(ctx context.Context, logger zerolog.Logger, input, workDir string, tracker *clips.Tracker, report *Report) error {
	workers := p.cfg.Pipeline.Workers

	formats := slices.Clone(p.cfg.Convert.Formats)
	if p.cfg.Vertical.Enabled {
		formats = append(formats, p.cfg.Vertical.Format)
	}
	encoder := p.encoderFor(ctx, formats)

	// export
	start := time.Now()
	exporter := clips.NewExporter(logger, p.deps.Media, p.cfg.Clip.PreWindow, p.cfg.Clip.PostWindow, workers)
	exported, failed := exporter.Export(ctx, input, report.Events, filepath.Join(workDir, "clips"))
	tracker.AddClips(exported)
	report.Clips = exported
	if err := p.finishStage(ctx, StageExport, start, len(exported), failed, report); err != nil {
		return err
	}

	// merge; merged files are intermediates only when later stages consume them
	mergeDir := filepath.Join(report.OutputDir, "merged")
	intermediate := p.cfg.Vertical.Enabled || len(p.cfg.Convert.Formats) > 0
	if intermediate {
		mergeDir = filepath.Join(workDir, "merged")
	}
	start = time.Now()
	merger := merge.NewMerger(logger, p.deps.Media, workers)
	merged, failed := merger.Merge(ctx, exported, p.cfg.Merge.Scope, mergeDir)
	if intermediate {
		tracker.AddClips(merged)
	}
	report.Batches = merged
	if err := p.finishStage(ctx, StageMerge, start, len(merged), failed, report); err != nil {
		return err
	}

	final := merged
	if p.cfg.Vertical.Enabled {
		codec, err := ffmpeg.PresetFor(p.cfg.Vertical.Format, encoder)
		if err != nil {
			return err
		}

		tracks := p.deps.Music
		if tracks == nil {
			pool, err := music.LoadDir(p.cfg.Music.Dir, music.Seeded(p.cfg.Music.Seed))
			if err != nil {
				logger.Warn().Err(err).Msg("music unavailable, keeping source audio")
			} else {
				logger.Debug().Int("tracks", pool.Total()).Msg("music pool loaded")
				tracks = pool
			}
		}

		var registry *overlays.Registry
		if p.cfg.Vertical.OverlaysEnabled {
			registry = p.deps.Overlays
			if registry == nil {
				registry = overlays.FromConfig(p.cfg.Vertical.Overlays)
			}
		}

		start = time.Now()
		reformatter := vertical.New(logger, p.deps.Media, tracks, registry, vertical.Options{
			Width:  p.cfg.Vertical.Width,
			Height: p.cfg.Vertical.Height,
			Bar:    p.cfg.Vertical.BarHeight,
			Codec:  codec,

			NoSourceAudio: report.Source != nil && !report.Source.HasAudio,
		})
		shorts, failed := reformatter.ReformatAll(ctx, merged, filepath.Join(report.OutputDir, "shorts"), workers)
		report.Shorts = shorts
		if err := p.finishStage(ctx, StageVertical, start, len(shorts), failed, report); err != nil {
			return err
		}
		final = shorts
	}

	if len(p.cfg.Convert.Formats) > 0 {
		start = time.Now()
		converter := convert.New(logger, p.deps.Media, encoder, p.cfg.Vertical.Width, p.cfg.Vertical.Height)
		deliverables, failed := converter.ConvertAll(ctx, final, p.cfg.Convert.Formats, filepath.Join(report.OutputDir, "reels"), workers)
		report.Deliverables = deliverables
		if err := p.finishStage(ctx, StageConvert, start, len(deliverables), failed, report); err != nil {
			return err
		}
	}

	return nil
}

// produceManual exports the hand-picked windows and converts them.
// outside holds starts already rejected before export.
func (p *Pipeline) produceManual(ctx context.Context, logger zerolog.Logger, input, workDir string, formats []string, length time.Duration, outside []clips.Failure, tracker *clips.Tracker, report *Report) error {
	workers := p.cfg.Pipeline.Workers

	start := time.Now()
	exporter := clips.NewExporter(logger, p.deps.Media, 0, length, workers)
	exported, failed := exporter.Export(ctx, input, report.Events, filepath.Join(workDir, "clips"))
	tracker.AddClips(exported)
	report.Clips = exported
	if err := p.finishStage(ctx, StageExport, start, len(exported), append(outside, failed...), report); err != nil {
		return err
	}

	start = time.Now()
	converter := convert.New(logger, p.deps.Media, p.encoderFor(ctx, formats), p.cfg.Vertical.Width, p.cfg.Vertical.Height)
	deliverables, failed := converter.ConvertAll(ctx, exported, formats, filepath.Join(report.OutputDir, "reels"), workers)
	report.Deliverables = deliverables
	return p.finishStage(ctx, StageConvert, start, len(deliverables), failed, report)
}

// encoderFor resolves convert.encoder. Hardware probing only happens when
// one of formats needs H.264.
func (p *Pipeline) encoderFor(ctx context.Context, formats []string) string {
	encoder := p.cfg.Convert.Encoder
	if encoder != "" && encoder != "auto" {
		return encoder
	}
	if slices.Contains(formats, "mp4") {
		return p.deps.Media.DetectH264Encoder(ctx)
	}
	return "libx264"
}

func (p *Pipeline) outputDir(input string, report *Report) string {
	return filepath.Join(p.cfg.OutputDir,
		fmt.Sprintf("%s-%s-%s", util.Stem(input), report.StartedAt.Format("20060102-150405"), report.RunID[:8]))
}

// cleanup removes intermediates and the work dir unless keep_intermediates
// is set. Failures are appended to report after the manifest was written.
func (p *Pipeline) cleanup(logger zerolog.Logger, tracker *clips.Tracker, workDir string, report *Report) {
	if p.cfg.KeepIntermediates {
		return
	}
	for _, f := range tracker.Cleanup() {
		logger.Warn().Err(f.Err).Str("path", f.Item).Msg("cannot remove intermediate")
		report.Failures = append(report.Failures, Failure{Stage: StageCleanup, Item: f.Item, Err: f.Err})
	}
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn().Err(err).Str("path", workDir).Msg("cannot remove work dir")
	}
}

// finish sets the outcome and writes the manifest. err is the production
// error, if any, and is returned alongside the report.
func (p *Pipeline) finish(logger zerolog.Logger, report *Report, err error) (*Report, error) {
	report.Elapsed = time.Since(report.StartedAt)
	report.Outcome = OutcomeCompleted
	if err != nil {
		report.Outcome = OutcomeFailed
	}

	if werr := writeManifest(report); werr != nil {
		logger.Error().Err(werr).Msg("cannot write manifest")
		if err == nil {
			err = werr
		}
	}
	if err != nil {
		return report, err
	}

	logger.Info().
		Str("mode", report.Mode).
		Int("events", len(report.Events)).
		Int("outputs", len(report.Outputs())).
		Int("failures", len(report.Failures)).
		Dur("elapsed", report.Elapsed).
		Str("output", report.OutputDir).
		Msg("pipeline complete")
	return report, nil
}

// finishStage records metrics and failures. With fail_fast the first failure
// ends the run.
func (p *Pipeline) finishStage(ctx context.Context, stage string, start time.Time, ok int, failed []clips.Failure, report *Report) error {
	p.deps.Metrics.ObserveStage(ctx, stage, start)
	p.deps.Metrics.RecordArtifacts(ctx, stage, ok, len(failed))
	report.Failures = append(report.Failures, stageFailures(stage, failed)...)

	if err := ctx.Err(); err != nil {
		return err
	}
	if p.cfg.Pipeline.FailFast && len(failed) > 0 {
		return fmt.Errorf("%s: %w", stage, failed[0])
	}
	return nil
}

func writeManifest(report *Report) error {
	if err := util.EnsureDir(report.OutputDir); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(report.OutputDir, "manifest.json"), data, 0644)
}
