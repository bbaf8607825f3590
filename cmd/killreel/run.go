package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kikiluvv/killreel/internal/config"
	"github.com/kikiluvv/killreel/internal/ffmpeg"
	"github.com/kikiluvv/killreel/internal/observe"
	"github.com/kikiluvv/killreel/internal/ocr"
	"github.com/kikiluvv/killreel/internal/pipeline"
	"github.com/kikiluvv/killreel/internal/watcher"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [input video]",
	Short: "Extract highlights and render shorts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe, closeFn, err := buildPipeline(ctx, config.FromContext(ctx), true)
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := pipe.Run(ctx, args[0])
		if err != nil {
			return err
		}
		printReport(cmd, report)
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [input video]",
	Short: "Detect kill events and print them as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe, closeFn, err := buildPipeline(ctx, config.FromContext(ctx), true)
		if err != nil {
			return err
		}
		defer closeFn()

		det, err := pipe.Scan(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(det)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Process recordings dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := config.FromContext(ctx)
		pipe, closeFn, err := buildPipeline(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer closeFn()

		queue := make(chan string, 64)
		w, err := watcher.New(log.Logger, args[0], cfg.Watch.Debounce, func(path string) {
			select {
			case queue <- path:
			default:
				log.Warn().Str("input", path).Msg("watch queue full, dropping recording")
			}
		})
		if err != nil {
			return err
		}
		w.Start()
		defer w.Stop()

		// recordings are processed one at a time
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("watch stopped")
				return nil
			case path := <-queue:
				report, err := pipe.Run(ctx, path)
				if err != nil {
					log.Error().Err(err).Str("input", path).Msg("run failed")
					continue
				}
				printReport(cmd, report)
			}
		}
	},
}

// buildPipeline wires the ffmpeg executor, the OCR pool when withOCR is set,
// and metrics. The returned func releases them.
func buildPipeline(ctx context.Context, cfg *config.Config, withOCR bool) (*pipeline.Pipeline, func(), error) {
	ff, err := ffmpeg.New(log.Logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	var (
		deps    = pipeline.Deps{Media: ff}
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if withOCR {
		rec, err := ocr.New(log.Logger, cfg.OCR)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize ocr: %w", err)
		}
		pool := ocr.NewPool(log.Logger, rec, cfg.OCR.Workers)
		deps.OCR = pool
		closers = append(closers, func() {
			if err := pool.Close(); err != nil {
				log.Warn().Err(err).Msg("closing ocr backend")
			}
		})
	}

	if cfg.Metrics.Addr != "" {
		met, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		closers = append(closers, func() { _ = shutdown(context.Background()) })
		if err := observe.Serve(ctx, log.Logger, cfg.Metrics.Addr); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to serve metrics: %w", err)
		}
		deps.Metrics = met
	}

	return pipeline.New(log.Logger, cfg, deps), closeAll, nil
}

func printReport(cmd *cobra.Command, report *pipeline.Report) {
	out := cmd.OutOrStdout()
	if report.Outcome == pipeline.OutcomeNoEvents {
		fmt.Fprintf(out, "%s: no events in %d samples\n", report.Input, report.Samples)
		return
	}

	fmt.Fprintf(out, "%s: %d events, %d clips, %d batches\n",
		report.Input, len(report.Events), len(report.Clips), len(report.Batches))
	for _, ev := range report.Events {
		if ev.Part > 0 {
			fmt.Fprintf(out, "  %s  %s (part %d)\n", util.FormatDuration(ev.At), ev.Keyword, ev.Part)
			continue
		}
		fmt.Fprintf(out, "  %s  %s\n", util.FormatDuration(ev.At), ev.Keyword)
	}
	for _, o := range report.Outputs() {
		fmt.Fprintf(out, "  -> %s\n", o.Path)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  !! %s\n", f.Error())
	}
	fmt.Fprintf(out, "manifest: %s/manifest.json (%s)\n", report.OutputDir, report.Elapsed.Round(time.Millisecond))
}
