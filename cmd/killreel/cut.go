package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kikiluvv/killreel/internal/config"
	"github.com/kikiluvv/killreel/internal/pipeline"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/spf13/cobra"
)

var (
	cutAt      []string
	cutLength  time.Duration
	cutFormats []string
)

var cutCmd = &cobra.Command{
	Use:   "cut [input video]",
	Short: "Cut vertical shorts at hand-picked start times",
	Long: `Cuts fixed-length windows at the given start times and converts each one
to a 9:16 delivery file. No frames are scanned.

  killreel cut session.mp4 --at 30s,2:00,4:10 --length 45s --format mp4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		starts, err := parseOffsets(cutAt)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe, closeFn, err := buildPipeline(ctx, config.FromContext(ctx), false)
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := pipe.Cut(ctx, args[0], pipeline.CutOptions{
			Starts:  starts,
			Length:  cutLength,
			Formats: cutFormats,
		})
		if err != nil {
			return err
		}
		printReport(cmd, report)
		return nil
	},
}

func init() {
	cutCmd.Flags().StringSliceVar(&cutAt, "at", nil, "start times (90s, 1m30s, 1:30 or 00:01:30.5)")
	cutCmd.Flags().DurationVar(&cutLength, "length", 45*time.Second, "length of each clip")
	cutCmd.Flags().StringSliceVar(&cutFormats, "format", nil, "output formats (default: convert.formats)")
	_ = cutCmd.MarkFlagRequired("at")
}

// parseOffsets reads clip start times. Each value is a Go duration or a
// timestamp; a bare number is seconds.
func parseOffsets(values []string) ([]time.Duration, error) {
	var out []time.Duration
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			if d, err = util.ParseTimestamp(v); err != nil {
				return nil, fmt.Errorf("invalid start time %q", v)
			}
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one start time is required")
	}
	return out, nil
}
