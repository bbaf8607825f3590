package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kikiluvv/killreel/internal/config"
	"github.com/kikiluvv/killreel/internal/logging"
	"github.com/kikiluvv/killreel/internal/music"
	"github.com/kikiluvv/killreel/internal/overlays"
	"github.com/kikiluvv/killreel/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	verbose     bool
	jsonLog     bool
	metricsAddr string
	forceInit   bool
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "killreel",
	Short:         "killreel - kill-feed highlight extractor",
	Long:          "Finds kill-feed moments in long gameplay recordings and turns them into vertical shorts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose, jsonLog)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if metricsAddr != "" {
			cfg.Metrics.Addr = metricsAddr
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./killreel.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log JSON lines instead of console output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cutCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(listCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if util.FileExists(args[0]) && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", args[0])
		}
		if err := config.Default().Save(args[0]); err != nil {
			return err
		}
		log.Info().Str("path", args[0]).Msg("config written")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:       "list [overlays|music]",
	Short:     "List available resources",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"overlays", "music"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		out := cmd.OutOrStdout()

		switch args[0] {
		case "overlays":
			for _, o := range overlays.FromConfig(cfg.Vertical.Overlays).List() {
				status := "ok"
				if !util.FileExists(o.Path) {
					status = "missing"
				}
				fmt.Fprintf(out, "%-10s %-30s %4dx%-4d at (%s, %s) [%s]\n",
					o.Name, o.Path, o.Width, o.Height, o.Position.X, o.Position.Y, status)
			}
			if !cfg.Vertical.OverlaysEnabled {
				fmt.Fprintln(out, "(overlays disabled)")
			}
		case "music":
			tracks, err := music.ListTracks(cfg.Music.Dir)
			if err != nil {
				return err
			}
			for _, t := range tracks {
				fmt.Fprintln(out, t)
			}
			fmt.Fprintf(out, "%d tracks in %s\n", len(tracks), cfg.Music.Dir)
		}
		return nil
	},
}
