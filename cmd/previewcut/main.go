package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/keagan/previewcut/internal/config"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/keagan/previewcut/internal/ledger"
	"github.com/keagan/previewcut/internal/logging"
	"github.com/keagan/previewcut/internal/pipeline"
	"github.com/keagan/previewcut/internal/planner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "previewcut",
	Short:        "previewcut - scene-aware video preview generator",
	Long:         "Cuts short scene-safe segments out of long videos and assembles animated previews and thumbnail sheets.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Initialize logging
		if err := logging.Init(verbose, cfg.Log.File); err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./previewcut.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().String("source", "", "only show runs of this video")
}

func newExecutor(cfg *config.Config) (*ffmpeg.Executor, error) {
	return ffmpeg.New(log.Logger, ffmpeg.Options{
		Threads:           cfg.FFmpeg.Threads,
		SceneProbeTimeout: cfg.FFmpeg.SceneProbeTimeout,
	})
}

var planCmd = &cobra.Command{
	Use:   "plan [video]",
	Short: "Probe a video and print scene-safe cut points without extracting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		plan, src, err := pipeline.New(log.Logger, exec, cfg).Plan(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, line := range planner.Breakdown(plan.Points, src.Duration) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "Segment duration: %.2fs (%d discarded sets)\n", plan.SegmentDuration, plan.Discards)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "previewcut.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to replace it", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if cfg.Ledger.Path == "" {
			return fmt.Errorf("ledger is disabled, set ledger.path")
		}

		l, err := ledger.Open(cmd.Context(), log.Logger, cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer l.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		source, _ := cmd.Flags().GetString("source")
		runs, err := l.Recent(cmd.Context(), source, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTATE\tSEGMENTS\tTOOK\tSOURCE\tERROR")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				r.StartedAt.Format(time.DateTime), r.State, r.Segments,
				r.FinishedAt.Sub(r.StartedAt).Round(time.Second), r.Source, r.Error)
		}
		return w.Flush()
	},
}
