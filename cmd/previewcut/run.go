package main

import (
	"fmt"
	"os"

	"github.com/keagan/previewcut/internal/config"
	"github.com/keagan/previewcut/internal/ledger"
	"github.com/keagan/previewcut/internal/metrics"
	"github.com/keagan/previewcut/internal/pipeline"
	"github.com/keagan/previewcut/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run [videos or directories...]",
	Short: "Generate previews and thumbnail sheets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		sources, err := pipeline.Expand(args)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			log.Warn().Msg("no videos found")
			return nil
		}

		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		metrics.InitializeMetrics()

		var opts []pipeline.Option
		if cfg.Ledger.Path != "" {
			l, err := ledger.Open(cmd.Context(), log.Logger, cfg.Ledger.Path)
			if err != nil {
				log.Warn().Err(err).Msg("run ledger unavailable, continuing without it")
			} else {
				defer l.Close()
				opts = append(opts, pipeline.WithLedger(l))
			}
		}

		var progress pipeline.ProgressFunc
		if term.IsTerminal(int(os.Stderr.Fd())) && len(sources) > 1 {
			bar := progressbar.NewOptions(len(sources),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Previews"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(50),
				progressbar.OptionSetRenderBlankState(true),
			)
			defer bar.Finish()
			progress = func(_, _ int, _ *pipeline.Report) { _ = bar.Add(1) }
		}

		reports := pipeline.New(log.Logger, exec, cfg, opts...).Batch(cmd.Context(), sources, progress)

		if cfg.Metrics.Textfile != "" {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				log.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("failed to write metrics")
			}
		}

		for _, r := range reports {
			if r.OK() {
				log.Info().
					Str("source", r.Source).
					Int("artifacts", len(r.Artifacts)).
					Int("skipped", len(r.Skipped)).
					Dur("took", r.Duration).
					Msg("video done")
			}
		}

		if failed := pipeline.Failed(reports); len(failed) > 0 {
			return fmt.Errorf("%d of %d videos failed", len(failed), len(reports))
		}
		return nil
	},
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output", "o", "", "output directory (default: next to each video)")
	f.Bool("overwrite", false, "regenerate artifacts that already exist")
	f.Bool("keep-temp", false, "keep the scratch directory")
	f.Int("segments", 0, "number of segments")
	f.Int("grid", 0, "sheet grid width (3 or 4)")
	f.String("layout", "", "sheet layout (standard or enlarged-corner)")
	f.Bool("black-bars", false, "letterbox vertical videos into landscape segments")
	f.Bool("confirm", false, "confirm every cut point set interactively")
	f.Bool("print-cut-points", false, "log every accepted cut point set")
	f.String("last-cut-point", "", "pin the final cut point (seconds or HH:MM:SS)")
	f.Int("concurrency", 0, "videos processed at once")
	f.String("title", "", "title shown in the sheet header")
	f.String("date", "", "date shown in the sheet header")
}

// applyRunFlags layers explicitly set flags over the loaded configuration
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.OutputDir, _ = f.GetString("output")
	}
	if f.Changed("overwrite") {
		cfg.Overwrite, _ = f.GetBool("overwrite")
	}
	if f.Changed("keep-temp") {
		cfg.KeepTemp, _ = f.GetBool("keep-temp")
	}
	if f.Changed("segments") {
		cfg.Preview.Segments, _ = f.GetInt("segments")
	}
	if f.Changed("grid") {
		cfg.Preview.GridWidth, _ = f.GetInt("grid")
	}
	if f.Changed("layout") {
		cfg.Preview.Layout, _ = f.GetString("layout")
	}
	if f.Changed("black-bars") {
		cfg.Preview.BlackBars, _ = f.GetBool("black-bars")
	}
	if f.Changed("confirm") {
		cfg.Preview.ConfirmCutPoints, _ = f.GetBool("confirm")
	}
	if f.Changed("print-cut-points") {
		cfg.Preview.PrintCutPoints, _ = f.GetBool("print-cut-points")
	}
	if f.Changed("last-cut-point") {
		raw, _ := f.GetString("last-cut-point")
		secs, err := util.ParseTimestamp(raw)
		if err != nil {
			return fmt.Errorf("--last-cut-point: %w", err)
		}
		cfg.Preview.LastCutPoint = secs
	}
	if f.Changed("concurrency") {
		cfg.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("title") {
		cfg.Preview.Title, _ = f.GetString("title")
	}
	if f.Changed("date") {
		cfg.Preview.Date, _ = f.GetString("date")
	}
	return nil
}
