package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/extract"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/keagan/previewcut/internal/planner"
	"github.com/keagan/previewcut/internal/playlist"
	"github.com/keagan/previewcut/internal/sheet"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// EnvPrefix prefixes every environment override
const EnvPrefix = "PREVIEWCUT_"

// Config holds all application configuration
type Config struct {
	// Core settings
	OutputDir     string   `yaml:"output_dir" env:"OUTPUT_DIR"`
	KeepTemp      bool     `yaml:"keep_temp" env:"KEEP_TEMP"`
	Overwrite     bool     `yaml:"overwrite" env:"OVERWRITE"`
	Concurrency   int      `yaml:"concurrency" env:"CONCURRENCY"`
	ExcludedFiles []string `yaml:"excluded_files,omitempty" env:"EXCLUDED_FILES" envSeparator:","`

	FFmpeg  FFmpegConfig        `yaml:"ffmpeg" envPrefix:"FFMPEG_"`
	Preview PreviewConfig       `yaml:"preview" envPrefix:"PREVIEW_"`
	Formats FormatsConfig       `yaml:"formats" envPrefix:"FORMATS_"`
	Retry   planner.RetryPolicy `yaml:"retry" envPrefix:"RETRY_"`
	Ledger  LedgerConfig        `yaml:"ledger" envPrefix:"LEDGER_"`
	Metrics MetricsConfig       `yaml:"metrics" envPrefix:"METRICS_"`
	Log     LogConfig           `yaml:"log" envPrefix:"LOG_"`
}

type FFmpegConfig struct {
	Threads            int           `yaml:"threads" env:"THREADS"`
	SceneProbeTimeout  time.Duration `yaml:"scene_probe_timeout" env:"SCENE_PROBE_TIMEOUT"`
	ExtractConcurrency int           `yaml:"extract_concurrency" env:"EXTRACT_CONCURRENCY"`
	FontFile           string        `yaml:"font_file" env:"FONT_FILE"`
}

type PreviewConfig struct {
	Segments             int       `yaml:"segments" env:"SEGMENTS"`
	SegmentDuration      float64   `yaml:"segment_duration" env:"SEGMENT_DURATION"`
	GIFSegments          int       `yaml:"gif_segments" env:"GIF_SEGMENTS"`
	GIFFPS               float64   `yaml:"gif_fps" env:"GIF_FPS"`
	TimestampsMode       int       `yaml:"timestamps_mode" env:"TIMESTAMPS_MODE"`
	GridWidth            int       `yaml:"grid_width" env:"GRID_WIDTH"`
	BlackBars            bool      `yaml:"black_bars" env:"BLACK_BARS"`
	Layout               string    `yaml:"layout" env:"LAYOUT"`
	ConfirmCutPoints     bool      `yaml:"confirm_cut_points" env:"CONFIRM_CUT_POINTS"`
	PrintCutPoints       bool      `yaml:"print_cut_points" env:"PRINT_CUT_POINTS"`
	BlacklistedCutPoints []float64 `yaml:"blacklisted_cut_points,omitempty" env:"BLACKLISTED_CUT_POINTS" envSeparator:","`
	// LastCutPoint pins the final cut point, in seconds. Zero draws it.
	LastCutPoint      float64 `yaml:"last_cut_point" env:"LAST_CUT_POINT"`
	MinDuration       float64 `yaml:"min_duration" env:"MIN_DURATION"`
	KeepSheetOriginal bool    `yaml:"keep_sheet_original" env:"KEEP_SHEET_ORIGINAL"`
	// Title and Date fill the sheet header; Title replaces the container title
	Title string `yaml:"title,omitempty" env:"TITLE"`
	Date  string `yaml:"date,omitempty" env:"DATE"`
}

type FormatsConfig struct {
	WebP      bool `yaml:"webp" env:"WEBP"`
	WebM      bool `yaml:"webm" env:"WEBM"`
	GIF       bool `yaml:"gif" env:"GIF"`
	WebPSheet bool `yaml:"webp_sheet" env:"WEBP_SHEET"`
	WebMSheet bool `yaml:"webm_sheet" env:"WEBM_SHEET"`
	GIFSheet  bool `yaml:"gif_sheet" env:"GIF_SHEET"`
}

type LedgerConfig struct {
	// Path of the SQLite run history. Empty disables the ledger.
	Path string `yaml:"path" env:"PATH"`
}

type MetricsConfig struct {
	// Textfile receives a metrics dump after every batch when set
	Textfile string `yaml:"textfile" env:"TEXTFILE"`
}

type LogConfig struct {
	File string `yaml:"file" env:"FILE"`
}

// Load reads configuration from defaults, then the YAML file, then the
// environment. An empty path searches the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	ledger := ""
	if home, err := os.UserHomeDir(); err == nil {
		ledger = filepath.Join(home, ".previewcut", "runs.db")
	}

	return &Config{
		Concurrency: 0,
		FFmpeg: FFmpegConfig{
			Threads:            0,
			SceneProbeTimeout:  ffmpeg.DefaultSceneProbeTimeout,
			ExtractConcurrency: extract.DefaultConcurrency,
		},
		Preview: PreviewConfig{
			Segments:        12,
			SegmentDuration: 1.5,
			GIFSegments:     8,
			GIFFPS:          12,
			TimestampsMode:  int(playlist.ModeTaggedSheet),
			GridWidth:       4,
			Layout:          string(sheet.KindStandard),
			MinDuration:     150,
		},
		Formats: FormatsConfig{
			WebP:      true,
			WebM:      true,
			GIF:       true,
			WebPSheet: true,
			WebMSheet: true,
			GIFSheet:  false,
		},
		Retry:  planner.DefaultRetryPolicy(),
		Ledger: LedgerConfig{Path: ledger},
	}
}

// Validate checks the configuration before any video is touched
func (c *Config) Validate() error {
	p := c.Preview
	bad := func(format string, args ...any) error {
		return failure.Errorf(failure.Configuration, failure.StageConfig, format, args...)
	}

	switch {
	case p.Segments < 3:
		return bad("preview.segments must be at least 3, got %d", p.Segments)
	case p.SegmentDuration <= 0:
		return bad("preview.segment_duration must be positive, got %v", p.SegmentDuration)
	case p.GIFFPS <= 0:
		return bad("preview.gif_fps must be positive, got %v", p.GIFFPS)
	case !playlist.Mode(p.TimestampsMode).Valid():
		return bad("preview.timestamps_mode must be 1, 2 or 3, got %d", p.TimestampsMode)
	case !sheet.Kind(p.Layout).Valid():
		return bad("preview.layout must be %q or %q, got %q", sheet.KindStandard, sheet.KindEnlargedCorner, p.Layout)
	case p.MinDuration < 0:
		return bad("preview.min_duration must not be negative, got %v", p.MinDuration)
	case p.LastCutPoint < 0:
		return bad("preview.last_cut_point must not be negative, got %v", p.LastCutPoint)
	case c.Concurrency < 0:
		return bad("concurrency must not be negative, got %d", c.Concurrency)
	case c.FFmpeg.ExtractConcurrency < 0:
		return bad("ffmpeg.extract_concurrency must not be negative, got %d", c.FFmpeg.ExtractConcurrency)
	case c.Retry.DiscardsPerStep <= 0 || c.Retry.Step <= 0 || c.Retry.Floor <= 0:
		return bad("retry needs positive discards_per_step, step and floor")
	case c.Retry.MaxCycles < 0:
		return bad("retry.max_cycles must not be negative, got %d", c.Retry.MaxCycles)
	}

	for _, b := range p.BlacklistedCutPoints {
		if b <= 0 || b >= 1 {
			return bad("blacklisted cut point %v is not a fraction inside (0, 1)", b)
		}
	}

	return sheet.Validate(p.GridWidth, p.Segments, p.GIFSegments, c.SheetEnabled())
}

// PreviewFormats lists the enabled single-strip formats
func (c *Config) PreviewFormats() []clips.Format {
	return enabled(c.Formats.WebP, c.Formats.WebM, c.Formats.GIF)
}

// SheetFormats lists the enabled sheet formats
func (c *Config) SheetFormats() []clips.Format {
	return enabled(c.Formats.WebPSheet, c.Formats.WebMSheet, c.Formats.GIFSheet)
}

// SheetEnabled reports whether any sheet format is enabled
func (c *Config) SheetEnabled() bool {
	return len(c.SheetFormats()) > 0
}

// GIFEnabled reports whether the gif preview is built
func (c *Config) GIFEnabled() bool {
	return c.Formats.GIF
}

// IsExcluded reports whether path is listed in excluded_files, by full path or file name
func (c *Config) IsExcluded(path string) bool {
	abs, _ := filepath.Abs(path)
	for _, ex := range c.ExcludedFiles {
		if ex == path || ex == filepath.Base(path) {
			return true
		}
		if exAbs, err := filepath.Abs(ex); err == nil && exAbs == abs {
			return true
		}
	}
	return false
}

func enabled(webp, webm, gif bool) []clips.Format {
	var out []clips.Format
	for i, on := range []bool{webp, webm, gif} {
		if on {
			out = append(out, clips.Formats[i])
		}
	}
	return out
}

func findConfigFile() string {
	candidates := []string{
		"./previewcut.yaml",
		"./previewcut.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".previewcut", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
