package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Merge scopes
const (
	ScopeGlobal = "global"
	ScopeLocal  = "local"
)

// OCR backends
const (
	BackendTesseract = "tesseract"
	BackendONNX      = "onnx"
	BackendRemote    = "remote"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir           string `yaml:"work_dir"`
	OutputDir         string `yaml:"output_dir"`
	KeepIntermediates bool   `yaml:"keep_intermediates"`

	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Scan     ScanConfig     `yaml:"scan"`
	OCR      OCRConfig      `yaml:"ocr"`
	Clip     ClipConfig     `yaml:"clip"`
	Merge    MergeConfig    `yaml:"merge"`
	Vertical VerticalConfig `yaml:"vertical"`
	Music    MusicConfig    `yaml:"music"`
	Convert  ConvertConfig  `yaml:"convert"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Watch    WatchConfig    `yaml:"watch"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

type ScanConfig struct {
	Keywords      []string      `yaml:"keywords"`
	Interval      time.Duration `yaml:"interval"`
	Parts         int           `yaml:"parts"`
	ParallelParts int           `yaml:"parallel_parts"`
	Region        string        `yaml:"region"`
	Resize        float64       `yaml:"resize"`
}

type OCRConfig struct {
	Backend string `yaml:"backend"`
	Workers int    `yaml:"workers"`

	TesseractPath string `yaml:"tesseract_path"`
	Language      string `yaml:"language"`
	PSM           int    `yaml:"psm"`

	ModelPath   string `yaml:"model_path"`
	DictPath    string `yaml:"dict_path"`
	LibraryPath string `yaml:"library_path"`
	UseGPU      bool   `yaml:"use_gpu"`

	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ClipConfig struct {
	PreWindow  time.Duration `yaml:"pre_window"`
	PostWindow time.Duration `yaml:"post_window"`
	// Cooldown of zero means pre_window + post_window.
	Cooldown time.Duration `yaml:"cooldown"`
}

// EffectiveCooldown returns the minimum spacing between two accepted events
func (c ClipConfig) EffectiveCooldown() time.Duration {
	if c.Cooldown > 0 {
		return c.Cooldown
	}
	return c.PreWindow + c.PostWindow
}

type MergeConfig struct {
	Scope string `yaml:"scope"`
}

type OverlayConfig struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// X and Y are ffmpeg overlay expressions (W/H main size, w/h overlay size).
	X string `yaml:"x"`
	Y string `yaml:"y"`
}

type VerticalConfig struct {
	Enabled         bool            `yaml:"enabled"`
	Width           int             `yaml:"width"`
	Height          int             `yaml:"height"`
	BarHeight       int             `yaml:"bar_height"`
	Format          string          `yaml:"format"`
	OverlaysEnabled bool            `yaml:"overlays_enabled"`
	Overlays        []OverlayConfig `yaml:"overlays"`
}

type MusicConfig struct {
	Dir  string `yaml:"dir"`
	Seed int64  `yaml:"seed"`
}

type ConvertConfig struct {
	Formats []string `yaml:"formats"`
	Encoder string   `yaml:"encoder"`
}

type PipelineConfig struct {
	Workers  int  `yaml:"workers"`
	FailFast bool `yaml:"fail_fast"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if len(c.Scan.Keywords) == 0 {
		return fmt.Errorf("scan.keywords must not be empty")
	}
	for _, k := range c.Scan.Keywords {
		if k == "" {
			return fmt.Errorf("scan.keywords must not contain empty entries")
		}
	}
	if c.Scan.Interval <= 0 {
		return fmt.Errorf("scan.interval must be positive")
	}
	if c.Scan.Parts < 1 {
		return fmt.Errorf("scan.parts must be at least 1")
	}
	if c.Scan.ParallelParts < 1 {
		return fmt.Errorf("scan.parallel_parts must be at least 1")
	}
	if c.Scan.Resize <= 0 || c.Scan.Resize > 1 {
		return fmt.Errorf("scan.resize must be in (0, 1]")
	}
	if c.OCR.Workers < 1 {
		return fmt.Errorf("ocr.workers must be at least 1")
	}
	switch c.OCR.Backend {
	case BackendTesseract, BackendONNX:
	case BackendRemote:
		if c.OCR.URL == "" {
			return fmt.Errorf("ocr.url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown ocr.backend %q", c.OCR.Backend)
	}
	if c.Clip.PreWindow < 0 || c.Clip.PostWindow < 0 {
		return fmt.Errorf("clip windows must not be negative")
	}
	if c.Clip.PreWindow+c.Clip.PostWindow <= 0 {
		return fmt.Errorf("clip window must have a positive duration")
	}
	switch c.Merge.Scope {
	case ScopeGlobal, ScopeLocal:
	default:
		return fmt.Errorf("unknown merge.scope %q", c.Merge.Scope)
	}
	if c.Vertical.Enabled {
		if c.Vertical.Width <= 0 || c.Vertical.Height <= 0 {
			return fmt.Errorf("vertical size must be positive")
		}
		if c.Vertical.BarHeight < 0 || c.Vertical.BarHeight >= c.Vertical.Height {
			return fmt.Errorf("vertical.bar_height must be in [0, height)")
		}
		if !knownFormat(c.Vertical.Format) {
			return fmt.Errorf("unknown vertical.format %q", c.Vertical.Format)
		}
	}
	for _, f := range c.Convert.Formats {
		if !knownFormat(f) {
			return fmt.Errorf("unknown convert format %q", f)
		}
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	return nil
}

func knownFormat(f string) bool {
	return f == "webm" || f == "mp4"
}

func defaultConfig() *Config {
	return &Config{
		WorkDir:   "./work",
		OutputDir: "./out",
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Scan: ScanConfig{
			Keywords:      []string{"ENEMY DOWNED"},
			Interval:      time.Second,
			Parts:         4,
			ParallelParts: 1,
			Region:        "top-right",
			Resize:        0.6,
		},
		OCR: OCRConfig{
			Backend:       BackendTesseract,
			Workers:       2,
			TesseractPath: "tesseract",
			Language:      "eng",
			PSM:           6,
			ModelPath:     "./models/text_rec.onnx",
			DictPath:      "./models/text_rec_dict.txt",
			Timeout:       10 * time.Second,
		},
		Clip: ClipConfig{
			PreWindow:  5 * time.Second,
			PostWindow: 5 * time.Second,
		},
		Merge: MergeConfig{
			Scope: ScopeGlobal,
		},
		Vertical: VerticalConfig{
			Enabled:         true,
			Width:           1080,
			Height:          1920,
			BarHeight:       200,
			Format:          "webm",
			OverlaysEnabled: true,
			Overlays: []OverlayConfig{
				{Name: "icon", Path: "./assets/icon.png", Width: 300, Height: 200, X: "0", Y: "H-h"},
				{Name: "logo", Path: "./assets/logo.png", Width: 180, Height: 180, X: "W-w-20", Y: "H-h-10"},
			},
		},
		Music: MusicConfig{
			Dir: "./background_musics",
		},
		Convert: ConvertConfig{
			Formats: []string{"mp4"},
			Encoder: "auto",
		},
		Pipeline: PipelineConfig{
			Workers: 2,
		},
		Watch: WatchConfig{
			Debounce: 5 * time.Second,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KILLREEL_OCR_BACKEND"); v != "" {
		cfg.OCR.Backend = v
	}
	if v := os.Getenv("KILLREEL_OCR_URL"); v != "" {
		cfg.OCR.URL = v
	}
	if v := os.Getenv("KILLREEL_ORT_LIB"); v != "" {
		cfg.OCR.LibraryPath = v
	}
	if v := os.Getenv("KILLREEL_FFMPEG"); v != "" {
		cfg.FFmpeg.BinaryPath = v
	}
	if v := os.Getenv("KILLREEL_FFPROBE"); v != "" {
		cfg.FFmpeg.ProbePath = v
	}
}

func findConfigFile() string {
	candidates := []string{
		"./killreel.yaml",
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".killreel", "config.yaml"),
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
	return defaultConfig()
}
