package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// WorkDir is the base directory for per-job scratch directories.
	// Empty means the system temp directory.
	WorkDir string `yaml:"work_dir"`

	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`
	Silence    SilenceConfig    `yaml:"silence"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Enhance    EnhanceConfig    `yaml:"enhance"`
	Subtitles  SubtitleConfig   `yaml:"subtitles"`
	Overlays   []OverlayConfig  `yaml:"overlays"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
	Preset     string `yaml:"preset"`
	CRF        int    `yaml:"crf"`
}

type SilenceConfig struct {
	ThresholdDBFS float64 `yaml:"threshold_dbfs"`
	MinSilenceMS  int     `yaml:"min_silence_ms"`
	PaddingMS     int     `yaml:"padding_ms"`
}

type TranscribeConfig struct {
	WhisperBin   string `yaml:"whisper_bin"`
	WhisperModel string `yaml:"whisper_model"`
	WordsPerLine int    `yaml:"words_per_line"`
	Language     string `yaml:"language"`
}

type TrackerConfig struct {
	SampleFPS       float64 `yaml:"sample_fps"`
	SmoothingWindow int     `yaml:"smoothing_window"`
	DetectorCmd     string  `yaml:"detector_cmd"`
}

type EnhanceConfig struct {
	Denoise         float64 `yaml:"denoise"`
	Sharpen         float64 `yaml:"sharpen"`
	Contrast        float64 `yaml:"contrast"`
	Brightness      float64 `yaml:"brightness"`
	Saturation      float64 `yaml:"saturation"`
	Gamma           float64 `yaml:"gamma"`
	ShadowHighlight float64 `yaml:"shadow_highlight"`
	NoiseReduction  float64 `yaml:"noise_reduction"`
	NormalizeToDBFS float64 `yaml:"normalize_to_dbfs"`
}

// OverlayConfig declares one overlay applied to every processed video.
// Kind is image, text or audio; audio items ignore end_ms and play to their
// natural length.
type OverlayConfig struct {
	Kind    string  `yaml:"kind"`
	Path    string  `yaml:"path"`
	Text    string  `yaml:"text"`
	StartMS int     `yaml:"start_ms"`
	EndMS   int     `yaml:"end_ms"`
	Anchor  string  `yaml:"anchor"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Opacity float64 `yaml:"opacity"`
	Volume  float64 `yaml:"volume"`

	FontName    string `yaml:"font_name"`
	FontSize    int    `yaml:"font_size"`
	Color       string `yaml:"color"`
	StrokeColor string `yaml:"stroke_color"`
	StrokeWidth int    `yaml:"stroke_width"`
}

type SubtitleConfig struct {
	FontName     string   `yaml:"font_name"`
	FontSize     int      `yaml:"font_size"`
	FontColor    string   `yaml:"font_color"`
	OutlineColor string   `yaml:"outline_color"`
	OutlineWidth int      `yaml:"outline_width"`
	FontDirs     []string `yaml:"font_dirs"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
			Preset:     "medium",
			CRF:        23,
		},
		Silence: SilenceConfig{
			ThresholdDBFS: -40.0,
			MinSilenceMS:  1000,
			PaddingMS:     200,
		},
		Transcribe: TranscribeConfig{
			WhisperBin:   "whisper-cli",
			WhisperModel: "models/ggml-base.bin",
			WordsPerLine: 4,
		},
		Tracker: TrackerConfig{
			SampleFPS:       5,
			SmoothingWindow: 5,
		},
		Enhance: EnhanceConfig{
			Denoise:         3.0,
			Sharpen:         0.6,
			Contrast:        1.05,
			Brightness:      0.0,
			Saturation:      1.1,
			Gamma:           1.0,
			ShadowHighlight: 0.0,
			NoiseReduction:  0.5,
			NormalizeToDBFS: -16.0,
		},
		Subtitles: SubtitleConfig{
			FontName:     "Arial",
			FontSize:     48,
			FontColor:    "#FFFFFF",
			OutlineColor: "#000000",
			OutlineWidth: 2,
			FontDirs:     defaultFontDirs(),
		},
	}
}

func defaultFontDirs() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"/usr/share/fonts",
		"/usr/local/share/fonts",
		filepath.Join(home, ".local", "share", "fonts"),
		filepath.Join(home, "Library", "Fonts"),
		"/System/Library/Fonts",
		"C:\\Windows\\Fonts",
	}
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		"./reelforge.yaml",
		"./reelforge.yml",
		filepath.Join(home, ".reelforge", "config.yaml"),
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
