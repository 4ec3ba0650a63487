package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cbetz421/gst-wk/internal/convert"
	"github.com/cbetz421/gst-wk/internal/sink"
)

// Config is the wkplay configuration file.
type Config struct {
	URIs   []string     `yaml:"uris"`
	Sink   SinkConfig   `yaml:"sink"`
	Player PlayerConfig `yaml:"player"`
	Log    LogConfig    `yaml:"log"`
}

// SinkConfig configures the video sink element.
type SinkConfig struct {
	AlphaPosition string `yaml:"alpha_position"` // native, alpha-last, alpha-first
	TextureUpload bool   `yaml:"texture_upload"`
	MaxFrameBytes int    `yaml:"max_frame_bytes"` // 0 = unbounded
	PoolDepth     int    `yaml:"pool_depth"`
	Silent        *bool  `yaml:"silent"` // per-buffer logging off unless set to false
}

// PlayerConfig configures playback.
type PlayerConfig struct {
	FPSDisplay        bool            `yaml:"fps_display"`
	DownloadBuffering *bool           `yaml:"download_buffering"` // default true
	StatsIntervalS    int             `yaml:"stats_interval_s"`
	Reconnect         ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig is the retry policy for network errors.
type ReconnectConfig struct {
	MaxRetries      int `yaml:"max_retries"`
	RetryDelayMS    int `yaml:"retry_delay_ms"`
	MaxRetryDelayMS int `yaml:"max_retry_delay_ms"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a validated config with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: defaults invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// SinkConfig converts the sink section for the element.
func (c *Config) SinkConfig(logger *slog.Logger) sink.Config {
	pos, _ := parseAlphaPosition(c.Sink.AlphaPosition)
	return sink.Config{
		Logger:        logger,
		AlphaPosition: pos,
		TextureUpload: c.Sink.TextureUpload,
		MaxFrameBytes: c.Sink.MaxFrameBytes,
		PoolDepth:     c.Sink.PoolDepth,
		TraceFrames:   !*c.Sink.Silent,
	}
}

// StatsInterval returns how often playback stats are logged.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.Player.StatsIntervalS) * time.Second
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseAlphaPosition(s string) (convert.AlphaPosition, error) {
	switch s {
	case "", "native":
		return convert.AlphaNative, nil
	case "alpha-last", "bgra":
		return convert.AlphaLast, nil
	case "alpha-first", "argb":
		return convert.AlphaFirst, nil
	default:
		return convert.AlphaNative, fmt.Errorf("sink.alpha_position must be native, alpha-last or alpha-first, got %q", s)
	}
}
