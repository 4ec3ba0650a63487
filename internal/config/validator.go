package config

import (
	"fmt"
	"net/url"
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	// Validate URIs
	for i, uri := range cfg.URIs {
		u, err := url.Parse(uri)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("uris[%d]: %q is not an absolute URI", i, uri)
		}
	}

	// Validate sink config
	if _, err := parseAlphaPosition(cfg.Sink.AlphaPosition); err != nil {
		return err
	}
	if cfg.Sink.MaxFrameBytes < 0 {
		return fmt.Errorf("sink.max_frame_bytes must be >= 0")
	}
	if cfg.Sink.PoolDepth < 0 {
		return fmt.Errorf("sink.pool_depth must be >= 0")
	}
	if cfg.Sink.PoolDepth == 0 {
		cfg.Sink.PoolDepth = 4 // default
	}
	if cfg.Sink.Silent == nil {
		silent := true
		cfg.Sink.Silent = &silent
	}

	// Validate player config
	if cfg.Player.DownloadBuffering == nil {
		on := true
		cfg.Player.DownloadBuffering = &on
	}
	if cfg.Player.StatsIntervalS < 0 {
		return fmt.Errorf("player.stats_interval_s must be >= 0")
	}
	if cfg.Player.StatsIntervalS == 0 {
		cfg.Player.StatsIntervalS = 5 // default
	}

	// Reconnect defaults follow the stream reconnect policy
	r := &cfg.Player.Reconnect
	if r.MaxRetries < 0 || r.RetryDelayMS < 0 || r.MaxRetryDelayMS < 0 {
		return fmt.Errorf("player.reconnect values must be >= 0")
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if r.RetryDelayMS == 0 {
		r.RetryDelayMS = 1000
	}
	if r.MaxRetryDelayMS == 0 {
		r.MaxRetryDelayMS = 30000
	}
	if r.MaxRetryDelayMS < r.RetryDelayMS {
		return fmt.Errorf("player.reconnect.max_retry_delay_ms must be >= retry_delay_ms")
	}

	// Validate log config
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	return nil
}
