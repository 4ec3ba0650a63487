package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	videosink "github.com/cbetz421/gst-wk"
	"github.com/cbetz421/gst-wk/gstsink"
	"github.com/cbetz421/gst-wk/internal/config"
	"github.com/cbetz421/gst-wk/internal/player"
)

// Version information
const version = "v0.1.0"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	fpsDisplay := flag.Bool("fps-display", false, "Wrap the sink in fpsdisplaysink")
	textureUpload := flag.Bool("texture-upload", false, "Accept GL texture upload (NV12) caps")
	alpha := flag.String("alpha", "", "Alpha position: native, alpha-last, alpha-first")
	statsInterval := flag.Int("stats-interval", 0, "Seconds between stats reports")
	debug := flag.Bool("debug", false, "Enable debug logging and per-buffer traces")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wkplay %s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Explicit flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps-display":
			cfg.Player.FPSDisplay = *fpsDisplay
		case "texture-upload":
			cfg.Sink.TextureUpload = *textureUpload
		case "alpha":
			cfg.Sink.AlphaPosition = *alpha
		case "stats-interval":
			cfg.Player.StatsIntervalS = *statsInterval
		case "debug":
			if *debug {
				cfg.Log.Level = "debug"
				silent := false
				cfg.Sink.Silent = &silent
			}
		}
	})
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	uris := cfg.URIs
	if flag.NArg() > 0 {
		uris = flag.Args()
	}
	if len(uris) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one URI is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  wkplay file:///tmp/clip.webm\n")
		fmt.Fprintf(os.Stderr, "  wkplay -config wkplay.yaml -fps-display https://example.com/a.mp4\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Set up logging
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Initialize GStreamer and register the sink
	gst.Init(nil)
	if err := gstsink.Register(cfg.SinkConfig(logger)); err != nil {
		log.Fatalf("Failed to register %s: %v", gstsink.ElementName, err)
	}

	p, err := player.New(player.Config{
		FPSDisplay:        cfg.Player.FPSDisplay,
		DownloadBuffering: *cfg.Player.DownloadBuffering,
		Reconnect: player.ReconnectConfig{
			MaxRetries:    cfg.Player.Reconnect.MaxRetries,
			RetryDelay:    time.Duration(cfg.Player.Reconnect.RetryDelayMS) * time.Millisecond,
			MaxRetryDelay: time.Duration(cfg.Player.Reconnect.MaxRetryDelayMS) * time.Millisecond,
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	// The consumer loop runs on the main goroutine
	loop := videosink.NewLoop()
	dots := cfg.Log.Level != "debug"
	if err := p.Sink().Attach(loop, func(f *videosink.Frame) {
		if dots {
			fmt.Fprint(os.Stderr, ".")
			return
		}
		logger.Debug("wkplay: frame painted", "size", f.Size(), "pts", f.PTS.String())
	}); err != nil {
		log.Fatalf("Failed to attach consumer: %v", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("wkplay: received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	go reportStats(ctx, p.Sink(), cfg.StatsInterval())

	// Play every URI in order, then stop the consumer loop
	exitCode := 0
	go func() {
		defer loop.Quit()
		defer func() {
			if err := p.Close(); err != nil {
				slog.Error("wkplay: close failed", "error", err)
			}
		}()

		for _, uri := range uris {
			err := p.PlayURI(ctx, uri)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				return
			default:
				slog.Error("wkplay: playback failed", "uri", uri, "error", err)
				exitCode = 1
			}
		}
	}()

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("wkplay: consumer loop failed", "error", err)
	}
	// Run returns on cancellation before the player goroutine has closed;
	// Close unlocks the sink, so waiting for it cannot deadlock.
	for !loop.Closed() {
		time.Sleep(10 * time.Millisecond)
	}

	stats := p.Sink().Stats()
	if dots {
		fmt.Fprintln(os.Stderr)
	}
	slog.Info("wkplay: done",
		"rendered", stats.Rendered,
		"delivered", stats.Delivered,
		"converted", stats.Converted,
		"canceled", stats.Canceled,
		"reloads", p.Retries(),
	)
	os.Exit(exitCode)
}

// reportStats logs sink statistics every interval until ctx is done.
func reportStats(ctx context.Context, s videosink.Sink, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			slog.Info("wkplay: stats",
				"state", st.State.String(),
				"format", st.Format,
				"delivered", st.Delivered,
				"pending", st.Pending,
				"in_flight", st.InFlight,
				"fps", fmt.Sprintf("%.1f", st.FPS.Mean),
				"jitter_ms", fmt.Sprintf("%.1f", st.FPS.JitterMean*1000),
				"stable", st.FPS.Stable,
				"idle", st.IsIdle,
			)
		}
	}
}
