package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig contains configuration for exponential backoff reloads
type ReconnectConfig struct {
	MaxRetries    int           // Maximum number of reload attempts (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultReconnectConfig returns default reload configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// RetryState tracks reload attempts for the current URI.
//
// current is reset when playback reaches PLAYING, so a stream that recovers
// gets a fresh retry budget.
type RetryState struct {
	current atomic.Int32
	total   atomic.Uint32
}

// Reset clears the attempt counter for the current URI.
func (s *RetryState) Reset() { s.current.Store(0) }

// Current returns the attempts made since the last reset.
func (s *RetryState) Current() int { return int(s.current.Load()) }

// Total returns all reload attempts made by this player.
func (s *RetryState) Total() uint32 { return s.total.Load() }

// AttemptFunc runs one playback attempt. It returns nil on end of stream.
type AttemptFunc func(ctx context.Context) error

// ErrMaxRetries is returned when the reload budget is exhausted.
var ErrMaxRetries = errors.New("player: max retries exceeded")

// RunWithRetry runs attempt, reloading with exponential backoff while it fails
// with a retryable *PlaybackError.
//
// Non-retryable errors are returned as is. Cancellation of ctx returns
// ctx.Err().
func RunWithRetry(ctx context.Context, attempt AttemptFunc, cfg ReconnectConfig, state *RetryState, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attempt(ctx)
		if err == nil {
			state.Reset()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var perr *PlaybackError
		if !errors.As(err, &perr) || !perr.Retryable() {
			return err
		}

		n := int(state.current.Add(1))
		state.total.Add(1)
		if n > cfg.MaxRetries {
			return fmt.Errorf("%w (%d attempts): %w", ErrMaxRetries, cfg.MaxRetries, err)
		}

		delay := calculateBackoff(n, cfg)
		logger.Warn("player: reloading after error",
			"attempt", n,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"category", perr.Category.String(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.Info("player: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// calculateBackoff returns retryDelay * 2^(attempt-1), capped at maxRetryDelay.
func calculateBackoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
