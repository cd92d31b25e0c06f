package llm

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds how often a chat request is retried.
type RetryConfig struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// DefaultRetryConfig keeps chat retries short: preference extraction runs on
// the request path and has a keyword fallback.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
	}
}

// Retrying wraps a client so transient failures are retried with backoff.
// Fatal and unclassified errors are returned immediately.
func Retrying(client Client, cfg RetryConfig, logger *zap.Logger) Client {
	if client == nil {
		return nil
	}
	if cfg.MaxAttempts <= 1 {
		return client
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryingClient{base: client, cfg: cfg, logger: logger}
}

type retryingClient struct {
	base   Client
	cfg    RetryConfig
	logger *zap.Logger
}

func (r *retryingClient) ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		out, err := r.base.ChatCompletion(ctx, messages, temperature)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return "", err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		backoff := r.backoff(attempt)
		r.logger.Debug("chat request failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("model", ModelFromContext(ctx)),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", lastErr
}

func (r *retryingClient) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= r.cfg.BackoffMultiplier
	}
	backoff := time.Duration(float64(r.cfg.BackoffBase) * multiplier)
	if r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
		backoff = r.cfg.MaxBackoff
	}
	// +/- 25% jitter
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}
