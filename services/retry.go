package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig controls RetryingSynthesizer.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// AttemptTimeout bounds each remote call.
	AttemptTimeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		AttemptTimeout:    30 * time.Second,
	}
}

// RetryingSynthesizer retries rate-limited and transient failures with
// exponential backoff. Auth and unsupported-language errors return at once.
type RetryingSynthesizer struct {
	next  Synthesizer
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryingSynthesizer(next Synthesizer, cfg RetryConfig) *RetryingSynthesizer {
	// a rate-limited call always gets at least one more try
	if cfg.MaxAttempts < 2 {
		cfg.MaxAttempts = 2
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &RetryingSynthesizer{next: next, cfg: cfg, sleep: sleepContext}
}

func (r *RetryingSynthesizer) Name() string {
	return r.next.Name()
}

func (r *RetryingSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	var lastErr error
	backoff := r.cfg.InitialBackoff

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		audio, err := r.attempt(ctx, req)
		observeSynthesis(r.next.Name(), err, time.Since(start))
		if err == nil {
			return audio, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == r.cfg.MaxAttempts {
			break
		}

		log.Warn().Err(err).
			Str("provider", r.next.Name()).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("synthesis failed, retrying")

		if err := r.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSynthesisTransient, err)
		}
		backoff = time.Duration(float64(backoff) * r.cfg.BackoffMultiplier)
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
	return nil, lastErr
}

func (r *RetryingSynthesizer) attempt(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if r.cfg.AttemptTimeout <= 0 {
		return r.next.Synthesize(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()
	return r.next.Synthesize(attemptCtx, req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
