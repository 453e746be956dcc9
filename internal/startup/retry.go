// Package startup holds the connectivity checks run before the link loop
// starts.
package startup

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/arr"
)

// RetryConfig configures exponential backoff for startup checks.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
}

// DefaultRetryConfig returns defaults for waiting on services that start
// alongside this one, e.g. in the same compose stack.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 5 * time.Second,
		MaxDelay:     5 * time.Minute,
		MaxAttempts:  5,
		Multiplier:   2.0,
	}
}

// Messages seen from dial and transport errors that arrive already
// flattened to strings.
var unreachableHints = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"no route to host",
	"network is unreachable",
	"temporary failure in name resolution",
	"i/o timeout",
	"timeout",
}

// IsNetworkError reports whether err means the service could not be reached.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range unreachableHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether a startup check should be retried: network
// failures, and 5xx or 429 responses from a service that is still booting.
func IsRetryable(err error) bool {
	if IsNetworkError(err) {
		return true
	}
	var se *arr.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	return false
}

type backoff struct {
	cfg   RetryConfig
	delay time.Duration
}

func newBackoff(cfg RetryConfig) *backoff {
	return &backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// next returns the delay to wait now and grows the following one.
func (b *backoff) next() time.Duration {
	d := b.delay
	grown := time.Duration(float64(b.delay) * b.cfg.Multiplier)
	if b.cfg.MaxDelay > 0 && grown > b.cfg.MaxDelay {
		grown = b.cfg.MaxDelay
	}
	b.delay = grown
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRetry calls fn until it succeeds, fails with a non-retryable error,
// runs out of attempts or ctx is done.
func WithRetry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error, logger *zerolog.Logger) error {
	attempts := max(cfg.MaxAttempts, 1)
	log := logger.With().Str("operation", name).Logger()
	b := newBackoff(cfg)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return nil
		}

		if !IsRetryable(err) {
			log.Error().Err(err).Msg("non-retryable error, not retrying")
			return err
		}
		if attempt >= attempts {
			break
		}

		wait := b.next()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", attempts).
			Dur("nextRetryIn", wait).
			Msg("service unavailable, will retry")
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
	}

	log.Error().Err(err).Int("attempts", attempts).Msg("operation failed after all retries")
	return err
}
