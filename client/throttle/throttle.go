package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
)

// Config carries the token bucket parameters for a rate-limited transport.
type Config struct {
	RPS   int
	Burst int
}

// roundTripper delays outbound requests through a token bucket before
// handing them to the next transport.
type roundTripper struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger
}

// New returns an http.RoundTripper that throttles outbound requests.
// logFn lazily resolves the logger at request time so that client
// option ordering does not matter; a nil logFn or a nil-returning one
// disables the wait logging.
func New(cfg Config, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if cfg.RPS <= 0 || cfg.Burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", cfg.RPS, cfg.Burst, ErrMustNotBeZero)
	}

	return &roundTripper{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
		next:    next,
		logFn:   logFn,
	}, nil
}

func (t *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The fast path takes a token without blocking; only an exhausted
	// bucket pays for the logger lookup and the wait.
	if t.limiter.Allow() {
		return t.next.RoundTrip(r)
	}

	var logger *slog.Logger
	if t.logFn != nil {
		logger = t.logFn()
	}
	if logger != nil {
		logger.Info("throttle tokens exhausted", "rate", t.cfg.RPS, "burst", t.cfg.Burst, "path", r.URL.Path)
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}
	if logger != nil {
		logger.Info("throttle wait complete", "waited", time.Since(start).String(), "rate", t.cfg.RPS, "burst", t.cfg.Burst)
	}

	return t.next.RoundTrip(r)
}
