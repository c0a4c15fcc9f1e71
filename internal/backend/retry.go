package backend

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryConfig bounds how a single invocation is attempted.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per invocation, including the first.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// MaxBackoff caps the backoff between two attempts.
	MaxBackoff time.Duration

	// Timeout applies to each attempt. Zero disables it.
	Timeout time.Duration

	// RequestsPerMinute is shared by every caller of the decorated backend.
	// Zero means unlimited.
	RequestsPerMinute int
}

// DefaultRetryConfig returns retry defaults for backend invocations.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		MaxBackoff:        30 * time.Second,
		Timeout:           120 * time.Second,
		RequestsPerMinute: 60,
	}
}

// Resilient decorates a Backend with a rate limiter, a per-attempt timeout
// and bounded retries of transient errors.
type Resilient struct {
	next    Backend
	cfg     RetryConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// WithRetry wraps next. A nil logger disables logging.
func WithRetry(next Backend, cfg RetryConfig, logger *zap.Logger) *Resilient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.MaxBackoff < cfg.BackoffBase {
		cfg.MaxBackoff = cfg.BackoffBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Resilient{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (r *Resilient) Name() string { return r.next.Name() }

func (r *Resilient) Generate(ctx context.Context, req Request) (Response, error) {
	var resp Response
	attempt := 0

	op := func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		out, err := r.attempt(ctx, req)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = out
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.BackoffBase
	policy.MaxInterval = r.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.cfg.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, bounded, func(err error, wait time.Duration) {
		r.logger.Warn("backend call failed, retrying",
			zap.String("provider", r.next.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (r *Resilient) attempt(ctx context.Context, req Request) (Response, error) {
	if r.cfg.Timeout <= 0 {
		return r.next.Generate(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.next.Generate(callCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !IsTransient(err) {
		// The attempt's own deadline fired while the caller is still waiting.
		err = &Error{Kind: KindTimeout, Provider: r.next.Name(), Err: err}
	}
	return resp, err
}
