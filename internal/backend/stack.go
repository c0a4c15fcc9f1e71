package backend

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/griffinclark/Dan-at-Dawn/internal/cache"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

// StackOptions carries the optional collaborators of [Build].
type StackOptions struct {
	Cache   *cache.Cache
	Metrics *Metrics
	Logger  *zap.Logger
}

// Build constructs the configured provider and wraps it so that cache hits
// skip the rate limiter and every real attempt is measured:
//
//	cache -> retry/rate limit/timeout -> metrics -> provider
func Build(ctx context.Context, cfg config.Backend, opts StackOptions) (Backend, error) {
	provider, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.TimeoutSeconds > 0 {
		rc.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	rc.RequestsPerMinute = cfg.RequestsPerMinute

	var b Backend = WithMetrics(provider, opts.Metrics)
	b = WithRetry(b, rc, opts.Logger)
	return WithCache(b, opts.Cache, cfg.ResolvedModel()), nil
}
