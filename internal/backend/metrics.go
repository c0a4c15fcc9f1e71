package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for backend invocations.
type Metrics struct {
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dawn",
			Subsystem: "backend",
			Name:      "invocations_total",
			Help:      "Backend invocation attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dawn",
			Subsystem: "backend",
			Name:      "invocation_seconds",
			Help:      "Backend invocation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dawn",
			Subsystem: "backend",
			Name:      "tokens_total",
			Help:      "Tokens reported by the backend.",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.invocations, m.latency, m.tokens)
	return m
}

type instrumented struct {
	next    Backend
	metrics *Metrics
}

// WithMetrics records every call made through next.
func WithMetrics(next Backend, m *Metrics) Backend {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := i.next.Generate(ctx, req)
	provider := i.next.Name()

	i.metrics.latency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	i.metrics.invocations.WithLabelValues(provider, outcome(err)).Inc()
	if err == nil && resp.TokensUsed > 0 {
		i.metrics.tokens.WithLabelValues(provider).Add(float64(resp.TokensUsed))
	}
	return resp, err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var be *Error
	if errors.As(err, &be) {
		return strings.ReplaceAll(be.Kind.String(), " ", "_")
	}
	return "error"
}
