package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/prompts"
)

const defaultConcurrency = 4

// FailurePolicy decides what happens when a unit fails after retries.
type FailurePolicy int

const (
	// FailAbort cancels outstanding units and returns the first failure.
	FailAbort FailurePolicy = iota
	// FailIsolate fills the failed slot with a placeholder and continues.
	// Authentication failures still abort.
	FailIsolate
)

// ParseFailurePolicy maps a configuration value to a policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", config.FailurePolicyAbort:
		return FailAbort, nil
	case config.FailurePolicyIsolate:
		return FailIsolate, nil
	default:
		return FailAbort, fmt.Errorf("%w: unknown failure policy %q", config.ErrConfiguration, s)
	}
}

// UnitEvent is reported after every unit completes.
type UnitEvent struct {
	Principle    Principle
	SnippetIndex int
	Kind         Kind
	Duration     time.Duration
	Err          error
	Done         int
	Total        int
}

// Analyzer evaluates snippets against principles through a backend.
type Analyzer struct {
	backend     backend.Backend
	concurrency int
	policy      FailurePolicy
	temperature float64
	maxTokens   int
	logger      *zap.Logger
	progress    func(UnitEvent)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConcurrency bounds the number of in-flight backend calls.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithFailurePolicy sets the failure policy. The default is FailAbort.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(a *Analyzer) { a.policy = p }
}

// WithTemperature sets the sampling temperature sent with each request.
func WithTemperature(t float64) Option {
	return func(a *Analyzer) { a.temperature = t }
}

// WithMaxTokens sets the generation limit sent with each request.
func WithMaxTokens(n int) Option {
	return func(a *Analyzer) { a.maxTokens = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithProgress registers a callback invoked after each unit. Calls are
// serialized.
func WithProgress(fn func(UnitEvent)) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// NewAnalyzer creates an Analyzer that sends every prompt to b.
func NewAnalyzer(b backend.Backend, opts ...Option) *Analyzer {
	a := &Analyzer{
		backend:     b,
		concurrency: defaultConcurrency,
		temperature: 0.7,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// unit is one backend invocation. Its output lands in slot.
type unit struct {
	index     int
	principle Principle
	snippet   int
	kind      Kind
	prompt    string
	slot      *string
}

// Analyze produces an analysis and a recommendation for every pair of
// principle and snippet. All prompts are rendered before the first backend
// call, so template problems cost no invocations.
func (a *Analyzer) Analyze(ctx context.Context, snippets []Snippet, principles []Principle, catalog *prompts.Catalog) (*Result, error) {
	if len(principles) == 0 {
		return nil, ErrNoPrinciples
	}
	if len(snippets) == 0 {
		return nil, ErrNoSnippets
	}
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	seen := make(map[Principle]int, len(principles))
	for i, p := range principles {
		if strings.TrimSpace(string(p)) == "" {
			return nil, fmt.Errorf("%w: principle %d has an empty label", ErrInvalidPrinciple, i)
		}
		if j, ok := seen[p]; ok {
			return nil, fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicatePrinciple, p, j, i)
		}
		seen[p] = i
	}

	result := &Result{Principles: make([]PrincipleResult, len(principles))}
	units := make([]unit, 0, len(principles)*len(snippets)*2)
	suffix := catalog.Suffix()

	for pi, p := range principles {
		pr := PrincipleResult{
			Principle:       p,
			Analyses:        make([]string, len(snippets)),
			Recommendations: make([]string, len(snippets)),
		}
		result.Principles[pi] = pr
		for si, s := range snippets {
			subs := map[string]string{"principle": string(p), "code_snippet": s.Code}
			for _, k := range []Kind{KindAnalysis, KindRecommendation} {
				key, slot := prompts.KeyAnalyzeCode, &pr.Analyses[si]
				if k == KindRecommendation {
					key, slot = prompts.KeyRecommendations, &pr.Recommendations[si]
				}
				body, err := catalog.Render(key, subs)
				if err != nil {
					return nil, fmt.Errorf("rendering %s prompt for %s: %w", k, p, err)
				}
				units = append(units, unit{
					index:     len(units),
					principle: p,
					snippet:   si,
					kind:      k,
					prompt:    body + "\n\n" + suffix,
					slot:      slot,
				})
			}
		}
	}

	var (
		mu       sync.Mutex
		done     int
		failures []indexedFailure
	)
	report := func(u unit, elapsed time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if a.progress != nil {
			a.progress(UnitEvent{
				Principle:    u.principle,
				SnippetIndex: u.snippet,
				Kind:         u.kind,
				Duration:     elapsed,
				Err:          err,
				Done:         done,
				Total:        len(units),
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, u := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			resp, err := a.backend.Generate(gctx, backend.Request{
				Prompt:      u.prompt,
				MaxTokens:   a.maxTokens,
				Temperature: a.temperature,
			})
			elapsed := time.Since(start)
			report(u, elapsed, err)

			if err == nil {
				*u.slot = resp.Content
				a.logger.Debug("unit complete",
					zap.String("principle", string(u.principle)),
					zap.Int("snippet", u.snippet),
					zap.Stringer("kind", u.kind),
					zap.Duration("elapsed", elapsed))
				return nil
			}

			if a.isolate(gctx, err) {
				*u.slot = fmt.Sprintf("[%s unavailable: %v]", u.kind, err)
				mu.Lock()
				failures = append(failures, indexedFailure{index: u.index, failure: UnitFailure{
					Principle:    u.principle,
					SnippetIndex: u.snippet,
					Kind:         u.kind.String(),
					Error:        err.Error(),
				}})
				mu.Unlock()
				a.logger.Warn("unit failed, continuing",
					zap.String("principle", string(u.principle)),
					zap.Int("snippet", u.snippet),
					zap.Stringer("kind", u.kind),
					zap.Error(err))
				return nil
			}
			return &UnitError{Principle: u.principle, SnippetIndex: u.snippet, Kind: u.kind, Err: err}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	for _, f := range failures {
		result.Failures = append(result.Failures, f.failure)
	}
	return result, nil
}

type indexedFailure struct {
	index   int
	failure UnitFailure
}

func (a *Analyzer) isolate(ctx context.Context, err error) bool {
	if a.policy != FailIsolate || ctx.Err() != nil {
		return false
	}
	if backend.IsAuthError(err) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
