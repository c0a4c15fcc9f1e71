package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/history"
	"github.com/griffinclark/Dan-at-Dawn/internal/output"
	"github.com/griffinclark/Dan-at-Dawn/internal/prompts"
)

// Input describes one report run. Catalog, sample and reviewer context may
// be given inline or as paths; inline values win.
type Input struct {
	Snippets   []analysis.Snippet
	Principles []analysis.Principle

	Catalog     *prompts.Catalog
	PromptsPath string

	Sample     string
	SamplePath string

	ReviewerContext     string
	ReviewerContextPath string

	// Feedback is appended to the report as given. It takes precedence
	// over SimulateFeedback.
	Feedback         string
	SimulateFeedback bool

	// Draft lays out the results locally instead of asking the backend to
	// format them.
	Draft bool
	Title string

	// Sink receives the finished report. Nil skips persistence.
	Sink output.Sink
}

// Settings are the generation settings shared by every call of a run.
type Settings struct {
	Temperature   float64
	MaxTokens     int
	Concurrency   int
	FailurePolicy analysis.FailurePolicy
	Model         string
}

// Pipeline runs analysis, composition and persistence end to end.
type Pipeline struct {
	backend  backend.Backend
	settings Settings
	history  *history.Store
	logger   *zap.Logger
	progress func(analysis.UnitEvent)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHistory records every run in store.
func WithHistory(store *history.Store) Option {
	return func(p *Pipeline) { p.history = store }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress forwards analysis progress events to fn.
func WithProgress(fn func(analysis.UnitEvent)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// NewPipeline creates a Pipeline that sends every call to b.
func NewPipeline(b backend.Backend, settings Settings, opts ...Option) *Pipeline {
	p := &Pipeline{backend: b, settings: settings, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one report run. Every input is loaded and validated before
// the first backend call. The report reaches the sink only if every step
// succeeded.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Report, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	counted := &countingBackend{next: p.backend}
	log := p.logger.With(zap.String("run_id", runID))

	principles := in.Principles
	if len(principles) == 0 {
		principles = analysis.DefaultPrinciples()
	}

	run := history.Run{
		ID:         runID,
		StartedAt:  started,
		Provider:   p.backend.Name(),
		Model:      p.settings.Model,
		Principles: principleLabels(principles),
		Snippets:   len(in.Snippets),
	}
	if in.Sink != nil {
		run.Destination = in.Sink.String()
	}

	rep, err := p.run(ctx, in, principles, counted, log)
	run.FinishedAt = time.Now().UTC()
	run.Invocations = int(counted.calls.Load())
	if err != nil {
		run.Status, run.Error = history.StatusFailed, err.Error()
		p.record(run, log)
		return nil, err
	}
	run.Status = history.StatusOK
	run.Failures = len(rep.Results.Failures)
	p.record(run, log)

	rep.RunID = runID
	log.Info("report complete",
		zap.Int("invocations", run.Invocations),
		zap.Int("failures", run.Failures),
		zap.Duration("elapsed", run.Duration()))
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, in Input, principles []analysis.Principle, b *countingBackend, log *zap.Logger) (*Report, error) {
	catalog, err := loadCatalog(in)
	if err != nil {
		return nil, err
	}

	simulate := in.SimulateFeedback && strings.TrimSpace(in.Feedback) == ""
	if simulate && !catalog.Has(prompts.KeySimulateFeedback) {
		return nil, fmt.Errorf("%w: feedback simulation needs template %s", prompts.ErrMalformed, prompts.KeySimulateFeedback)
	}

	var sample string
	if !in.Draft {
		if sample, err = readInline(in.Sample, in.SamplePath, "sample report"); err != nil {
			return nil, err
		}
	}
	var reviewerContext string
	if simulate {
		if reviewerContext, err = readInline(in.ReviewerContext, in.ReviewerContextPath, "reviewer context"); err != nil {
			return nil, err
		}
	}

	analyzer := analysis.NewAnalyzer(b,
		analysis.WithConcurrency(p.settings.Concurrency),
		analysis.WithFailurePolicy(p.settings.FailurePolicy),
		analysis.WithTemperature(p.settings.Temperature),
		analysis.WithMaxTokens(p.settings.MaxTokens),
		analysis.WithLogger(log),
		analysis.WithProgress(p.progress),
	)
	result, err := analyzer.Analyze(ctx, in.Snippets, principles, catalog)
	if err != nil {
		return nil, fmt.Errorf("analyzing code: %w", err)
	}

	composer := NewComposer(b, p.settings.Temperature, p.settings.MaxTokens, log)
	var rep *Report
	if in.Draft {
		rep = &Report{Body: Draft(result, in.Title), GeneratedAt: time.Now().UTC(), Results: result}
	} else if rep, err = composer.Compose(ctx, result, catalog, sample, ""); err != nil {
		return nil, err
	}
	rep.Title = in.Title
	if rep.Title == "" {
		rep.Title = DefaultTitle
	}
	rep.Provider = b.Name()
	if rep.Model == "" {
		rep.Model = p.settings.Model
	}

	// Composing again with feedback would render the same prompt, so the
	// feedback is attached to the first composition.
	feedback := in.Feedback
	if simulate {
		if feedback, err = composer.SimulateFeedback(ctx, rep, catalog, reviewerContext); err != nil {
			return nil, err
		}
	}
	rep.Feedback = feedback
	rep.Invocations = int(b.calls.Load())

	if in.Sink != nil {
		doc, err := rep.Output()
		if err != nil {
			return nil, err
		}
		if err := in.Sink.Put(ctx, doc); err != nil {
			return nil, fmt.Errorf("saving report to %s: %w", in.Sink, err)
		}
		log.Info("report saved", zap.Stringer("destination", in.Sink))
	}
	return rep, nil
}

func (p *Pipeline) record(run history.Run, log *zap.Logger) {
	if p.history == nil {
		return
	}
	// A run that was canceled is still worth recording.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.history.Record(ctx, run); err != nil {
		log.Warn("recording run history", zap.Error(err))
	}
}

func loadCatalog(in Input) (*prompts.Catalog, error) {
	if in.Catalog != nil {
		return in.Catalog, nil
	}
	if in.PromptsPath == "" {
		return nil, fmt.Errorf("%w: no prompt catalog given", config.ErrConfiguration)
	}
	return prompts.Load(in.PromptsPath)
}

func readInline(inline, path, what string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if path == "" {
		return "", fmt.Errorf("%w: no %s given", config.ErrConfiguration, what)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s not found at %s", config.ErrConfiguration, what, path)
		}
		return "", fmt.Errorf("%w: reading %s: %v", config.ErrConfiguration, what, err)
	}
	return string(data), nil
}

func principleLabels(ps []analysis.Principle) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

type countingBackend struct {
	next  backend.Backend
	calls atomic.Int64
}

func (c *countingBackend) Name() string { return c.next.Name() }

func (c *countingBackend) Generate(ctx context.Context, req backend.Request) (backend.Response, error) {
	c.calls.Add(1)
	return c.next.Generate(ctx, req)
}
