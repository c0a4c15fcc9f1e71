package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/prompts"
)

var (
	// ErrNoResults is returned when composing without analysis results.
	ErrNoResults = errors.New("no analysis results to compose")
	// ErrNoReport is returned when asking for feedback on no report.
	ErrNoReport = errors.New("no report to review")
)

// Composer turns analysis results into a report through a backend.
type Composer struct {
	backend     backend.Backend
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewComposer creates a Composer. A nil logger disables logging.
func NewComposer(b backend.Backend, temperature float64, maxTokens int, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{backend: b, temperature: temperature, maxTokens: maxTokens, logger: logger}
}

// Compose renders the format_report template with the sample report and
// the indented result JSON and makes exactly one backend call. Non-blank
// feedback is appended after the generated body.
func (c *Composer) Compose(ctx context.Context, result *analysis.Result, catalog *prompts.Catalog, sampleFormat, feedback string) (*Report, error) {
	if result == nil {
		return nil, ErrNoResults
	}
	if catalog == nil {
		return nil, analysis.ErrNoCatalog
	}
	resultsJSON, err := result.MarshalIndent()
	if err != nil {
		return nil, err
	}
	prompt, err := catalog.Render(prompts.KeyFormatReport, map[string]string{
		"sample_report":    sampleFormat,
		"analysis_results": resultsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering report prompt: %w", err)
	}

	start := time.Now()
	resp, err := c.backend.Generate(ctx, backend.Request{
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("composing report: %w", err)
	}
	c.logger.Debug("report composed", zap.Duration("elapsed", time.Since(start)), zap.Int("tokens", resp.TokensUsed))

	return &Report{
		Body:        resp.Content,
		Feedback:    feedback,
		Model:       resp.Model,
		GeneratedAt: time.Now().UTC(),
		Results:     result,
	}, nil
}

// SimulateFeedback asks the backend to review rep in the voice described
// by reviewerContext. It makes exactly one backend call.
func (c *Composer) SimulateFeedback(ctx context.Context, rep *Report, catalog *prompts.Catalog, reviewerContext string) (string, error) {
	if rep == nil {
		return "", ErrNoReport
	}
	if catalog == nil {
		return "", analysis.ErrNoCatalog
	}
	prompt, err := catalog.Render(prompts.KeySimulateFeedback, map[string]string{
		"context":           reviewerContext,
		"compliance_report": rep.Document(),
	})
	if err != nil {
		return "", fmt.Errorf("rendering feedback prompt: %w", err)
	}
	resp, err := c.backend.Generate(ctx, backend.Request{
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("simulating feedback: %w", err)
	}
	return resp.Content, nil
}
