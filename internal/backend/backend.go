package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

const defaultMaxTokens = 4096

// Request contains a rendered prompt and generation options.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response contains the generated text from a backend.
type Response struct {
	Content    string
	Model      string
	TokensUsed int
}

// Backend is the text-generation service abstraction.
type Backend interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Func adapts a plain function to the Backend interface.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Generate(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

func (f Func) Name() string { return "func" }

// New creates a provider from backend configuration. The credential must
// already be resolved into cfg.APIKey.
func New(ctx context.Context, cfg config.Backend) (Backend, error) {
	model := cfg.ResolvedModel()
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY environment variable is not set", config.ErrConfiguration)
		}
		return NewOpenAI(cfg.APIKey, model, cfg.BaseURL, timeout), nil
	case "ollama", "lmstudio":
		return NewOllama(cfg.APIKey, model, cfg.BaseURL, timeout), nil
	case "gemini", "google":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY (or GOOGLE_API_KEY) environment variable is not set", config.ErrConfiguration)
		}
		return NewGemini(ctx, cfg.APIKey, model, cfg.BaseURL)
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY environment variable is not set", config.ErrConfiguration)
		}
		return NewAnthropic(cfg.APIKey, model, cfg.BaseURL, timeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider: %s", config.ErrConfiguration, cfg.Provider)
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
