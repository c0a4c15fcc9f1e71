//go:build integration

package backend

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

// providerSpec defines a provider to test against the live API.
type providerSpec struct {
	name   string
	model  string
	envVar string // empty for ollama
}

var providerSpecs = []providerSpec{
	{"anthropic", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	{"openai", "gpt-4o-mini", "OPENAI_API_KEY"},
	{"gemini", "gemini-2.0-flash", "GEMINI_API_KEY"},
	{"ollama", "llama3", ""},
}

func skipIfOllamaUnavailable(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:11434/api/tags", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Skipf("skipping: ollama not reachable: %v", err)
	}
	resp.Body.Close()
}

const integrationPrompt = `Evaluate the following code for the principle of Security.

func RunUserCommand(userInput string) (string, error) {
	out, err := exec.Command("bash", "-c", userInput).CombinedOutput()
	return string(out), err
}

Answer in one short paragraph.`

func TestIntegration_Provider_Generate(t *testing.T) {
	for _, spec := range providerSpecs {
		t.Run(spec.name, func(t *testing.T) {
			if spec.envVar != "" && os.Getenv(spec.envVar) == "" {
				t.Skipf("skipping: %s not set", spec.envVar)
			}
			if spec.name == "ollama" {
				skipIfOllamaUnavailable(t)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			b, err := Build(ctx, config.Backend{
				Provider:    spec.name,
				Model:       spec.model,
				APIKey:      os.Getenv(spec.envVar),
				MaxAttempts: 3,
			}, StackOptions{})
			if err != nil {
				t.Fatalf("Build error: %v", err)
			}

			resp, err := b.Generate(ctx, Request{Prompt: integrationPrompt, MaxTokens: 512, Temperature: 0.2})
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if strings.TrimSpace(resp.Content) == "" {
				t.Error("empty content")
			}
			t.Logf("%s (%d tokens): %s", spec.name, resp.TokensUsed, resp.Content)
		})
	}
}
