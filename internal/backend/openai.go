package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOllamaURL = "http://localhost:11434"

// OpenAI implements the Backend interface for OpenAI's chat completions API
// and for OpenAI-compatible local servers (Ollama, LM Studio).
type OpenAI struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAI creates a new OpenAI provider. An empty baseURL uses the public API.
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeoutOrDefault(timeout, 120*time.Second)}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, name: "openai"}
}

// NewOllama creates a provider for an Ollama or LM Studio server. No API key
// is required by default.
func NewOllama(apiKey, model, baseURL string, timeout time.Duration) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	// Normalize URL: strip trailing /, /v1, /v1/chat/completions
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	o := NewOpenAI(apiKey, model, baseURL+"/v1", timeoutOrDefault(timeout, 300*time.Second))
	o.name = "ollama"
	return o
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	chat := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
	}
	// Reasoning models take MaxCompletionTokens and reject MaxTokens.
	if isReasoningModel(o.model) {
		chat.MaxCompletionTokens = maxTokensOrDefault(req.MaxTokens)
	} else {
		chat.MaxTokens = maxTokensOrDefault(req.MaxTokens)
	}

	resp, err := o.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return Response{}, o.classify(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, &Error{Kind: KindService, Provider: o.name, Message: "no choices in response"}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return Response{}, &Error{Kind: KindService, Provider: o.name, Message: "empty text content in API response"}
	}
	model := resp.Model
	if model == "" {
		model = o.model
	}
	return Response{
		Content:    content,
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (o *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusError(o.name, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(o.name, reqErr.HTTPStatusCode, fmt.Sprintf("%v", reqErr.Err), err)
	}
	return transportError(o.name, err)
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func timeoutOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
