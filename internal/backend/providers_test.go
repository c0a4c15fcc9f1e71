package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

func openAIHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":`+quote(content)+`},"finish_reason":"stop"}],`+
			`"usage":{"prompt_tokens":40,"completion_tokens":10,"total_tokens":50}}`)
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpenAI_Generate(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) == 1 {
			gotPrompt = body.Messages[0].Content
		}
		openAIHandler(t, "Reliable enough.")(w, r)
	}))
	defer server.Close()

	o := NewOpenAI("test-key", "gpt-4o", server.URL+"/v1", 0)
	resp, err := o.Generate(context.Background(), Request{Prompt: "Analyze this", MaxTokens: 10, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Content != "Reliable enough." {
		t.Errorf("Content = %q, want %q", resp.Content, "Reliable enough.")
	}
	if resp.TokensUsed != 50 {
		t.Errorf("TokensUsed = %d, want 50", resp.TokensUsed)
	}
	if gotPrompt != "Analyze this" {
		t.Errorf("prompt sent = %q, want %q", gotPrompt, "Analyze this")
	}
	if o.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", o.Name())
	}
}

func TestOpenAI_RateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	}))
	defer server.Close()

	o := NewOpenAI("test-key", "gpt-4o", server.URL+"/v1", 0)
	_, err := o.Generate(context.Background(), Request{Prompt: "p"})
	if err == nil {
		t.Fatal("Expected rate limit error")
	}
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindRateLimit {
		t.Fatalf("error = %v, want rate limit kind", err)
	}
	if !IsTransient(err) {
		t.Error("rate limit should be transient")
	}
}

func TestOpenAI_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	o := NewOpenAI("bad-key", "gpt-4o", server.URL+"/v1", 0)
	_, err := o.Generate(context.Background(), Request{Prompt: "p"})
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
	if IsTransient(err) {
		t.Error("auth error must not be transient")
	}
}

func TestOllama_NormalizesBaseURL(t *testing.T) {
	server := httptest.NewServer(openAIHandler(t, "local answer"))
	defer server.Close()

	for _, base := range []string{server.URL, server.URL + "/", server.URL + "/v1", server.URL + "/v1/chat/completions"} {
		o := NewOllama("", "llama3", base, 0)
		if o.Name() != "ollama" {
			t.Errorf("Name() = %q, want ollama", o.Name())
		}
		resp, err := o.Generate(context.Background(), Request{Prompt: "p"})
		if err != nil {
			t.Fatalf("Generate(%s) error: %v", base, err)
		}
		if resp.Content != "local answer" {
			t.Errorf("Content = %q, want %q", resp.Content, "local answer")
		}
	}
}

func TestAnthropic_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Missing API key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("Missing anthropic-version header")
		}
		var body anthropicRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Temperature == nil || *body.Temperature != 1.0 {
			t.Errorf("temperature = %v, want capped at 1.0", body.Temperature)
		}

		resp := anthropicResponse{
			Content: []anthropicBlock{{Type: "text", Text: "Secure"}, {Type: "text", Text: " enough."}},
			Usage:   anthropicUsage{InputTokens: 100, OutputTokens: 10},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := NewAnthropic("test-key", "claude-sonnet-4-20250514", server.URL, 0)
	resp, err := a.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 10, Temperature: 1.5})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Content != "Secure enough." {
		t.Errorf("Content = %q, want %q", resp.Content, "Secure enough.")
	}
	if resp.TokensUsed != 110 {
		t.Errorf("TokensUsed = %d, want 110", resp.TokensUsed)
	}
}

func TestAnthropic_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		wantKind  Kind
		transient bool
	}{
		{http.StatusUnauthorized, KindAuthentication, false},
		{http.StatusTooManyRequests, KindRateLimit, true},
		{http.StatusBadGateway, KindService, true},
		{http.StatusBadRequest, KindRequest, false},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":"nope"}`))
		}))

		a := NewAnthropic("key", "claude", server.URL, 0)
		_, err := a.Generate(context.Background(), Request{Prompt: "p"})
		server.Close()

		var be *Error
		if !errors.As(err, &be) {
			t.Fatalf("status %d: error = %v, want *Error", tt.status, err)
		}
		if be.Kind != tt.wantKind {
			t.Errorf("status %d: kind = %s, want %s", tt.status, be.Kind, tt.wantKind)
		}
		if be.StatusCode != tt.status {
			t.Errorf("StatusCode = %d, want %d", be.StatusCode, tt.status)
		}
		if IsTransient(err) != tt.transient {
			t.Errorf("status %d: transient = %v, want %v", tt.status, IsTransient(err), tt.transient)
		}
	}
}

func TestGemini_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("Missing API key in x-goog-api-key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Minimal."}]}}],`+
			`"usageMetadata":{"totalTokenCount":75}}`)
	}))
	defer server.Close()

	g, err := NewGemini(context.Background(), "test-key", "gemini-2.0-flash", server.URL+"/")
	if err != nil {
		t.Fatalf("NewGemini error: %v", err)
	}
	resp, err := g.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 10})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Content != "Minimal." {
		t.Errorf("Content = %q, want %q", resp.Content, "Minimal.")
	}
	if resp.TokensUsed != 75 {
		t.Errorf("TokensUsed = %d, want 75", resp.TokensUsed)
	}
}

func TestNew_ProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Backend
		wantName string
		wantErr  bool
	}{
		{"openai", config.Backend{Provider: "openai", APIKey: "k"}, "openai", false},
		{"openai missing key", config.Backend{Provider: "openai"}, "", true},
		{"ollama needs no key", config.Backend{Provider: "ollama", Model: "llama3"}, "ollama", false},
		{"lmstudio", config.Backend{Provider: "lmstudio", BaseURL: "http://localhost:1234"}, "ollama", false},
		{"anthropic", config.Backend{Provider: "anthropic", APIKey: "k"}, "anthropic", false},
		{"anthropic missing key", config.Backend{Provider: "anthropic"}, "", true},
		{"gemini missing key", config.Backend{Provider: "gemini"}, "", true},
		{"unknown", config.Backend{Provider: "mystery"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(context.Background(), tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, config.ErrConfiguration) {
					t.Errorf("error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			if b.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.wantName)
			}
		})
	}
}
