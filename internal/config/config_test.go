package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend.Provider != "openai" {
		t.Errorf("Default provider = %q, want %q", cfg.Backend.Provider, "openai")
	}
	if cfg.Backend.Temperature != 0.7 {
		t.Errorf("Default temperature = %v, want 0.7", cfg.Backend.Temperature)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Default concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.FailurePolicy != FailurePolicyAbort {
		t.Errorf("Default failurePolicy = %q, want %q", cfg.FailurePolicy, FailurePolicyAbort)
	}
	if cfg.Backend.MaxAttempts != 3 {
		t.Errorf("Default maxAttempts = %d, want 3", cfg.Backend.MaxAttempts)
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
	if cfg.Cache.Enabled {
		t.Error("Default cache should be disabled")
	}
}

func TestResolvedModel(t *testing.T) {
	b := Default().Backend
	tests := []struct {
		model string
		want  string
	}{
		{"fast", "gpt-4o-mini"},
		{"smart", "gpt-4o"},
		{"gpt-4.1", "gpt-4.1"},
		{"", DefaultModel},
	}
	for _, tt := range tests {
		b.Model = tt.model
		if got := b.ResolvedModel(); got != tt.want {
			t.Errorf("ResolvedModel(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	t.Setenv("DAWN_PROVIDER", "gemini")
	t.Setenv("DAWN_MODEL", "gemini-2.5-flash")
	t.Setenv("DAWN_TEMPERATURE", "0.2")
	t.Setenv("DAWN_CONCURRENCY", "8")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.Backend.Provider != "gemini" {
		t.Errorf("Provider = %q, want %q", cfg.Backend.Provider, "gemini")
	}
	if cfg.Backend.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q, want %q", cfg.Backend.Model, "gemini-2.5-flash")
	}
	if cfg.Backend.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Backend.Temperature)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}
}

func TestMergeEnv_InvalidNumber(t *testing.T) {
	t.Setenv("DAWN_CONCURRENCY", "lots")
	cfg := Default()
	err := mergeEnv(&cfg)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("mergeEnv error = %v, want ErrConfiguration", err)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"provider":    "anthropic",
		"model":       "claude-sonnet-4-20250514",
		"temperature": "0",
		"concurrency": "2",
		"principles":  "Security, Reliability",
		"output":      "",
	})
	if err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.Backend.Provider != "anthropic" {
		t.Errorf("Provider = %q, want %q", cfg.Backend.Provider, "anthropic")
	}
	if cfg.Backend.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", cfg.Backend.Temperature)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", cfg.Concurrency)
	}
	if len(cfg.Principles) != 2 || cfg.Principles[0] != "Security" || cfg.Principles[1] != "Reliability" {
		t.Errorf("Principles = %v", cfg.Principles)
	}
	if cfg.Output != "compliance_report.md" {
		t.Errorf("empty override should be ignored, Output = %q", cfg.Output)
	}
}

func TestMergeOverrides_Cache(t *testing.T) {
	cfg := Default()
	if err := mergeOverrides(&cfg, map[string]string{"cache": "true"}); err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache override should enable the cache")
	}
	if err := SetField(&cfg, "cache", "sometimes"); err == nil {
		t.Error("Expected error for non-boolean cache value")
	}
}

func TestMergeOverrides_Nil(t *testing.T) {
	cfg := Default()
	if err := mergeOverrides(&cfg, nil); err != nil {
		t.Fatalf("mergeOverrides(nil) error: %v", err)
	}
	if cfg.Backend.Provider != "openai" {
		t.Errorf("Provider changed with nil overrides")
	}
}

func TestSetField_UnknownKey(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nonexistent", "value"); err == nil {
		t.Error("Expected error for unknown key")
	}
}

func TestSetField_InvalidInt(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "maxAttempts", "notanumber"); err == nil {
		t.Error("Expected error for non-integer value")
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "backend:\n  provider: anthropic\n  model: smart\nconcurrency: 6\ncache:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DAWN_CONFIG", path)
	t.Setenv("DAWN_MODEL", "claude-opus")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(map[string]string{"concurrency": "3"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Backend.Provider != "anthropic" {
		t.Errorf("file should set provider, got %q", cfg.Backend.Provider)
	}
	if cfg.Backend.Model != "claude-opus" {
		t.Errorf("env should beat file, Model = %q", cfg.Backend.Model)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("override should beat file, Concurrency = %d", cfg.Concurrency)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true when the file sets it")
	}
	if cfg.Backend.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want resolved from ANTHROPIC_API_KEY", cfg.Backend.APIKey)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Setenv("DAWN_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Backend.Provider != "" {
		t.Errorf("missing file should yield zero config, got provider %q", cfg.Backend.Provider)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DAWN_CONFIG", path)
	if _, err := LoadFile(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("LoadFile error = %v, want ErrConfiguration", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv("DAWN_CONFIG", path)

	cfg := Default()
	cfg.Backend.APIKey = "must-not-persist"
	cfg.Concurrency = 9
	if err := Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) == "" {
		t.Fatal("saved config is empty")
	}
	loaded, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.Concurrency != 9 {
		t.Errorf("Concurrency = %d, want 9", loaded.Concurrency)
	}
	if loaded.Backend.APIKey != "" {
		t.Error("APIKey must not be written to the config file")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Backend.APIKey = "key"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing credential", func(c *Config) { c.Backend.APIKey = "" }, true},
		{"ollama needs no credential", func(c *Config) { c.Backend.Provider = "ollama"; c.Backend.APIKey = "" }, false},
		{"unknown provider", func(c *Config) { c.Backend.Provider = "mystery" }, true},
		{"temperature too high", func(c *Config) { c.Backend.Temperature = 3 }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"zero attempts", func(c *Config) { c.Backend.MaxAttempts = 0 }, true},
		{"bad policy", func(c *Config) { c.FailurePolicy = "shrug" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Backend.Models = map[string]string{}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("Validate() = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a , ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("SplitList = %v, want [a b]", got)
	}
	if SplitList("") != nil {
		t.Error("SplitList(\"\") should be nil")
	}
}
