package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks fatal setup problems: a missing prompt source, a
// missing credential, an invalid setting. It is never retried.
var ErrConfiguration = errors.New("configuration error")

// DefaultModel is used when no model or an unknown model alias is configured.
const DefaultModel = "gpt-4o"

// Failure policies for analysis units.
const (
	FailurePolicyAbort   = "abort"
	FailurePolicyIsolate = "isolate"
)

// Config represents the dawn configuration.
type Config struct {
	Backend         Backend       `yaml:"backend"`
	Principles      []string      `yaml:"principles,omitempty"`
	Concurrency     int           `yaml:"concurrency"`
	FailurePolicy   string        `yaml:"failurePolicy"`
	Prompts         string        `yaml:"prompts"`
	SampleReport    string        `yaml:"sampleReport"`
	ReviewerContext string        `yaml:"reviewerContext,omitempty"`
	Output          string        `yaml:"output"`
	Include         []string      `yaml:"include,omitempty"`
	Exclude         []string      `yaml:"exclude,omitempty"`
	Cache           CacheConfig   `yaml:"cache"`
	Privacy         PrivacyConfig `yaml:"privacy"`
	History         HistoryConfig `yaml:"history"`
	Storage         StorageConfig `yaml:"storage,omitempty"`
	Log             LogConfig     `yaml:"log"`
}

// Backend describes the text-generation service boundary.
type Backend struct {
	Provider          string            `yaml:"provider"`
	Model             string            `yaml:"model"`
	Models            map[string]string `yaml:"models,omitempty"`
	Temperature       float64           `yaml:"temperature"`
	MaxTokens         int               `yaml:"maxTokens,omitempty"`
	BaseURL           string            `yaml:"baseURL,omitempty"`
	RequestsPerMinute int               `yaml:"requestsPerMinute"`
	MaxAttempts       int               `yaml:"maxAttempts"`
	TimeoutSeconds    int               `yaml:"timeoutSeconds"`

	// APIKey is resolved from the provider's environment variable at load
	// time and is never written back to the config file.
	APIKey string `yaml:"-"`
}

// CacheConfig controls caching of backend responses. Caching is off unless
// enabled, since a cache hit replaces a backend invocation.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir,omitempty"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// PrivacyConfig controls secret redaction in snippets.
type PrivacyConfig struct {
	RedactSecrets bool     `yaml:"redactSecrets"`
	RedactPaths   []string `yaml:"redactPaths,omitempty"`
}

// HistoryConfig controls the SQLite run log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// StorageConfig holds object-storage credentials for s3:// destinations.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
	UseSSL    bool   `yaml:"useSSL"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Backend: Backend{
			Provider: "openai",
			Model:    "fast",
			Models: map[string]string{
				"fast":  "gpt-4o-mini",
				"smart": "gpt-4o",
			},
			Temperature:       0.7,
			RequestsPerMinute: 60,
			MaxAttempts:       3,
			TimeoutSeconds:    120,
		},
		Concurrency:     4,
		FailurePolicy:   FailurePolicyAbort,
		Prompts:         "llm/prompts.json",
		SampleReport:    "llm/context/sample-report.md",
		ReviewerContext: "llm/context/reviewer.md",
		Output:          "compliance_report.md",
		Cache: CacheConfig{
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ResolvedModel maps a model alias (e.g. "fast") to a concrete model name.
// An empty model falls back to DefaultModel.
func (b Backend) ResolvedModel() string {
	if m, ok := b.Models[b.Model]; ok && m != "" {
		return m
	}
	if b.Model == "" {
		return DefaultModel
	}
	return b.Model
}

// CredentialEnv returns the environment variable holding the credential for
// a provider, or "" if the provider needs none.
func CredentialEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini", "google":
		return "GEMINI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "ollama", "lmstudio":
		return "DAWN_OLLAMA_API_KEY"
	default:
		return ""
	}
}

func credentialRequired(provider string) bool {
	switch provider {
	case "ollama", "lmstudio":
		return false
	default:
		return true
	}
}

// ConfigDir returns the platform-appropriate config directory for dawn.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dawn"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "dawn"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "dawn"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "dawn"), nil
	default:
		return filepath.Join(home, ".config", "dawn"), nil
	}
}

// ConfigPath returns the full path to the config file. DAWN_CONFIG wins.
func ConfigPath() (string, error) {
	if p := os.Getenv("DAWN_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil error if file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFrom(path)
}

func loadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing config file %s: %v", ErrConfiguration, path, err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides,
// then resolves the backend credential from the environment.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	resolveCredential(&cfg)

	return cfg, nil
}

// Validate checks the settings the pipeline depends on. Every failure wraps
// ErrConfiguration.
func (c Config) Validate() error {
	switch c.Backend.Provider {
	case "openai", "ollama", "lmstudio", "gemini", "google", "anthropic":
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrConfiguration, c.Backend.Provider)
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f out of range [0, 2]", ErrConfiguration, c.Backend.Temperature)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrConfiguration)
	}
	if c.Backend.MaxAttempts < 1 {
		return fmt.Errorf("%w: maxAttempts must be at least 1", ErrConfiguration)
	}
	switch c.FailurePolicy {
	case FailurePolicyAbort, FailurePolicyIsolate:
	default:
		return fmt.Errorf("%w: unknown failure policy %q", ErrConfiguration, c.FailurePolicy)
	}
	if credentialRequired(c.Backend.Provider) && c.Backend.APIKey == "" {
		return fmt.Errorf("%w: %s environment variable is not set", ErrConfiguration, CredentialEnv(c.Backend.Provider))
	}
	return nil
}

func resolveCredential(cfg *Config) {
	if cfg.Backend.APIKey != "" {
		return
	}
	env := CredentialEnv(cfg.Backend.Provider)
	if env == "" {
		return
	}
	cfg.Backend.APIKey = os.Getenv(env)
	if cfg.Backend.APIKey == "" && (cfg.Backend.Provider == "gemini" || cfg.Backend.Provider == "google") {
		cfg.Backend.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
}

func mergeFile(dst *Config, src Config) {
	b := src.Backend
	if b.Provider != "" {
		dst.Backend.Provider = b.Provider
	}
	if b.Model != "" {
		dst.Backend.Model = b.Model
	}
	for alias, name := range b.Models {
		dst.Backend.Models[alias] = name
	}
	if b.Temperature > 0 {
		dst.Backend.Temperature = b.Temperature
	}
	if b.MaxTokens > 0 {
		dst.Backend.MaxTokens = b.MaxTokens
	}
	if b.BaseURL != "" {
		dst.Backend.BaseURL = b.BaseURL
	}
	if b.RequestsPerMinute > 0 {
		dst.Backend.RequestsPerMinute = b.RequestsPerMinute
	}
	if b.MaxAttempts > 0 {
		dst.Backend.MaxAttempts = b.MaxAttempts
	}
	if b.TimeoutSeconds > 0 {
		dst.Backend.TimeoutSeconds = b.TimeoutSeconds
	}
	if len(src.Principles) > 0 {
		dst.Principles = src.Principles
	}
	if src.Concurrency > 0 {
		dst.Concurrency = src.Concurrency
	}
	if src.FailurePolicy != "" {
		dst.FailurePolicy = src.FailurePolicy
	}
	if src.Prompts != "" {
		dst.Prompts = src.Prompts
	}
	if src.SampleReport != "" {
		dst.SampleReport = src.SampleReport
	}
	if src.ReviewerContext != "" {
		dst.ReviewerContext = src.ReviewerContext
	}
	if src.Output != "" {
		dst.Output = src.Output
	}
	if len(src.Include) > 0 {
		dst.Include = src.Include
	}
	if len(src.Exclude) > 0 {
		dst.Exclude = src.Exclude
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.TTLSeconds > 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	if len(src.Privacy.RedactPaths) > 0 {
		dst.Privacy.RedactPaths = src.Privacy.RedactPaths
	}
	if src.History.Path != "" {
		dst.History.Path = src.History.Path
	}
	if src.Storage != (StorageConfig{}) {
		dst.Storage = src.Storage
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	// YAML's zero bool cannot be told apart from an unset key, so booleans
	// are only taken from a file that configured the backend.
	if src.Backend.Provider != "" {
		dst.Cache.Enabled = src.Cache.Enabled
		dst.Privacy.RedactSecrets = src.Privacy.RedactSecrets
		dst.History.Enabled = src.History.Enabled
	}
}

func mergeEnv(cfg *Config) error {
	if v := os.Getenv("DAWN_PROVIDER"); v != "" {
		cfg.Backend.Provider = v
	}
	if v := os.Getenv("DAWN_MODEL"); v != "" {
		cfg.Backend.Model = v
	}
	if v := os.Getenv("DAWN_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("DAWN_PROMPTS"); v != "" {
		cfg.Prompts = v
	}
	if v := os.Getenv("DAWN_FAILURE_POLICY"); v != "" {
		cfg.FailurePolicy = v
	}
	if v := os.Getenv("DAWN_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: DAWN_TEMPERATURE must be a number: %v", ErrConfiguration, err)
		}
		cfg.Backend.Temperature = f
	}
	if v := os.Getenv("DAWN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: DAWN_CONCURRENCY must be an integer: %v", ErrConfiguration, err)
		}
		cfg.Concurrency = n
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := SetField(cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Backend.Provider = value
	case "model":
		cfg.Backend.Model = value
	case "baseURL":
		cfg.Backend.BaseURL = value
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("temperature must be a number: %w", err)
		}
		cfg.Backend.Temperature = f
	case "maxTokens", "requestsPerMinute", "maxAttempts", "timeoutSeconds", "concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		setInt(cfg, key, n)
	case "principles":
		cfg.Principles = SplitList(value)
	case "failurePolicy":
		cfg.FailurePolicy = value
	case "prompts":
		cfg.Prompts = value
	case "sampleReport":
		cfg.SampleReport = value
	case "reviewerContext":
		cfg.ReviewerContext = value
	case "output":
		cfg.Output = value
	case "include":
		cfg.Include = SplitList(value)
	case "exclude":
		cfg.Exclude = SplitList(value)
	case "logLevel":
		cfg.Log.Level = value
	case "logFormat":
		cfg.Log.Format = value
	case "cache":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cache must be true or false: %w", err)
		}
		cfg.Cache.Enabled = b
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(cfg *Config, key string, n int) {
	switch key {
	case "maxTokens":
		cfg.Backend.MaxTokens = n
	case "requestsPerMinute":
		cfg.Backend.RequestsPerMinute = n
	case "maxAttempts":
		cfg.Backend.MaxAttempts = n
	case "timeoutSeconds":
		cfg.Backend.TimeoutSeconds = n
	case "concurrency":
		cfg.Concurrency = n
	}
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
