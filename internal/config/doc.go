// Package config loads and merges dawn configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (DAWN_PROVIDER, DAWN_MODEL, DAWN_TEMPERATURE, etc.)
//  3. Config file ($DAWN_CONFIG or $XDG_CONFIG_HOME/dawn/config.yaml)
//  4. Built-in defaults
//
// The backend credential is read once from the provider's environment
// variable (OPENAI_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY) into
// [Backend.APIKey]; [Config.Validate] fails with [ErrConfiguration] when it
// is required and absent.
package config
