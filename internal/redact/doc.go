// Package redact removes secrets from code snippets before they are sent
// to a text-generation backend.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access key IDs and secret access keys, bearer
// tokens, connection strings with inline credentials, and provider-specific
// tokens (Anthropic, OpenAI, Google, GitHub, Slack).
//
// A path policy of doublestar globs can also replace a snippet's entire code
// when its source file matches, for files such as .env that should never be
// shared at all.
package redact
