// Package backend abstracts the text-generation service that analyses code
// and writes reports.
//
// A [Backend] takes one rendered prompt and returns generated text. Concrete
// providers are OpenAI (and OpenAI-compatible servers such as Ollama and
// LM Studio), Google Gemini and Anthropic. Every provider failure is an
// [*Error] whose [Kind] decides whether it may be retried.
//
// Cross-cutting behaviour is layered with decorators: [WithRetry] adds a
// shared per-minute rate limit, a per-attempt timeout and bounded exponential
// backoff; [WithCache] serves repeated prompts from disk; [WithMetrics]
// records Prometheus counters. [Build] assembles the usual stack from
// configuration.
package backend
