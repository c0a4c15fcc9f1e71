package redact

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

const placeholder = "[REDACTED]"

// PathPlaceholder replaces the whole code of a snippet whose path matches
// the path policy.
const PathPlaceholder = placeholder + " (file content redacted by path policy)\n"

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// API keys and secrets in assignments
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// Connection strings with inline credentials
	regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED] and reports how
// many were replaced.
func Secrets(text string) (string, int) {
	n := 0
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllStringFunc(text, func(string) string {
			n++
			return placeholder
		})
	}
	return text, n
}

// Redactor scrubs snippet code before it leaves the process.
type Redactor struct {
	secrets bool
	paths   []string
}

// New creates a Redactor. Path patterns use doublestar syntax, so
// "**/.env" matches .env at any depth.
func New(redactSecrets bool, pathPatterns []string) (*Redactor, error) {
	for _, p := range pathPatterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid redaction pattern %q", p)
		}
	}
	return &Redactor{secrets: redactSecrets, paths: pathPatterns}, nil
}

// MatchesPath reports whether path falls under the path policy.
func (r *Redactor) MatchesPath(path string) bool {
	if path == "" {
		return false
	}
	path = filepath.ToSlash(path)
	for _, pattern := range r.paths {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// Code returns code with secrets removed, or the path placeholder when path
// matches the path policy. The count is the number of secrets replaced,
// or 1 for a path match.
func (r *Redactor) Code(code, path string) (string, int) {
	if r.MatchesPath(path) {
		return PathPlaceholder, 1
	}
	if !r.secrets {
		return code, 0
	}
	return Secrets(code)
}
