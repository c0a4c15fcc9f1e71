package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

// Well-known template keys.
const (
	KeyAnalyzeCode      = "application.analyze_code"
	KeyRecommendations  = "application.generate_recommendations"
	KeyFormatReport     = "application.format_report"
	KeySuffix           = "suffix.general"
	KeySimulateFeedback = "reviewer.simulate_feedback"

	legacyFeedbackKey = "Dan.simulate_dan"
)

var requiredKeys = []string{KeyAnalyzeCode, KeyRecommendations, KeyFormatReport, KeySuffix}

var (
	// ErrNotFound means the catalog source does not exist.
	ErrNotFound = fmt.Errorf("%w: prompt catalog not found", config.ErrConfiguration)

	// ErrMalformed means the catalog could not be decoded, a required
	// template is missing or a template has broken placeholder syntax.
	ErrMalformed = errors.New("malformed prompt catalog")

	// ErrMissingPlaceholder means Render was not given a value for a
	// placeholder the template references.
	ErrMissingPlaceholder = errors.New("missing placeholder substitution")

	// ErrUnknownTemplate means Render was asked for a key the catalog lacks.
	ErrUnknownTemplate = errors.New("unknown prompt template")
)

// Format identifies the encoding of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Catalog is an immutable set of named templates. It is safe for
// concurrent use.
type Catalog struct {
	templates map[string]*Template
	source    string
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: reading prompt catalog %s: %v", config.ErrConfiguration, path, err)
	}
	c, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.source = path
	return c, nil
}

// Parse decodes a catalog document of nested string maps. Nested keys are
// joined with dots.
func Parse(data []byte, format Format) (*Catalog, error) {
	var doc map[string]any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrMalformed, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	flat := make(map[string]string)
	if err := flatten("", doc, flat); err != nil {
		return nil, err
	}
	if text, ok := flat[legacyFeedbackKey]; ok {
		if _, exists := flat[KeySimulateFeedback]; !exists {
			flat[KeySimulateFeedback] = text
		}
	}
	for _, key := range requiredKeys {
		if _, ok := flat[key]; !ok {
			return nil, fmt.Errorf("%w: missing required template %s", ErrMalformed, key)
		}
	}

	c := &Catalog{templates: make(map[string]*Template, len(flat))}
	for key, text := range flat {
		if key == KeySuffix {
			// The suffix is appended verbatim, never rendered.
			c.templates[key] = &Template{Key: key, Text: text, segments: []segment{{literal: text}}}
			continue
		}
		t, err := parseTemplate(key, text)
		if err != nil {
			return nil, err
		}
		c.templates[key] = t
	}
	return c, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s must be a string or a mapping, got %T", ErrMalformed, key, v)
		}
	}
	return nil
}

// Render substitutes subs into the template named key.
func (c *Catalog) Render(key string, subs map[string]string) (string, error) {
	t, ok := c.templates[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
	}
	return t.Execute(subs)
}

// Suffix returns the shared suffix appended to every analysis prompt.
func (c *Catalog) Suffix() string {
	return c.templates[KeySuffix].Text
}

// Has reports whether key is present.
func (c *Catalog) Has(key string) bool {
	_, ok := c.templates[key]
	return ok
}

// Template returns the parsed template for key.
func (c *Catalog) Template(key string) (*Template, bool) {
	t, ok := c.templates[key]
	return t, ok
}

// Keys returns all template keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source returns the path the catalog was loaded from, if any.
func (c *Catalog) Source() string { return c.source }
