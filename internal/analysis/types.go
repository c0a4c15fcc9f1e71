package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Snippet is one piece of source code to evaluate.
type Snippet struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
	// Path is the file the snippet came from, when known.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Principle is the label of an evaluation principle, such as "Security".
type Principle string

// DefaultPrinciples returns a fresh slice of the four standard principles.
func DefaultPrinciples() []Principle {
	return []Principle{"Debugging", "Reliability", "Security", "Minimalism"}
}

// ParsePrinciples converts labels to principles, trimming whitespace. An
// empty list yields the defaults.
func ParsePrinciples(labels []string) []Principle {
	if len(labels) == 0 {
		return DefaultPrinciples()
	}
	out := make([]Principle, 0, len(labels))
	for _, l := range labels {
		out = append(out, Principle(strings.TrimSpace(l)))
	}
	return out
}

// Kind distinguishes the two generations made per principle and snippet.
type Kind int

const (
	KindAnalysis Kind = iota
	KindRecommendation
)

func (k Kind) String() string {
	if k == KindRecommendation {
		return "recommendations"
	}
	return "analysis"
}

// PrincipleResult holds one generated text per snippet, in snippet order.
type PrincipleResult struct {
	Principle       Principle `json:"-"`
	Analyses        []string  `json:"analysis"`
	Recommendations []string  `json:"recommendations"`
}

// UnitFailure records a unit whose slot was filled with a placeholder.
type UnitFailure struct {
	Principle    Principle `json:"principle"`
	SnippetIndex int       `json:"snippet"`
	Kind         string    `json:"kind"`
	Error        string    `json:"error"`
}

// Result is the aggregated output of an analysis run. Principles keep the
// order they were requested in.
type Result struct {
	Principles []PrincipleResult
	Failures   []UnitFailure
}

// Get returns the result for principle p.
func (r Result) Get(p Principle) (PrincipleResult, bool) {
	for _, pr := range r.Principles {
		if pr.Principle == p {
			return pr, true
		}
	}
	return PrincipleResult{}, false
}

// MarshalJSON encodes the result as an object keyed by principle, in
// principle order:
//
//	{"Debugging": {"analysis": [...], "recommendations": [...]}, ...}
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pr := range r.Principles {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeRaw(string(pr.Principle))
		if err != nil {
			return nil, err
		}
		if pr.Analyses == nil {
			pr.Analyses = []string{}
		}
		if pr.Recommendations == nil {
			pr.Recommendations = []string{}
		}
		body, err := encodeRaw(pr)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeRaw marshals v without HTML escaping so code snippets stay readable.
func encodeRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes the object form written by MarshalJSON, keeping the
// key order.
func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("analysis result must be a JSON object")
	}
	r.Principles = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var pr PrincipleResult
		if err := dec.Decode(&pr); err != nil {
			return fmt.Errorf("principle %q: %w", key, err)
		}
		if len(pr.Analyses) != len(pr.Recommendations) {
			return fmt.Errorf("principle %q: %d analyses but %d recommendations",
				key, len(pr.Analyses), len(pr.Recommendations))
		}
		pr.Principle = Principle(key)
		r.Principles = append(r.Principles, pr)
	}
	_, err = dec.Token()
	return err
}

// MarshalIndent returns the result as two-space indented JSON. This is the
// text substituted into the report formatting prompt.
func (r Result) MarshalIndent() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("encoding analysis results: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
