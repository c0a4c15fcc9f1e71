package prompts

import (
	"fmt"
	"strings"
)

// Template is a parsed prompt with named {placeholder} slots. "{{" and "}}"
// stand for literal braces.
type Template struct {
	Key  string
	Text string

	// Placeholders lists slot names in order of first appearance.
	Placeholders []string

	segments []segment
}

type segment struct {
	literal     string
	placeholder string
}

func parseTemplate(key, text string) (*Template, error) {
	t := &Template{Key: key, Text: text}
	seen := make(map[string]bool)

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: %s: unclosed '{' at offset %d", ErrMalformed, key, i)
			}
			name := text[i+1 : i+1+end]
			if !validName(name) {
				return nil, fmt.Errorf("%w: %s: invalid placeholder %q", ErrMalformed, key, name)
			}
			flush()
			t.segments = append(t.segments, segment{placeholder: name})
			if !seen[name] {
				seen[name] = true
				t.Placeholders = append(t.Placeholders, name)
			}
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: %s: single '}' at offset %d", ErrMalformed, key, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Execute substitutes every placeholder. Extra substitutions are ignored.
func (t *Template) Execute(subs map[string]string) (string, error) {
	for _, name := range t.Placeholders {
		if _, ok := subs[name]; !ok {
			return "", fmt.Errorf("%w: template %s needs {%s}", ErrMissingPlaceholder, t.Key, name)
		}
	}
	var b strings.Builder
	for _, s := range t.segments {
		if s.placeholder != "" {
			b.WriteString(subs[s.placeholder])
			continue
		}
		b.WriteString(s.literal)
	}
	return b.String(), nil
}
