package snippets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/redact"
)

// DefaultInclude matches common source files.
var DefaultInclude = []string{
	"**/*.{go,py,js,jsx,ts,tsx,java,kt,rb,rs,c,h,cc,cpp,hpp,cs,php,swift,scala,sh}",
}

// DefaultExclude skips dependency and VCS directories.
var DefaultExclude = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/.venv/**",
	"**/dist/**",
}

const (
	defaultMaxFileBytes = 64 * 1024
	defaultMaxFiles     = 50
)

// ErrNoSnippets is returned when a source yields nothing to analyze.
var ErrNoSnippets = errors.New("no code snippets found")

// LoadFile reads a snippet list: a JSON or YAML array of
// {code, description, path} objects.
func LoadFile(path string) ([]analysis.Snippet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: snippet file not found: %s", config.ErrConfiguration, path)
		}
		return nil, fmt.Errorf("reading snippet file: %w", err)
	}
	format := "json"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		format = "yaml"
	}
	out, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Parse decodes a snippet list in the given format ("json" or "yaml").
func Parse(data []byte, format string) ([]analysis.Snippet, error) {
	var list []analysis.Snippet
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: invalid snippet list: %v", config.ErrConfiguration, err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: invalid snippet list: %v", config.ErrConfiguration, err)
		}
	default:
		return nil, fmt.Errorf("unsupported snippet format %q", format)
	}
	if len(list) == 0 {
		return nil, ErrNoSnippets
	}
	for i, s := range list {
		if strings.TrimSpace(s.Code) == "" {
			return nil, fmt.Errorf("%w: snippet %d has no code", config.ErrConfiguration, i)
		}
	}
	return list, nil
}

// DiscoverOptions controls source tree discovery.
type DiscoverOptions struct {
	// Include and Exclude are doublestar patterns relative to the root.
	// Empty slices use DefaultInclude and DefaultExclude.
	Include []string
	Exclude []string

	// MaxFileBytes skips larger files. Zero uses 64 KiB.
	MaxFileBytes int64
	// MaxFiles stops discovery after this many snippets. Zero uses 50.
	MaxFiles int
	// SplitLarge turns files over MaxFileBytes into line-bounded chunks
	// instead of skipping them.
	SplitLarge bool
}

// Discover turns every matching file under root into one snippet, sorted
// by path. Binary and empty files are skipped, as are files over the size
// limit unless SplitLarge is set.
func Discover(root string, opts DiscoverOptions) ([]analysis.Snippet, error) {
	include := opts.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	exclude := opts.Exclude
	if len(exclude) == 0 {
		exclude = DefaultExclude
	}
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxFileBytes
	}
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid glob pattern %q", config.ErrConfiguration, p)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: source directory: %v", config.ErrConfiguration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", config.ErrConfiguration, root)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] && !excluded(m, exclude) {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	var out []analysis.Snippet
	for _, p := range paths {
		if len(out) >= maxFiles {
			break
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if len(bytes.TrimSpace(data)) == 0 || bytes.IndexByte(data, 0) >= 0 {
			continue
		}
		if int64(len(data)) > maxBytes {
			if opts.SplitLarge {
				out = append(out, chunkSnippets(p, data, int(maxBytes))...)
			}
			continue
		}
		out = append(out, analysis.Snippet{
			Code:        string(data),
			Description: fmt.Sprintf("%s (%d lines)", p, lineCount(data)),
			Path:        p,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoSnippets, root)
	}
	if len(out) > maxFiles {
		out = out[:maxFiles]
	}
	return out, nil
}

func excluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

func lineCount(data []byte) int {
	n := bytes.Count(data, []byte("\n"))
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// Redact returns copies of snips with their code scrubbed by r, and the
// total number of redactions made.
func Redact(snips []analysis.Snippet, r *redact.Redactor) ([]analysis.Snippet, int) {
	if r == nil {
		return snips, 0
	}
	out := make([]analysis.Snippet, len(snips))
	total := 0
	for i, s := range snips {
		code, n := r.Code(s.Code, s.Path)
		s.Code = code
		out[i] = s
		total += n
	}
	return out, total
}
