package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

// Document is a finished report together with its run metadata.
type Document struct {
	RunID       string    `json:"runId"`
	Title       string    `json:"title,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Invocations int       `json:"invocations"`
	GeneratedAt time.Time `json:"generatedAt"`
	Markdown    string    `json:"markdown"`

	// Results is the analysis result JSON the report was composed from.
	Results []byte `json:"-"`
}

// Writer writes a document in a specific format.
type Writer interface {
	Write(w io.Writer, doc *Document) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "markdown", "md":
		return &MarkdownWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "terminal":
		return &TerminalWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Sink is a destination for finished documents.
type Sink interface {
	Put(ctx context.Context, doc *Document) error
	String() string
}

// Open returns the sink for dest: "-" is stdout, s3://bucket/key is an
// object in the configured store, anything else is a file path. An empty
// format picks markdown, except for stdout where it picks terminal when
// stdout is a terminal.
func Open(dest, format string, storage config.StorageConfig) (Sink, error) {
	switch {
	case dest == "" || dest == "-":
		if format == "" && isTerminal(stdout) {
			format = "terminal"
		}
		w, err := GetWriter(format)
		if err != nil {
			return nil, err
		}
		return &StreamSink{Out: stdout, Writer: w, Name: "stdout"}, nil
	case strings.HasPrefix(dest, "s3://"):
		w, err := GetWriter(format)
		if err != nil {
			return nil, err
		}
		return NewObjectSink(dest, w, storage)
	default:
		w, err := GetWriter(format)
		if err != nil {
			return nil, err
		}
		return &FileSink{Path: dest, Writer: w}, nil
	}
}
