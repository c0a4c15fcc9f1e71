package output

import (
	"io"
	"strings"
)

// MarkdownWriter writes the report document as-is.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, doc *Document) error {
	text := doc.Markdown
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}
