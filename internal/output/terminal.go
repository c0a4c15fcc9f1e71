package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
)

var stdout io.Writer = os.Stdout

// TerminalWriter renders the Markdown for display in a terminal.
type TerminalWriter struct {
	// Style is a glamour standard style name. Empty detects the terminal
	// background.
	Style string
	// Width wraps rendered text. Zero uses 100 columns.
	Width int
}

func (t *TerminalWriter) Write(w io.Writer, doc *Document) error {
	width := t.Width
	if width <= 0 {
		width = 100
	}
	style := glamour.WithAutoStyle()
	if t.Style != "" {
		style = glamour.WithStandardStyle(t.Style)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(doc.Markdown)
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
