package snippets

import (
	"bytes"
	"fmt"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
)

// Chunk is a line range of a larger file.
type Chunk struct {
	Index     int
	StartLine int
	EndLine   int
	Code      string
}

// Split cuts data into chunks of at most maxBytes, breaking only between
// lines. A single line longer than maxBytes becomes a chunk of its own.
func Split(data []byte, maxBytes int) []Chunk {
	if len(data) == 0 {
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxFileBytes
	}

	var chunks []Chunk
	var current bytes.Buffer
	start, line := 1, 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			StartLine: start,
			EndLine:   line,
			Code:      current.String(),
		})
		current.Reset()
		start = line + 1
	}

	for len(data) > 0 {
		end := bytes.IndexByte(data, '\n') + 1
		if end == 0 {
			end = len(data)
		}
		next := data[:end]
		data = data[end:]

		if current.Len() > 0 && current.Len()+len(next) > maxBytes {
			flush()
		}
		current.Write(next)
		line++
	}
	flush()
	return chunks
}

func chunkSnippets(path string, data []byte, maxBytes int) []analysis.Snippet {
	chunks := Split(data, maxBytes)
	out := make([]analysis.Snippet, 0, len(chunks))
	for _, c := range chunks {
		if len(bytes.TrimSpace([]byte(c.Code))) == 0 {
			continue
		}
		out = append(out, analysis.Snippet{
			Code:        c.Code,
			Description: fmt.Sprintf("%s lines %d-%d (part %d of %d)", path, c.StartLine, c.EndLine, c.Index+1, len(chunks)),
			Path:        path,
		})
	}
	return out
}
