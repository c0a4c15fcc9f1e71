package output

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs the document and its metadata as indented JSON.
type JSONWriter struct{}

type jsonDocument struct {
	*Document
	Results json.RawMessage `json:"results,omitempty"`
}

func (j *JSONWriter) Write(w io.Writer, doc *Document) error {
	out := jsonDocument{Document: doc}
	if len(doc.Results) > 0 {
		out.Results = json.RawMessage(doc.Results)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
