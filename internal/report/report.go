package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/output"
)

// FeedbackHeading introduces reviewer feedback at the end of a report.
const FeedbackHeading = "## Reviewer Feedback"

// DefaultTitle is the report title used when none is given.
const DefaultTitle = "Dan@Dawn Compliance Report"

// Report is a composed compliance report.
type Report struct {
	RunID       string
	Title       string
	Body        string
	Feedback    string
	Provider    string
	Model       string
	Invocations int
	GeneratedAt time.Time
	Results     *analysis.Result
}

// Document returns the final Markdown: the body, followed by the feedback
// section when there is feedback.
func (r *Report) Document() string {
	if strings.TrimSpace(r.Feedback) == "" {
		return r.Body
	}
	return r.Body + "\n\n" + FeedbackHeading + "\n\n" + r.Feedback
}

// Output converts the report for an output sink.
func (r *Report) Output() (*output.Document, error) {
	doc := &output.Document{
		RunID:       r.RunID,
		Title:       r.Title,
		Provider:    r.Provider,
		Model:       r.Model,
		Invocations: r.Invocations,
		GeneratedAt: r.GeneratedAt,
		Markdown:    r.Document(),
	}
	if r.Results != nil {
		data, err := json.Marshal(r.Results)
		if err != nil {
			return nil, fmt.Errorf("encoding results: %w", err)
		}
		doc.Results = data
	}
	return doc, nil
}
