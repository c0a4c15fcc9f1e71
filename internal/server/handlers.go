package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/backend"
	"github.com/griffinclark/Dan-at-Dawn/internal/config"
	"github.com/griffinclark/Dan-at-Dawn/internal/history"
	"github.com/griffinclark/Dan-at-Dawn/internal/output"
	"github.com/griffinclark/Dan-at-Dawn/internal/prompts"
	"github.com/griffinclark/Dan-at-Dawn/internal/report"
	"github.com/griffinclark/Dan-at-Dawn/internal/snippets"
)

const defaultRunsLimit = 20

// errBadRequest marks request problems the caller can fix.
var errBadRequest = errors.New("bad request")

// errHistoryDisabled is returned by the run endpoints without a store.
var errHistoryDisabled = errors.New("run history is disabled")

// reportRequest is the body of POST /v1/reports.
type reportRequest struct {
	Snippets   []analysis.Snippet `json:"snippets"`
	Principles []string           `json:"principles,omitempty"`

	// Prompts is either a catalog object or catalog text in PromptsFormat.
	Prompts       json.RawMessage `json:"prompts,omitempty"`
	PromptsFormat string          `json:"promptsFormat,omitempty"`

	Sample           string `json:"sample,omitempty"`
	ReviewerContext  string `json:"reviewerContext,omitempty"`
	Feedback         string `json:"feedback,omitempty"`
	SimulateFeedback bool   `json:"simulateFeedback,omitempty"`
	Draft            bool   `json:"draft,omitempty"`
	Title            string `json:"title,omitempty"`
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				s.logger.Error("request failed",
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Error(err))
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, config.ErrConfiguration),
		errors.Is(err, prompts.ErrMalformed),
		errors.Is(err, prompts.ErrMissingPlaceholder),
		errors.Is(err, prompts.ErrUnknownTemplate),
		errors.Is(err, analysis.ErrNoSnippets),
		errors.Is(err, analysis.ErrNoPrinciples),
		errors.Is(err, analysis.ErrInvalidPrinciple),
		errors.Is(err, analysis.ErrDuplicatePrinciple),
		errors.Is(err, analysis.ErrNoCatalog):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound), errors.Is(err, errHistoryDisabled):
		return http.StatusNotFound
	case backend.IsAuthError(err):
		return http.StatusBadGateway
	case backend.IsTransient(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// POST /v1/reports
// Runs the whole pipeline in the request context and returns the report
// with its metadata. Nothing is persisted besides the run history.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) error {
	var body reportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return fmt.Errorf("%w: decoding body: %v", errBadRequest, err)
	}

	in, err := s.input(body)
	if err != nil {
		return err
	}
	rep, err := s.pipeline.Run(r.Context(), in)
	if err != nil {
		return err
	}
	doc, err := rep.Output()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := (&output.JSONWriter{}).Write(&buf, doc); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(buf.Bytes())
	return err
}

func (s *Server) input(body reportRequest) (report.Input, error) {
	if len(body.Snippets) == 0 {
		return report.Input{}, fmt.Errorf("%w: %v", errBadRequest, analysis.ErrNoSnippets)
	}
	snips := body.Snippets
	if s.opts.Redactor != nil {
		var n int
		snips, n = snippets.Redact(snips, s.opts.Redactor)
		if n > 0 {
			s.logger.Debug("redacted request snippets", zap.Int("redactions", n))
		}
	}

	in := report.Input{
		Snippets:            snips,
		Principles:          s.opts.Defaults.Principles,
		PromptsPath:         s.opts.Defaults.PromptsPath,
		Sample:              body.Sample,
		SamplePath:          s.opts.Defaults.SamplePath,
		ReviewerContext:     body.ReviewerContext,
		ReviewerContextPath: s.opts.Defaults.ReviewerContextPath,
		Feedback:            body.Feedback,
		SimulateFeedback:    body.SimulateFeedback,
		Draft:               body.Draft,
		Title:               body.Title,
	}
	if len(body.Principles) > 0 {
		in.Principles = analysis.ParsePrinciples(body.Principles)
	}
	if len(body.Prompts) > 0 {
		catalog, err := parseCatalog(body.Prompts, body.PromptsFormat)
		if err != nil {
			return report.Input{}, err
		}
		in.Catalog = catalog
	}
	return in, nil
}

// parseCatalog accepts the catalog as a JSON object or as a string holding
// JSON or YAML text.
func parseCatalog(raw json.RawMessage, format string) (*prompts.Catalog, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return prompts.Parse(trimmed, prompts.FormatJSON)
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil, fmt.Errorf("%w: prompts must be an object or a string", errBadRequest)
	}
	switch format {
	case "", "yaml", "yml":
		return prompts.Parse([]byte(text), prompts.FormatYAML)
	case "json":
		return prompts.Parse([]byte(text), prompts.FormatJSON)
	default:
		return nil, fmt.Errorf("%w: unknown prompts format %q", errBadRequest, format)
	}
}

// GET /v1/runs?limit=N
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) error {
	if s.opts.History == nil {
		return errHistoryDisabled
	}
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid limit %q", errBadRequest, v)
		}
		limit = n
	}
	runs, err := s.opts.History.List(r.Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
	return nil
}

// GET /v1/runs/{id}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) error {
	if s.opts.History == nil {
		return errHistoryDisabled
	}
	run, err := s.opts.History.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, run)
	return nil
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

// CheckStatus is the outcome of one health check.
type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "healthy", Timestamp: time.Now().UTC()}
	status := http.StatusOK

	if s.opts.History != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		health.Checks = map[string]CheckStatus{}
		if err := s.opts.History.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Checks["history"] = CheckStatus{Status: "unhealthy", Message: err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			health.Checks["history"] = CheckStatus{Status: "healthy"}
		}
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
