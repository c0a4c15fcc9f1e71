// Package server exposes report generation over HTTP.
//
// Routes:
//
//	POST /v1/reports    run the pipeline on the snippets in the body
//	GET  /v1/runs       recent runs from the history store
//	GET  /v1/runs/{id}  one run
//	GET  /healthz       liveness, plus a history database check
//	GET  /metrics       Prometheus metrics
//
// A report request may carry its own prompt catalog, sample report and
// reviewer context; anything it omits falls back to the server's files.
package server
