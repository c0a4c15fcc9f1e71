// Package output writes finished compliance reports.
//
// Three formats are supported:
//   - markdown: the report document unchanged (default)
//   - json: the document plus run metadata and analysis results
//   - terminal: Markdown rendered with glamour for reading in a terminal
//
// Destinations are [Sink]s chosen by [Open]: a file path (written
// atomically), "-" for stdout, or s3://bucket/key for an S3-compatible
// object store.
package output
