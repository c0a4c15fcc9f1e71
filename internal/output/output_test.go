package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

func testDocument() *Document {
	return &Document{
		RunID:       "run-1",
		Provider:    "openai",
		Model:       "gpt-4o",
		Invocations: 9,
		GeneratedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Markdown:    "# Compliance Report\n\nAll <good> & well.",
		Results:     []byte(`{"Debugging":{"analysis":["A"],"recommendations":["B"]}}`),
	}
}

func TestGetWriter(t *testing.T) {
	for _, f := range []string{"", "markdown", "md", "json", "terminal"} {
		_, err := GetWriter(f)
		assert.NoError(t, err, "format %q", f)
	}
	_, err := GetWriter("sarif")
	assert.Error(t, err)
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownWriter{}).Write(&buf, testDocument()))
	assert.Equal(t, "# Compliance Report\n\nAll <good> & well.\n", buf.String())
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, testDocument()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["runId"])
	assert.Equal(t, float64(9), got["invocations"])
	assert.Contains(t, got["markdown"], "<good>")
	results, ok := got["results"].(map[string]any)
	require.True(t, ok, "results should be embedded as JSON")
	assert.Contains(t, results, "Debugging")
	assert.Contains(t, buf.String(), "All <good> & well.", "markdown is not HTML-escaped")
}

func TestTerminalWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &TerminalWriter{Style: "notty", Width: 60}
	require.NoError(t, w.Write(&buf, testDocument()))
	assert.Contains(t, buf.String(), "Compliance Report")
}

func TestFileSink_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "compliance_report.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	sink, err := Open(path, "", config.StorageConfig{})
	require.NoError(t, err)
	assert.Equal(t, path, sink.String())

	require.NoError(t, sink.Put(context.Background(), testDocument()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Compliance Report\n\nAll <good> & well.\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

type failingWriter struct{}

func (failingWriter) Write(w io.Writer, doc *Document) error { return errors.New("render failed") }

func TestFileSink_FailureKeepsOldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	sink := &FileSink{Path: path, Writer: failingWriter{}}
	require.Error(t, sink.Put(context.Background(), testDocument()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestFileSink_CanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &FileSink{Path: path, Writer: &MarkdownWriter{}}
	require.ErrorIs(t, sink.Put(ctx, testDocument()), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_Stdout(t *testing.T) {
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	defer func() { stdout = orig }()

	sink, err := Open("-", "", config.StorageConfig{})
	require.NoError(t, err)
	assert.Equal(t, "stdout", sink.String())
	require.NoError(t, sink.Put(context.Background(), testDocument()))
	assert.True(t, strings.HasPrefix(buf.String(), "# Compliance Report"), "non-terminal stdout gets raw markdown")
}

func TestParseObjectURL(t *testing.T) {
	bucket, key, err := ParseObjectURL("s3://reports/2026/03/compliance.md")
	require.NoError(t, err)
	assert.Equal(t, "reports", bucket)
	assert.Equal(t, "2026/03/compliance.md", key)

	for _, bad := range []string{"s3://bucket", "s3://bucket/", "s3:///key", "http://bucket/key"} {
		_, _, err := ParseObjectURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpen_ObjectRequiresEndpoint(t *testing.T) {
	_, err := Open("s3://reports/r.md", "", config.StorageConfig{})
	assert.ErrorIs(t, err, config.ErrConfiguration)

	sink, err := Open("s3://reports/r.md", "", config.StorageConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/r.md", sink.String())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("a/b.json"))
	assert.Equal(t, "text/markdown; charset=utf-8", contentType("r.md"))
	assert.Equal(t, "text/plain; charset=utf-8", contentType("r.txt"))
}
