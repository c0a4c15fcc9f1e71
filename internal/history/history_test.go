package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 10, 0, 0, 123, time.UTC)

	want := Run{
		ID:          "run-a",
		StartedAt:   start,
		FinishedAt:  start.Add(42 * time.Second),
		Provider:    "openai",
		Model:       "gpt-4o",
		Principles:  []string{"Debugging", "Security"},
		Snippets:    3,
		Invocations: 13,
		Failures:    1,
		Destination: "compliance_report.md",
		Status:      StatusOK,
	}
	require.NoError(t, s.Record(ctx, want))

	got, err := s.Get(ctx, "run-a")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 42*time.Second, got.Duration())
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Record(ctx, Run{
			ID:         id,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			Provider:   "ollama",
			Model:      "llama3",
			Status:     StatusOK,
		}))
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "second", runs[1].ID)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecord_ReplacesSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	r := Run{ID: "x", StartedAt: now, FinishedAt: now, Provider: "p", Model: "m", Status: StatusFailed, Error: "boom"}
	require.NoError(t, s.Record(ctx, r))
	r.Status, r.Error = StatusOK, ""
	require.NoError(t, s.Record(ctx, r))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusOK, runs[0].Status)
	assert.Nil(t, runs[0].Principles)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, s.Record(context.Background(), Run{ID: "keep", StartedAt: now, FinishedAt: now, Provider: "p", Model: "m", Status: StatusOK}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(context.Background(), "keep")
	assert.NoError(t, err)
}

func TestOpen_DriverError(t *testing.T) {
	orig := openDB
	openDB = func(driver, dsn string) (*sql.DB, error) { return nil, errors.New("no driver") }
	defer func() { openDB = orig }()

	_, err := Open(filepath.Join(t.TempDir(), "h.db"))
	assert.ErrorContains(t, err, "no driver")
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "dawn", "history.db"), p)
}
