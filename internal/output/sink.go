package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSink writes documents to a local file. The file is replaced
// atomically, so a failed write never leaves a partial report behind.
type FileSink struct {
	Path   string
	Writer Writer
}

func (f *FileSink) Put(ctx context.Context, doc *Document) error {
	var buf bytes.Buffer
	if err := f.Writer.Write(&buf, doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFileAtomic(f.Path, buf.Bytes(), 0o644)
}

func (f *FileSink) String() string { return f.Path }

// StreamSink writes documents to an io.Writer such as stdout.
type StreamSink struct {
	Out    io.Writer
	Writer Writer
	Name   string
}

func (s *StreamSink) Put(ctx context.Context, doc *Document) error {
	var buf bytes.Buffer
	if err := s.Writer.Write(&buf, doc); err != nil {
		return err
	}
	_, err := s.Out.Write(buf.Bytes())
	return err
}

func (s *StreamSink) String() string { return s.Name }

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}
