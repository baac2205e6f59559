package policystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Returned by Sink.Load when no snapshot has ever been saved.
var ErrNoSnapshot = errors.New("no policy snapshot")

// Durable location for serialized policy snapshots.
type Sink interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, raw []byte) error
}

// Stores the snapshot as a single JSON file on local disk.
type FileSink struct {
	Path string
}

var _ Sink = (*FileSink)(nil)

func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Load(ctx context.Context) ([]byte, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("reading policy snapshot: %w", err)
	}
	return raw, nil
}

// Writes to a temporary file in the same directory, then renames over the old snapshot, so a crash mid-write never leaves a truncated file behind.
func (s *FileSink) Save(ctx context.Context, raw []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary snapshot: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing policy snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing policy snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing policy snapshot: %w", err)
	}
	return nil
}
