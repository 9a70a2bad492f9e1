package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "dumpkeep/internal/errors"
)

// Local copies artifacts into a directory on the local filesystem (or a
// mounted network share).
type Local struct {
	baseDir string
}

func NewLocal(baseDir string) *Local {
	if baseDir == "" {
		baseDir = "./"
	}
	return &Local{baseDir: baseDir}
}

func (s *Local) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.baseDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeResource, "failed to create directory", "Check permissions on the destination directory.")
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeResource, "failed to create temp file", "Check permissions and free space on the destination.")
	}
	defer os.Remove(tmpPath) // Cleanup if we fail

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to finalize file (rename): %w", err)
	}

	return path, nil
}

func (s *Local) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "destination directory not writable", "Check permissions on "+s.baseDir+".")
	}
	return nil
}

func (s *Local) Location() string {
	return s.baseDir
}

func (s *Local) Close() error {
	return nil
}
