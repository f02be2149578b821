package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"store-uptime/internal/models"
)

// LocalSink writes reports under a base directory.
type LocalSink struct {
	baseDir string
}

func NewLocalSink(baseDir string) *LocalSink {
	if baseDir == "" {
		baseDir = "./reports"
	}
	return &LocalSink{baseDir: baseDir}
}

func (l *LocalSink) path(jobID string) string {
	return filepath.Join(l.baseDir, ObjectName(jobID))
}

func (l *LocalSink) Put(_ context.Context, jobID string, rows []models.ReportRow) error {
	if err := os.MkdirAll(l.baseDir, 0o755); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	f, err := os.Create(l.path(jobID))
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	return nil
}

func (l *LocalSink) Open(_ context.Context, jobID string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(jobID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}
	return f, nil
}
