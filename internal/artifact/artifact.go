package artifact

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"

	"store-uptime/internal/models"
)

// ErrNotFound is returned by Open when no artifact exists for a job.
var ErrNotFound = errors.New("report artifact not found")

// Sink stores and retrieves report CSVs keyed by job id.
type Sink interface {
	Put(ctx context.Context, jobID string, rows []models.ReportRow) error
	Open(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// ObjectName is the file name of a job's report.
func ObjectName(jobID string) string {
	return fmt.Sprintf("report_%s.csv", path.Base(jobID))
}

// WriteCSV writes the header and one record per row.
func WriteCSV(w io.Writer, rows []models.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.ReportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write row %s: %w", r.StoreID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
