package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"store-uptime/internal/models"
)

var (
	ErrJobNotFound   = errors.New("report job not found")
	ErrJobNotRunning = errors.New("report job already finished")
)

// Store wraps pgxpool for Postgres persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// StoreObservations returns every status poll recorded for a store.
func (s *Store) StoreObservations(ctx context.Context, storeID string) ([]models.Observation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, timestamp_utc FROM store_status WHERE store_id = $1
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var status string
		var ts time.Time
		if err := rows.Scan(&status, &ts); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		st, err := models.ParseStoreStatus(status)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Observation{StoreID: storeID, Timestamp: ts.UTC(), Status: st})
	}
	return out, rows.Err()
}

// StoreBusinessHours returns a store's configured windows ordered by day, then
// insertion order.
func (s *Store) StoreBusinessHours(ctx context.Context, storeID string) ([]models.BusinessHours, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, start_time_local, end_time_local
		FROM business_hours WHERE store_id = $1
		ORDER BY day, id
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("query business hours: %w", err)
	}
	defer rows.Close()

	var out []models.BusinessHours
	for rows.Next() {
		var day int16
		var start, end pgtype.Time
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, fmt.Errorf("scan business hours: %w", err)
		}
		out = append(out, models.BusinessHours{
			StoreID: storeID,
			Day:     models.Weekday(day),
			Window:  models.Window{Start: clockFromTime(start), End: clockFromTime(end)},
		})
	}
	return out, rows.Err()
}

// StoreTimezone returns the first zone recorded for a store.
func (s *Store) StoreTimezone(ctx context.Context, storeID string) (string, bool, error) {
	var zone string
	err := s.pool.QueryRow(ctx, `
		SELECT timezone FROM store_timezones WHERE store_id = $1 ORDER BY id LIMIT 1
	`, storeID).Scan(&zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query timezone: %w", err)
	}
	return zone, true, nil
}

// ListStoreIDs returns every store id present in any source table.
func (s *Store) ListStoreIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT store_id FROM store_status
		UNION SELECT store_id FROM business_hours
		UNION SELECT store_id FROM store_timezones
		ORDER BY store_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan store id: %w", err)
	}
	return ids, nil
}

// CreateJob inserts a new report job in the Running state.
func (s *Store) CreateJob(ctx context.Context) (models.Job, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	id := uuid.New().String()
	now := time.Now().UTC()

	if _, err := tx.Exec(ctx, `
		INSERT INTO report_jobs (id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
	`, id, string(models.JobRunning), now); err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO report_job_events (job_id, event, detail, ts) VALUES ($1, $2, '', $3)
	`, id, models.EventCreated, now); err != nil {
		return models.Job{}, fmt.Errorf("insert job event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Job{}, fmt.Errorf("commit: %w", err)
	}

	return models.Job{ID: id, Status: models.JobRunning, CreatedAt: now, UpdatedAt: now}, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	var job models.Job
	var status string
	var lastErr pgtype.Text
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, status, last_error, created_at, updated_at
		FROM report_jobs WHERE id = $1
	`, id).Scan(&job.ID, &status, &lastErr, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, ErrJobNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}
	if job.Status, err = models.ParseJobStatus(status); err != nil {
		return models.Job{}, err
	}
	job.LastError = textPtr(lastErr)
	return job, nil
}

// FinishJob moves a Running job to a terminal status. Both outcomes update the
// same columns; a job that is no longer Running is left untouched.
func (s *Store) FinishJob(ctx context.Context, id string, status models.JobStatus, lastErr *string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish job: %q is not a terminal status", status)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, string(status), lastErr, string(models.JobRunning))
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return ErrJobNotRunning
}

// AppendEvent adds an audit row.
func (s *Store) AppendEvent(ctx context.Context, jobID, event, detail string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO report_job_events (job_id, event, detail, ts)
		VALUES ($1, $2, $3, NOW())
	`, jobID, event, detail)
	return err
}

// ListEvents returns a job's audit trail in insertion order.
func (s *Store) ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT job_id::text, event, detail, ts FROM report_job_events
		WHERE job_id = $1 ORDER BY id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job events: %w", err)
	}
	defer rows.Close()

	var out []models.JobEvent
	for rows.Next() {
		var e models.JobEvent
		if err := rows.Scan(&e.JobID, &e.Event, &e.Detail, &e.Recorded); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func clockFromTime(t pgtype.Time) models.Clock {
	return models.Clock(time.Duration(t.Microseconds) * time.Microsecond)
}

func timeFromClock(c models.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: time.Duration(c).Microseconds(), Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
