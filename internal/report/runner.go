package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"store-uptime/internal/artifact"
	"store-uptime/internal/models"
	"store-uptime/internal/store"
	"store-uptime/internal/telemetry"
	"store-uptime/internal/uptime"
)

// ErrStatusNotRecorded marks a run whose terminal status could not be
// written. The job is still Running and must be left to lease expiry.
var ErrStatusNotRecorded = errors.New("terminal job status not recorded")

// StoreLister enumerates every store known to the system.
type StoreLister interface {
	ListStoreIDs(ctx context.Context) ([]string, error)
}

// ObservationFilter yields a store's observations inside business hours.
type ObservationFilter interface {
	Observations(ctx context.Context, storeID string) ([]models.Observation, error)
}

// JobStore records job outcomes.
type JobStore interface {
	FinishJob(ctx context.Context, id string, status models.JobStatus, lastErr *string) error
	AppendEvent(ctx context.Context, jobID, event, detail string) error
}

// Options tune a Runner.
type Options struct {
	// Now returns the instant the trailing windows end at. Defaults to time.Now.
	Now func() time.Time
	// Parallelism bounds how many stores are computed at once.
	Parallelism int
}

// Runner produces the uptime report for one job and drives it to a terminal status.
type Runner struct {
	stores      StoreLister
	filter      ObservationFilter
	sink        artifact.Sink
	jobs        JobStore
	now         func() time.Time
	parallelism int
	log         *zap.Logger
}

func NewRunner(stores StoreLister, filter ObservationFilter, sink artifact.Sink, jobs JobStore, log *zap.Logger, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Runner{
		stores:      stores,
		filter:      filter,
		sink:        sink,
		jobs:        jobs,
		now:         opts.Now,
		parallelism: opts.Parallelism,
		log:         log,
	}
}

// Run computes one row per store, writes the artifact and marks the job
// Completed. Any failure to list stores or write the artifact marks the job
// Failed; the returned error is the cause. Jobs are never retried here.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	log := r.log.With(zap.String("job_id", jobID))
	started := time.Now()
	now := r.now()

	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	r.event(ctx, log, jobID, models.EventStarted, "as_of="+now.Format(time.RFC3339Nano))
	log.Info("report started", zap.Time("as_of", now))

	rows, err := r.rows(ctx, log, jobID, now)
	if err == nil {
		if err = r.sink.Put(ctx, jobID, rows); err != nil {
			err = fmt.Errorf("write report artifact: %w", err)
		}
	}
	if err != nil {
		return r.fail(ctx, log, jobID, err)
	}

	if err := r.jobs.FinishJob(ctx, jobID, models.JobCompleted, nil); err != nil {
		if errors.Is(err, store.ErrJobNotRunning) {
			log.Warn("job finished elsewhere before completion was recorded", zap.Error(err))
			return fmt.Errorf("mark job completed: %w", err)
		}
		return r.fail(ctx, log, jobID, fmt.Errorf("mark job completed: %w", err))
	}
	r.event(ctx, log, jobID, models.EventCompleted, fmt.Sprintf("rows=%d", len(rows)))
	telemetry.ReportsCompleted.Inc()
	telemetry.ReportDuration.Observe(time.Since(started).Seconds())
	log.Info("report completed", zap.Int("rows", len(rows)), zap.Duration("took", time.Since(started)))
	return nil
}

// Fail marks a Running job Failed without computing it. A job that is already
// terminal is left as is and no failure is recorded.
func (r *Runner) Fail(ctx context.Context, jobID string, cause error) error {
	return r.fail(ctx, r.log.With(zap.String("job_id", jobID)), jobID, cause)
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, jobID string, cause error) error {
	msg := cause.Error()
	if err := r.jobs.FinishJob(ctx, jobID, models.JobFailed, &msg); err != nil {
		if errors.Is(err, store.ErrJobNotRunning) {
			log.Debug("job already terminal, failure not recorded", zap.NamedError("cause", cause))
			return cause
		}
		log.Error("mark job failed", zap.NamedError("cause", cause), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStatusNotRecorded, cause)
	}
	log.Error("report failed", zap.Error(cause))
	r.event(ctx, log, jobID, models.EventFailed, msg)
	telemetry.ReportsFailed.Inc()
	return cause
}

func (r *Runner) rows(ctx context.Context, log *zap.Logger, jobID string, now time.Time) ([]models.ReportRow, error) {
	ids, err := r.stores.ListStoreIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	results := make([]models.ReportRow, len(ids))
	ok := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			row, err := r.storeRow(ctx, id, now)
			if err != nil {
				log.Warn("store skipped", zap.String("store_id", id), zap.Error(err))
				r.event(ctx, log, jobID, models.EventStoreSkipped, fmt.Sprintf("store_id=%s err=%v", id, err))
				telemetry.StoresSkipped.Inc()
				return nil
			}
			results[i], ok[i] = row, true
			telemetry.StoresProcessed.Inc()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("report interrupted: %w", err)
	}

	rows := make([]models.ReportRow, 0, len(ids))
	for i := range results {
		if ok[i] {
			rows = append(rows, results[i])
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StoreID < rows[j].StoreID })
	return rows, nil
}

func (r *Runner) storeRow(ctx context.Context, storeID string, now time.Time) (row models.ReportRow, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic computing store %s: %v", storeID, p)
		}
	}()
	obs, err := r.filter.Observations(ctx, storeID)
	if err != nil {
		return models.ReportRow{}, err
	}
	row = uptime.Extrapolate(obs, now)
	row.StoreID = storeID
	return row, nil
}

func (r *Runner) event(ctx context.Context, log *zap.Logger, jobID, event, detail string) {
	if err := r.jobs.AppendEvent(ctx, jobID, event, detail); err != nil {
		log.Warn("append job event", zap.String("event", event), zap.Error(err))
	}
}
