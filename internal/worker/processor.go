package worker

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"store-uptime/internal/config"
	"store-uptime/internal/report"
	"store-uptime/internal/telemetry"
)

var errLeaseExpired = errors.New("lease expired before the report finished")

// JobQueue is the subset of queue.RedisQueue the worker needs.
type JobQueue interface {
	DequeueWithLease(ctx context.Context) (string, error)
	ExtendLease(ctx context.Context, jobID string) error
	LeaseUntil(ctx context.Context, jobID string, deadline time.Time) error
	Ack(ctx context.Context, jobID string) error
	ClaimExpired(ctx context.Context, now time.Time, limit int64) ([]string, error)
	ReadyDepth(ctx context.Context) (int64, error)
}

// JobRunner executes and finalizes report jobs.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, cause error) error
}

// Processor drives the worker execution loops.
type Processor struct {
	cfg    config.Config
	queue  JobQueue
	runner JobRunner
	log    *zap.Logger
}

func NewProcessor(cfg config.Config, q JobQueue, runner JobRunner, log *zap.Logger) *Processor {
	return &Processor{cfg: cfg, queue: q, runner: runner, log: log}
}

// Run starts cfg.WorkerConcurrency consumers plus a lease reaper and blocks
// until ctx is cancelled. Jobs already started are allowed to finish.
func (p *Processor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < max(1, p.cfg.WorkerConcurrency); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.consume(ctx, i)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reapLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

func (p *Processor) consume(ctx context.Context, slot int) {
	log := p.log.With(zap.Int("slot", slot))
	idle := 0
	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := p.queue.DequeueWithLease(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warn("dequeue failed", zap.Error(err))
		}
		if err != nil || jobID == "" {
			idle++
			if !sleepCtx(ctx, backoffWithJitter(p.cfg.WorkerPollInterval, p.cfg.WorkerPollMax, idle)) {
				return
			}
			continue
		}
		idle = 0
		p.process(ctx, jobID)
	}
}

// process runs one job to a terminal state. The run ignores cancellation of
// ctx; the lease is kept alive while it runs. A job whose terminal status
// could not be written keeps its lease so the reaper fails it later.
func (p *Processor) process(ctx context.Context, jobID string) {
	log := p.log.With(zap.String("job_id", jobID))
	runCtx := context.WithoutCancel(ctx)

	done := make(chan struct{})
	go p.keepLease(runCtx, jobID, done)

	err := p.runner.Run(runCtx, jobID)
	close(done)
	if errors.Is(err, report.ErrStatusNotRecorded) {
		log.Warn("job status not recorded, leaving lease to expire", zap.Error(err))
		return
	}
	if err != nil {
		log.Warn("report job did not complete", zap.Error(err))
	}

	if err := p.queue.Ack(runCtx, jobID); err != nil {
		log.Warn("ack failed", zap.Error(err))
	}
}

func (p *Processor) keepLease(ctx context.Context, jobID string, done <-chan struct{}) {
	interval := p.cfg.VisibilityTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.queue.ExtendLease(ctx, jobID); err != nil {
				p.log.Warn("extend lease failed", zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}
}

func (p *Processor) reapLoop(ctx context.Context) {
	interval := p.cfg.VisibilityTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.reap(ctx, time.Now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reap fails jobs whose worker stopped renewing its lease. They are not re-run.
func (p *Processor) reap(ctx context.Context, now time.Time) {
	if depth, err := p.queue.ReadyDepth(ctx); err == nil {
		telemetry.QueueDepthGauge.Set(float64(depth))
	}
	ids, err := p.queue.ClaimExpired(ctx, now, 100)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("claim expired leases", zap.Error(err))
		}
		return
	}
	for _, id := range ids {
		telemetry.LeasesExpired.Inc()
		err := p.runner.Fail(ctx, id, errLeaseExpired)
		if !errors.Is(err, report.ErrStatusNotRecorded) {
			continue
		}
		p.log.Warn("expired job not failed, retrying next pass", zap.String("job_id", id), zap.Error(err))
		if err := p.queue.LeaseUntil(ctx, id, now); err != nil {
			p.log.Error("re-lease expired job", zap.String("job_id", id), zap.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoffWithJitter grows the idle poll delay while the queue stays empty.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if exp > float64(max) {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait/2) + 1))
	return wait/2 + jitter
}
