package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/jobs/coordinator"
	"github.com/yungbote/illumyn-backend/internal/jobs/lease"
	"github.com/yungbote/illumyn-backend/internal/observability"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type Config struct {
	FastWorkers    int
	HeavyWorkers   int
	AttemptTimeout time.Duration
	LeaseTTL       time.Duration
	SweepInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		FastWorkers:    4,
		HeavyWorkers:   2,
		AttemptTimeout: 90 * time.Second,
		LeaseTTL:       30 * time.Second,
		SweepInterval:  time.Minute,
	}
}

type Worker struct {
	log      *logger.Logger
	cfg      Config
	lanes    *Lanes
	coord    *coordinator.Coordinator
	leases   lease.Manager
	pipeline *Pipeline
}

func NewWorker(baseLog *logger.Logger, cfg Config, lanes *Lanes, coord *coordinator.Coordinator, leases lease.Manager, pipeline *Pipeline) *Worker {
	def := DefaultConfig()
	if cfg.FastWorkers < 1 {
		cfg.FastWorkers = def.FastWorkers
	}
	if cfg.HeavyWorkers < 1 {
		cfg.HeavyWorkers = def.HeavyWorkers
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		cfg:      cfg,
		lanes:    lanes,
		coord:    coord,
		leases:   leases,
		pipeline: pipeline,
	}
}

// Run recovers persisted work, then drains both lanes until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.coord.Recover(ctx); err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	w.log.Info("Starting job worker pool", "fast", w.cfg.FastWorkers, "heavy", w.cfg.HeavyWorkers)

	g, gctx := errgroup.WithContext(ctx)
	spawn := func(lane jobs.Lane, n int) {
		for i := 0; i < n; i++ {
			workerID := i + 1
			g.Go(func() error {
				w.runLoop(gctx, lane, workerID)
				return nil
			})
		}
	}
	spawn(jobs.LaneFast, w.cfg.FastWorkers)
	spawn(jobs.LaneHeavy, w.cfg.HeavyWorkers)
	g.Go(func() error {
		w.sweepLoop(gctx)
		return nil
	})
	err := g.Wait()
	w.lanes.Close()
	return err
}

func (w *Worker) runLoop(ctx context.Context, lane jobs.Lane, workerID int) {
	for {
		jobID, ok := w.lanes.Next(ctx, lane)
		if !ok {
			w.log.Info("Worker loop stopped", "lane", lane, "worker_id", workerID)
			return
		}
		w.process(ctx, lane, jobID)
	}
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.coord.Sweep(ctx); err != nil {
				w.log.Warn("job sweep failed", "error", err)
			}
		}
	}
}

// process runs one attempt of jobID under an exclusive lease.
func (w *Worker) process(ctx context.Context, lane jobs.Lane, jobID string) {
	l, err := w.leases.Acquire(ctx, jobID, w.cfg.LeaseTTL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, lease.ErrHeld) {
			w.log.Warn("lease acquire failed", "job_id", jobID, "error", err)
		}
		// The holder may be a superseded attempt about to give up. Try again
		// once its lease would have lapsed; Start drops the id if the job is
		// running elsewhere by then.
		w.lanes.EnqueueAfter(lane, jobID, w.cfg.LeaseTTL)
		return
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			w.log.Warn("lease release failed", "job_id", jobID, "error", err)
		}
	}()

	job, err := w.coord.Start(ctx, jobID, time.Now().Add(w.cfg.LeaseTTL))
	if errors.Is(err, coordinator.ErrNotRunnable) {
		return
	}
	if err != nil {
		w.log.Warn("job start failed", "job_id", jobID, "error", err)
		return
	}

	att := coordinator.AttemptOf(job)
	ctx, span := observability.StartSpan(ctx, "job.attempt",
		attribute.String("job.id", job.ID),
		attribute.String("job.lane", string(lane)),
		attribute.Int("job.attempt", job.Attempts),
	)
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
	defer cancel()
	renewDone := make(chan struct{})
	go w.renew(attemptCtx, cancel, l, att, renewDone)

	start := time.Now()
	blockID, runErr := w.safeRun(attemptCtx, job)
	cancel()
	<-renewDone

	// Outcome writes must land even when shutdown cancelled ctx.
	final := context.WithoutCancel(ctx)
	outcome := "succeeded"
	switch {
	case runErr == nil:
		if _, err := w.coord.Complete(final, att, blockID); err != nil {
			w.log.Warn("job complete failed", "job_id", job.ID, "error", err)
			outcome = "lost"
		}
	case errors.Is(runErr, errStopped):
		outcome = "cancelled"
	case errors.Is(runErr, apperrors.ErrConflict):
		// The job moved on without this attempt, e.g. the sweeper expired the lease.
		outcome = "lost"
		w.log.Warn("job attempt superseded", "job_id", job.ID, "error", runErr)
	default:
		cause := runErr
		if ctx.Err() != nil {
			cause = apperrors.Transient(fmt.Errorf("worker shutdown: %w", runErr))
		} else if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runErr, context.Canceled) {
			cause = apperrors.Transient(fmt.Errorf("attempt aborted (timeout %s): %w", w.cfg.AttemptTimeout, runErr))
		}
		span.RecordError(cause)
		out, err := w.coord.Fail(final, att, cause)
		if err != nil {
			w.log.Warn("job fail failed", "job_id", job.ID, "error", err)
			outcome = "lost"
		} else {
			outcome = string(out.State)
		}
	}
	observability.Current().ObserveAttempt(string(lane), outcome, time.Since(start))
}

// renew keeps the lease alive while the attempt runs. Losing either the lease
// or the job's attempt fence aborts the attempt, since another worker may take
// the job over.
func (w *Worker) renew(ctx context.Context, abort context.CancelFunc, l lease.Lease, att coordinator.Attempt, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(w.cfg.LeaseTTL/3, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.log.Warn("lease lost, aborting attempt", "job_id", att.JobID, "error", err)
				abort()
				return
			}
			err := w.coord.RenewLease(ctx, att, time.Now().Add(w.cfg.LeaseTTL))
			switch {
			case err == nil || ctx.Err() != nil:
			case errors.Is(err, apperrors.ErrConflict):
				w.log.Warn("attempt superseded, aborting", "job_id", att.JobID, "attempt", att.Number, "error", err)
				abort()
				return
			default:
				w.log.Warn("job lease renew failed", "job_id", att.JobID, "error", err)
			}
		}
	}
}

// safeRun turns a panic inside the pipeline into an internal failure of this
// job only.
func (w *Worker) safeRun(ctx context.Context, job *jobs.Job) (blockID uuid.UUID, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic",
				"job_id", job.ID,
				"lane", job.Lane,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = &panicError{Val: r}
		}
	}()
	return w.pipeline.Run(ctx, job)
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

func (e *panicError) Unwrap() error { return apperrors.ErrInternal }
