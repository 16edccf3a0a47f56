// Package coordinator owns the job state machine. Every read-modify-write of a
// job runs under its fingerprint lock and a version CAS, and every committed
// change is published to the status broker before the lock is released, so
// subscribers observe transitions in order.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	jobrepo "github.com/yungbote/illumyn-backend/internal/data/repos/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/jobs/status"
	"github.com/yungbote/illumyn-backend/internal/learning/fingerprint"
	"github.com/yungbote/illumyn-backend/internal/observability"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

// Stage names reported on job events.
const (
	StageQueued     = "queued"
	StageParse      = "parse"
	StageSynthesize = "synthesize"
	StageValidate   = "validate"
	StageCommit     = "commit"
	StageRetrying   = "retrying"
	StageDone       = "done"
)

// ErrNotRunnable tells a worker to drop a dequeued id: the job is gone, already
// running elsewhere, terminal, or not yet due.
var ErrNotRunnable = errors.New("job not runnable")

// Queue is the lane scheduler the coordinator hands runnable jobs to.
// Implementations must not block.
type Queue interface {
	// Enqueue fails with ErrOverloaded when the lane is at its depth ceiling.
	Enqueue(lane jobs.Lane, jobID string) error
	// EnqueueAfter schedules a redelivery and bypasses the depth ceiling.
	EnqueueAfter(lane jobs.Lane, jobID string, delay time.Duration)
}

// Notifier fans job events out to requester dashboards.
type Notifier interface {
	JobCreated(requesterID string, ev jobs.StateEvent)
	JobProgress(requesterID string, ev jobs.StateEvent)
	JobFailed(requesterID string, ev jobs.StateEvent)
	JobDone(requesterID string, ev jobs.StateEvent)
}

type Config struct {
	FreshnessWindow time.Duration
	Retention       time.Duration
	Retry           RetryPolicy
	LockStripes     int
	SweepBatch      int
}

func DefaultConfig() Config {
	return Config{
		FreshnessWindow: 24 * time.Hour,
		Retention:       7 * 24 * time.Hour,
		Retry:           DefaultRetryPolicy(),
		LockStripes:     defaultStripes,
		SweepBatch:      500,
	}
}

type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

type Coordinator struct {
	log      *logger.Logger
	store    jobrepo.Store
	blocks   blocks.Repo
	broker   *status.Broker
	queue    Queue
	notifier Notifier
	locks    *keyLock
	cfg      Config
	now      func() time.Time
}

func New(log *logger.Logger, store jobrepo.Store, blockRepo blocks.Repo, broker *status.Broker, queue Queue, cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = def.FreshnessWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = def.SweepBatch
	}
	c := &Coordinator{
		log:    log.With("component", "JobCoordinator"),
		store:  store,
		blocks: blockRepo,
		broker: broker,
		queue:  queue,
		locks:  newKeyLock(cfg.LockStripes),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitResult is what a submitter gets back. Block is set only on a cache hit.
type SubmitResult struct {
	Job      *jobs.Job
	Block    *learning.Block
	Cached   bool
	Joined   bool
	WaiterID string
}

// Submit dedups req by fingerprint: it joins an active job, answers from a
// fresh cached block, or creates and enqueues a new run.
func (c *Coordinator) Submit(ctx context.Context, req learning.GenerationRequest) (SubmitResult, error) {
	fp := fingerprint.Of(req)
	unlock := c.locks.lock(fp)
	defer unlock()

	dbc := dbctx.New(ctx)
	now := c.clock()
	existing, err := c.load(dbc, fp)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return SubmitResult{}, err
	}
	if existing != nil {
		if existing.State.Active() {
			return c.join(dbc, existing, req.RequesterID, now)
		}
		res, ok, err := c.cached(dbc, existing, req.RequesterID, now)
		if err != nil || ok {
			return res, err
		}
	}
	return c.create(dbc, fp, existing, req, now)
}

func (c *Coordinator) join(dbc dbctx.Context, j *jobs.Job, requesterID string, now time.Time) (SubmitResult, error) {
	w := newWaiter(requesterID, now)
	j.Waiters = append(j.Waiters, w)
	addWatcher(j, requesterID)
	j.CancelRequested = false
	if err := c.save(dbc, j, now); err != nil {
		return SubmitResult{}, err
	}
	ev := jobs.EventFromJob(j)
	c.broker.Publish(ev)
	if c.notifier != nil {
		c.notifier.JobCreated(requesterID, ev)
	}
	c.log.Debug("joined active job", "job_id", j.ID, "requester_id", requesterID, "waiters", len(j.Waiters))
	return SubmitResult{Job: j, Joined: true, WaiterID: w.ID}, nil
}

func (c *Coordinator) cached(dbc dbctx.Context, j *jobs.Job, requesterID string, now time.Time) (SubmitResult, bool, error) {
	if j.State != jobs.StateSucceeded || j.BlockID == nil || j.FinishedAt == nil {
		return SubmitResult{}, false, nil
	}
	if now.Sub(*j.FinishedAt) >= c.cfg.FreshnessWindow {
		return SubmitResult{}, false, nil
	}
	b, err := c.blocks.Get(dbc, *j.BlockID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return SubmitResult{}, false, nil
	}
	if err != nil {
		return SubmitResult{}, false, fmt.Errorf("load cached block: %w", err)
	}
	if addWatcher(j, requesterID) {
		if err := c.save(dbc, j, now); err != nil {
			return SubmitResult{}, false, err
		}
	}
	observability.Current().IncCacheHit()
	return SubmitResult{Job: j, Block: b, Cached: true}, true, nil
}

func (c *Coordinator) create(dbc dbctx.Context, fp string, prev *jobs.Job, req learning.GenerationRequest, now time.Time) (SubmitResult, error) {
	w := newWaiter(req.RequesterID, now)
	j := &jobs.Job{
		ID:          fp,
		RunID:       uuid.New(),
		RequesterID: req.RequesterID,
		State:       jobs.StateQueued,
		Version:     1,
		Lane:        LaneFor(req),
		Stage:       StageQueued,
		Waiters:     datatypes.JSONSlice[jobs.Waiter]{w},
		Watchers:    datatypes.JSONSlice[string]{req.RequesterID},
		Request:     datatypes.NewJSONType(req),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var err error
	if prev != nil {
		j.Version = prev.Version + 1
		j.CreatedAt = prev.CreatedAt
		j.Watchers = append(datatypes.JSONSlice[string](nil), prev.Watchers...)
		addWatcher(j, req.RequesterID)
		err = c.store.Update(dbc, j, prev.Version)
	} else {
		err = c.store.Create(dbc, j)
		if errors.Is(err, apperrors.ErrConflict) {
			// Another instance created the job between our load and insert.
			return c.joinRival(dbc, fp, req, now)
		}
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("store job: %w", err)
	}
	if err := c.queue.Enqueue(j.Lane, j.ID); err != nil {
		if delErr := c.store.Delete(dbc, j.ID, j.Version); delErr != nil {
			c.log.Error("remove refused job failed", "job_id", j.ID, "error", delErr)
		}
		observability.Current().IncRejected(apperrors.KindOf(err))
		return SubmitResult{}, fmt.Errorf("enqueue %s job: %w", j.Lane, err)
	}
	observability.Current().IncTransition(string(j.Lane), string(j.State))
	c.emit(j, func(n Notifier, rid string, ev jobs.StateEvent) { n.JobCreated(rid, ev) })
	c.log.Info("job created", "job_id", j.ID, "run_id", j.RunID, "lane", j.Lane, "requester_id", j.RequesterID)
	return SubmitResult{Job: j, WaiterID: w.ID}, nil
}

// joinRival attaches the requester to a job another instance just created.
func (c *Coordinator) joinRival(dbc dbctx.Context, fp string, req learning.GenerationRequest, now time.Time) (SubmitResult, error) {
	rival, err := c.load(dbc, fp)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("store job: %w", err)
	}
	if rival.State.Active() {
		return c.join(dbc, rival, req.RequesterID, now)
	}
	res, ok, err := c.cached(dbc, rival, req.RequesterID, now)
	if err != nil || ok {
		return res, err
	}
	return SubmitResult{}, fmt.Errorf("store job: %w: job %s is %s", apperrors.ErrConflict, rival.ID, rival.State)
}

// Cancel removes every waiter requesterID holds on the job. When none remain a
// queued or retrying job is cancelled at once; a running job is flagged and
// stops at its next stage boundary.
func (c *Coordinator) Cancel(ctx context.Context, jobID, requesterID string) (*jobs.Job, error) {
	unlock := c.locks.lock(jobID)
	defer unlock()

	dbc := dbctx.New(ctx)
	j, err := c.load(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if !j.HasWaiter(requesterID) {
		return nil, fmt.Errorf("%w: no waiter for requester on job", apperrors.ErrNotFound)
	}
	if j.State.Terminal() {
		return j, fmt.Errorf("%w: job already %s", apperrors.ErrConflict, j.State)
	}
	kept := j.Waiters[:0]
	for _, w := range j.Waiters {
		if w.RequesterID != requesterID {
			kept = append(kept, w)
		}
	}
	j.Waiters = kept

	now := c.clock()
	finished := false
	if len(j.Waiters) == 0 {
		switch j.State {
		case jobs.StateQueued, jobs.StateRetrying:
			if err := c.finish(j, jobs.StateCancelled, apperrors.ErrCancelled, now); err != nil {
				return nil, err
			}
			finished = true
		case jobs.StateRunning:
			j.CancelRequested = true
		}
	}
	if err := c.save(dbc, j, now); err != nil {
		return nil, err
	}
	c.broker.Publish(jobs.EventFromJob(j))
	if finished {
		observability.Current().IncTransition(string(j.Lane), string(j.State))
	}
	c.log.Info("waiter cancelled", "job_id", j.ID, "requester_id", requesterID, "state", j.State, "cancel_requested", j.CancelRequested)
	return j, nil
}

// Get returns the current job snapshot.
func (c *Coordinator) Get(ctx context.Context, jobID string) (*jobs.Job, error) {
	return c.load(dbctx.New(ctx), jobID)
}

// Subscribe streams the job's state, current state first. The snapshot and the
// registration happen under the job lock so no transition slips between them.
func (c *Coordinator) Subscribe(ctx context.Context, jobID string) (*status.Subscription, error) {
	unlock := c.locks.lock(jobID)
	defer unlock()
	j, err := c.load(dbctx.New(ctx), jobID)
	if err != nil {
		return nil, err
	}
	return c.broker.Subscribe(ctx, jobs.EventFromJob(j)), nil
}

// Attempt names one attempt of a run. Start hands it out and every worker-side
// call carries it back; a call from any other attempt fails with ErrConflict.
type Attempt struct {
	JobID  string
	RunID  uuid.UUID
	Number int
}

// AttemptOf is the attempt a job snapshot returned by Start belongs to.
func AttemptOf(j *jobs.Job) Attempt {
	return Attempt{JobID: j.ID, RunID: j.RunID, Number: j.Attempts}
}

// Start moves a queued or due retrying job to running and opens a lease that
// expires at leaseUntil unless renewed.
func (c *Coordinator) Start(ctx context.Context, jobID string, leaseUntil time.Time) (*jobs.Job, error) {
	unlock := c.locks.lock(jobID)
	defer unlock()

	dbc := dbctx.New(ctx)
	j, err := c.load(dbc, jobID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrNotRunnable
	}
	if err != nil {
		return nil, err
	}
	now := c.clock()
	if j.State != jobs.StateQueued && j.State != jobs.StateRetrying {
		return nil, ErrNotRunnable
	}
	if j.State == jobs.StateRetrying && j.NextAttemptAt != nil && now.Before(*j.NextAttemptAt) {
		c.queue.EnqueueAfter(j.Lane, j.ID, j.NextAttemptAt.Sub(now))
		return nil, ErrNotRunnable
	}
	if err := checkTransition(j.State, jobs.StateRunning); err != nil {
		return nil, err
	}
	j.State = jobs.StateRunning
	j.Attempts++
	j.Stage = StageParse
	j.Progress = 0
	j.NextAttemptAt = nil
	lease := leaseUntil.UTC()
	j.LeaseExpiresAt = &lease
	if err := c.save(dbc, j, now); err != nil {
		return nil, err
	}
	observability.Current().IncTransition(string(j.Lane), string(j.State))
	c.emit(j, func(n Notifier, rid string, ev jobs.StateEvent) { n.JobProgress(rid, ev) })
	return j, nil
}

// Progress records the stage a running attempt reached.
func (c *Coordinator) Progress(ctx context.Context, a Attempt, stage string, pct int) error {
	return c.mutateRunning(ctx, a, func(j *jobs.Job, _ time.Time) (bool, error) {
		if j.Stage == stage && j.Progress == pct {
			return false, nil
		}
		j.Stage = stage
		j.Progress = clampPct(pct)
		return true, nil
	})
}

// RenewLease pushes the running attempt's lease out to until. It changes no
// visible state, so nothing is published.
func (c *Coordinator) RenewLease(ctx context.Context, a Attempt, until time.Time) error {
	unlock := c.locks.lock(a.JobID)
	defer unlock()

	dbc := dbctx.New(ctx)
	j, err := c.loadRunning(dbc, a)
	if err != nil {
		return err
	}
	lease := until.UTC()
	j.LeaseExpiresAt = &lease
	return c.save(dbc, j, c.clock())
}

// ShouldStop reports whether the running attempt lost every waiter and must
// stop at this yield point. When it returns true the job is already cancelled.
func (c *Coordinator) ShouldStop(ctx context.Context, a Attempt) (bool, error) {
	unlock := c.locks.lock(a.JobID)
	defer unlock()

	dbc := dbctx.New(ctx)
	j, err := c.loadRunning(dbc, a)
	if err != nil {
		return false, err
	}
	if !j.CancelRequested || len(j.Waiters) > 0 {
		return false, nil
	}
	now := c.clock()
	if err := c.finish(j, jobs.StateCancelled, apperrors.ErrCancelled, now); err != nil {
		return false, err
	}
	if err := c.save(dbc, j, now); err != nil {
		return false, err
	}
	observability.Current().IncTransition(string(j.Lane), string(j.State))
	c.broker.Publish(jobs.EventFromJob(j))
	c.log.Info("running job cancelled", "job_id", j.ID, "attempt", j.Attempts)
	return true, nil
}

// Complete marks the run succeeded with the committed block. A cancel flag
// raised after the backend answered does not undo the commit.
func (c *Coordinator) Complete(ctx context.Context, a Attempt, blockID uuid.UUID) (*jobs.Job, error) {
	unlock := c.locks.lock(a.JobID)
	defer unlock()

	dbc := dbctx.New(ctx)
	j, err := c.loadRunning(dbc, a)
	if err != nil {
		return nil, err
	}
	now := c.clock()
	if err := c.finish(j, jobs.StateSucceeded, nil, now); err != nil {
		return nil, err
	}
	id := blockID
	j.BlockID = &id
	j.Progress = 100
	j.CancelRequested = false
	if err := c.save(dbc, j, now); err != nil {
		return nil, err
	}
	observability.Current().IncTransition(string(j.Lane), string(j.State))
	c.emit(j, func(n Notifier, rid string, ev jobs.StateEvent) { n.JobDone(rid, ev) })
	c.log.Info("job succeeded", "job_id", j.ID, "block_id", blockID, "attempts", j.Attempts)
	return j, nil
}

// Outcome is the state a failed attempt moved the job to.
type Outcome struct {
	State   jobs.State
	RetryIn time.Duration
}

// Fail records a failed attempt. Transient causes within the retry budget move
// the job to retrying and schedule the next attempt; everything else is final.
func (c *Coordinator) Fail(ctx context.Context, a Attempt, cause error) (Outcome, error) {
	unlock := c.locks.lock(a.JobID)
	defer unlock()

	dbc := dbctx.New(ctx)
	j, err := c.loadRunning(dbc, a)
	if err != nil {
		return Outcome{}, err
	}
	now := c.clock()
	out, err := c.failLocked(j, cause, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := c.save(dbc, j, now); err != nil {
		return Outcome{}, err
	}
	c.afterFailure(j, out)
	return out, nil
}

func (c *Coordinator) failLocked(j *jobs.Job, cause error, now time.Time) (Outcome, error) {
	switch {
	case j.CancelRequested && len(j.Waiters) == 0:
		if err := c.finish(j, jobs.StateCancelled, apperrors.ErrCancelled, now); err != nil {
			return Outcome{}, err
		}
		return Outcome{State: j.State}, nil
	case apperrors.IsRetryable(cause) && c.cfg.Retry.ShouldRetry(j.Attempts):
		if err := checkTransition(j.State, jobs.StateRetrying); err != nil {
			return Outcome{}, err
		}
		delay := c.cfg.Retry.Delay(j.Attempts)
		next := now.Add(delay)
		j.State = jobs.StateRetrying
		j.Stage = StageRetrying
		j.NextAttemptAt = &next
		j.LeaseExpiresAt = nil
		j.LastError = cause.Error()
		j.ErrorKind = apperrors.KindOf(cause)
		return Outcome{State: j.State, RetryIn: delay}, nil
	default:
		if err := c.finish(j, jobs.StateFailed, cause, now); err != nil {
			return Outcome{}, err
		}
		return Outcome{State: j.State}, nil
	}
}

func (c *Coordinator) afterFailure(j *jobs.Job, out Outcome) {
	observability.Current().IncTransition(string(j.Lane), string(j.State))
	switch out.State {
	case jobs.StateRetrying:
		c.emit(j, func(n Notifier, rid string, ev jobs.StateEvent) { n.JobProgress(rid, ev) })
		c.queue.EnqueueAfter(j.Lane, j.ID, out.RetryIn)
		c.log.Warn("job attempt failed, retrying", "job_id", j.ID, "attempt", j.Attempts, "retry_in", out.RetryIn, "error", j.LastError)
	case jobs.StateFailed:
		c.emit(j, func(n Notifier, rid string, ev jobs.StateEvent) { n.JobFailed(rid, ev) })
		c.log.Warn("job failed", "job_id", j.ID, "attempt", j.Attempts, "kind", j.ErrorKind, "error", j.LastError)
	default:
		c.broker.Publish(jobs.EventFromJob(j))
		c.log.Info("running job cancelled", "job_id", j.ID, "attempt", j.Attempts)
	}
}

// SweepResult counts what one sweep changed.
type SweepResult struct {
	Expired int
	Deleted int
}

// Sweep requeues running jobs whose lease lapsed and deletes terminal jobs
// older than the retention window.
func (c *Coordinator) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	dbc := dbctx.New(ctx)
	now := c.clock()

	expired, err := c.store.ListExpiredLeases(dbc, now)
	if err != nil {
		return res, fmt.Errorf("list expired leases: %w", err)
	}
	for _, stale := range expired {
		ok, err := c.expireLease(dbc, stale.ID)
		if err != nil {
			c.log.Warn("expire lease failed", "job_id", stale.ID, "error", err)
			continue
		}
		if ok {
			res.Expired++
		}
	}

	cutoff := now.Add(-c.cfg.Retention)
	old, err := c.store.ListFinishedBefore(dbc, cutoff, c.cfg.SweepBatch)
	if err != nil {
		return res, fmt.Errorf("list finished jobs: %w", err)
	}
	for _, j := range old {
		ok, err := c.deleteFinished(dbc, j.ID, cutoff)
		if err != nil {
			c.log.Warn("delete finished job failed", "job_id", j.ID, "error", err)
			continue
		}
		if ok {
			res.Deleted++
		}
	}
	if res.Expired > 0 || res.Deleted > 0 {
		c.log.Info("job sweep", "expired", res.Expired, "deleted", res.Deleted)
	}
	return res, nil
}

func (c *Coordinator) expireLease(dbc dbctx.Context, jobID string) (bool, error) {
	unlock := c.locks.lock(jobID)
	defer unlock()

	j, err := c.load(dbc, jobID)
	if err != nil {
		return false, err
	}
	now := c.clock()
	if j.State != jobs.StateRunning || j.LeaseExpiresAt == nil || j.LeaseExpiresAt.After(now) {
		return false, nil
	}
	cause := apperrors.Transient(errors.New("worker lease expired"))
	out, err := c.failLocked(j, cause, now)
	if err != nil {
		return false, err
	}
	if err := c.save(dbc, j, now); err != nil {
		return false, err
	}
	c.afterFailure(j, out)
	return true, nil
}

func (c *Coordinator) deleteFinished(dbc dbctx.Context, jobID string, cutoff time.Time) (bool, error) {
	unlock := c.locks.lock(jobID)
	defer unlock()

	j, err := c.load(dbc, jobID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !j.State.Terminal() || j.FinishedAt == nil || !j.FinishedAt.Before(cutoff) {
		return false, nil
	}
	if err := c.store.Delete(dbc, j.ID, j.Version); err != nil {
		return false, err
	}
	return true, nil
}

// Recover hands every queued or retrying job back to the lanes after a restart.
// Redelivery bypasses the depth ceiling; retrying jobs keep their due time.
func (c *Coordinator) Recover(ctx context.Context) (int, error) {
	active, err := c.store.ListActive(dbctx.New(ctx))
	if err != nil {
		return 0, fmt.Errorf("list active jobs: %w", err)
	}
	now := c.clock()
	for _, j := range active {
		var delay time.Duration
		if j.State == jobs.StateRetrying && j.NextAttemptAt != nil {
			delay = max(j.NextAttemptAt.Sub(now), 0)
		}
		c.queue.EnqueueAfter(j.Lane, j.ID, delay)
	}
	if len(active) > 0 {
		c.log.Info("recovered active jobs", "count", len(active))
	}
	return len(active), nil
}

// LaneFor routes course builds to the heavy lane. Duration only scales the
// prompt's size targets within a format, so it does not move a job between
// lanes: a long block is still one backend call, a short course is not.
func LaneFor(req learning.GenerationRequest) jobs.Lane {
	if req.Heavy() {
		return jobs.LaneHeavy
	}
	return jobs.LaneFast
}

func (c *Coordinator) mutateRunning(ctx context.Context, a Attempt, fn func(*jobs.Job, time.Time) (bool, error)) error {
	unlock := c.locks.lock(a.JobID)
	defer unlock()

	dbc := dbctx.New(ctx)
	j, err := c.loadRunning(dbc, a)
	if err != nil {
		return err
	}
	now := c.clock()
	changed, err := fn(j, now)
	if err != nil || !changed {
		return err
	}
	if err := c.save(dbc, j, now); err != nil {
		return err
	}
	c.emit(j, func(n Notifier, rid string, ev jobs.StateEvent) { n.JobProgress(rid, ev) })
	return nil
}

func (c *Coordinator) load(dbc dbctx.Context, jobID string) (*jobs.Job, error) {
	j, err := c.store.Get(dbc, jobID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load job: %w", err)
	}
	return j, nil
}

// loadRunning fails with ErrConflict when the job moved on without attempt a,
// for example after its lease expired and a later attempt took over. Retries
// keep the run id, so the attempt number is part of the fence.
func (c *Coordinator) loadRunning(dbc dbctx.Context, a Attempt) (*jobs.Job, error) {
	j, err := c.load(dbc, a.JobID)
	if err != nil {
		return nil, err
	}
	if j.RunID != a.RunID || j.Attempts != a.Number || j.State != jobs.StateRunning {
		return nil, fmt.Errorf("%w: job %s is %s at attempt %d, not attempt %d", apperrors.ErrConflict, j.ID, j.State, j.Attempts, a.Number)
	}
	return j, nil
}

func (c *Coordinator) save(dbc dbctx.Context, j *jobs.Job, now time.Time) error {
	prev := j.Version
	j.Version++
	j.UpdatedAt = now
	if err := c.store.Update(dbc, j, prev); err != nil {
		j.Version = prev
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (c *Coordinator) finish(j *jobs.Job, to jobs.State, cause error, now time.Time) error {
	if err := checkTransition(j.State, to); err != nil {
		return err
	}
	j.State = to
	j.Stage = StageDone
	j.LeaseExpiresAt = nil
	j.NextAttemptAt = nil
	finished := now
	j.FinishedAt = &finished
	switch {
	case to == jobs.StateCancelled:
		j.LastError = ""
		j.ErrorKind = apperrors.KindCancelled
	case cause != nil:
		j.LastError = cause.Error()
		j.ErrorKind = apperrors.KindOf(cause)
	default:
		j.LastError = ""
		j.ErrorKind = ""
	}
	return nil
}

// emit publishes j to the broker and notifies each distinct waiter.
func (c *Coordinator) emit(j *jobs.Job, notify func(Notifier, string, jobs.StateEvent)) {
	ev := jobs.EventFromJob(j)
	c.broker.Publish(ev)
	if c.notifier == nil {
		return
	}
	for _, rid := range requesters(j) {
		notify(c.notifier, rid, ev)
	}
}

func (c *Coordinator) clock() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

func requesters(j *jobs.Job) []string {
	seen := make(map[string]struct{}, len(j.Waiters))
	out := make([]string, 0, len(j.Waiters))
	for _, w := range j.Waiters {
		if _, ok := seen[w.RequesterID]; ok {
			continue
		}
		seen[w.RequesterID] = struct{}{}
		out = append(out, w.RequesterID)
	}
	return out
}

func newWaiter(requesterID string, now time.Time) jobs.Waiter {
	return jobs.Waiter{ID: uuid.NewString(), RequesterID: requesterID, AddedAt: now}
}

// addWatcher records requesterID as allowed to read the job; it reports
// whether the list changed.
func addWatcher(j *jobs.Job, requesterID string) bool {
	for _, w := range j.Watchers {
		if w == requesterID {
			return false
		}
	}
	j.Watchers = append(j.Watchers, requesterID)
	return true
}

func clampPct(p int) int {
	return min(max(p, 0), 100)
}
