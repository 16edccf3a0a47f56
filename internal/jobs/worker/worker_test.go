package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	jobrepo "github.com/yungbote/illumyn-backend/internal/data/repos/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/jobs/coordinator"
	"github.com/yungbote/illumyn-backend/internal/jobs/lease"
	"github.com/yungbote/illumyn-backend/internal/jobs/status"
	"github.com/yungbote/illumyn-backend/internal/learning/content"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/platform/offline"
)

// scriptedGen delegates to the offline backend unless behave intercepts the call.
type scriptedGen struct {
	calls  atomic.Int32
	behave func(call int, ctx context.Context) error
	last   atomic.Pointer[learning.StructuredPayload]
}

func (g *scriptedGen) Name() string { return "scripted" }

func (g *scriptedGen) Generate(ctx context.Context, in learning.GenerateInput) (learning.StructuredPayload, error) {
	call := int(g.calls.Add(1))
	if g.behave != nil {
		if err := g.behave(call, ctx); err != nil {
			return learning.StructuredPayload{}, err
		}
	}
	out, err := offline.New().Generate(ctx, in)
	if err == nil {
		g.last.Store(&out)
	}
	return out, err
}

type env struct {
	coord  *coordinator.Coordinator
	blocks *blocks.MemoryRepo
	lanes  *Lanes
	gen    *scriptedGen
	leases *lease.Table
	worker *Worker
}

func newEnv(t *testing.T, gen *scriptedGen, attemptTimeout time.Duration) *env {
	t.Helper()
	log := logger.Nop()
	store := jobrepo.NewMemoryStore()
	blockRepo := blocks.NewMemoryRepo()
	lanes := NewLanes(8, 8)
	cfg := coordinator.DefaultConfig()
	cfg.Retry = coordinator.RetryPolicy{MaxRetries: 3, Base: time.Millisecond, Cap: 5 * time.Millisecond}
	coord := coordinator.New(log, store, blockRepo, status.NewBroker(log), lanes, cfg)
	pipeline := NewPipeline(log, coord, gen, nil, blockRepo)
	leases := lease.NewTable()
	w := NewWorker(log, Config{
		FastWorkers:    2,
		HeavyWorkers:   1,
		AttemptTimeout: attemptTimeout,
		LeaseTTL:       time.Second,
		SweepInterval:  time.Hour,
	}, lanes, coord, leases, pipeline)
	return &env{coord: coord, blocks: blockRepo, lanes: lanes, gen: gen, leases: leases, worker: w}
}

func (e *env) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.worker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (e *env) await(t *testing.T, jobID string) jobs.StateEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub, err := e.coord.Subscribe(ctx, jobID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var last jobs.StateEvent
	for ev := range sub.C {
		last = ev
	}
	if !last.State.Terminal() {
		t.Fatalf("job %s did not finish, last state %s", jobID, last.State)
	}
	return last
}

func photosynthesis() learning.GenerationRequest {
	return learning.GenerationRequest{
		RequesterID: "user-1",
		Topic:       "Photosynthesis",
		Format:      learning.FormatBlock,
		Duration:    learning.DurationShort,
		Focus:       learning.FocusBreadth,
		Difficulty:  learning.DifficultyBeginner,
	}
}

func TestScenarioBlockSucceedsAndLeadsFeed(t *testing.T) {
	e := newEnv(t, &scriptedGen{}, time.Second)
	e.run(t)
	ctx := context.Background()

	res, err := e.coord.Submit(ctx, photosynthesis())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	final := e.await(t, res.Job.ID)
	if final.State != jobs.StateSucceeded || final.BlockID == nil || final.Attempts != 1 {
		t.Fatalf("unexpected final event %+v", final)
	}
	b, err := e.blocks.Get(dbctx.New(ctx), *final.BlockID)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	switch b.ContentType {
	case learning.ContentQuiz, learning.ContentPoll, learning.ContentReorder:
	default:
		t.Fatalf("unexpected content type %s", b.ContentType)
	}
	page, err := e.blocks.ListRecent(dbctx.New(ctx), 1, "")
	if err != nil || len(page.Blocks) != 1 || page.Blocks[0].ID != b.ID {
		t.Fatalf("new block should lead the feed, got %+v %v", page, err)
	}

	want, err := content.Validate(b.ContentType, *e.gen.last.Load())
	if err != nil {
		t.Fatalf("re-validate: %v", err)
	}
	if !bytes.Equal(b.Payload, want) {
		t.Fatalf("payload bytes changed on the way to storage")
	}
}

func TestScenarioConcurrentSubmitsGenerateOnce(t *testing.T) {
	gate := make(chan struct{})
	gen := &scriptedGen{behave: func(int, context.Context) error {
		<-gate
		return nil
	}}
	e := newEnv(t, gen, 5*time.Second)
	e.run(t)

	var wg sync.WaitGroup
	results := make([]coordinator.SubmitResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.coord.Submit(context.Background(), photosynthesis())
			if err != nil {
				t.Errorf("submit: %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()
	close(gate)
	if results[0].Job == nil || results[1].Job == nil || results[0].Job.ID != results[1].Job.ID {
		t.Fatalf("both callers should share one job")
	}
	final := e.await(t, results[0].Job.ID)
	if final.State != jobs.StateSucceeded {
		t.Fatalf("expected succeeded, got %s", final.State)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Fatalf("expected one backend call, got %d", n)
	}
	j, _ := e.coord.Get(context.Background(), results[1].Job.ID)
	if j.BlockID == nil || *j.BlockID != *final.BlockID {
		t.Fatalf("both waiters should see block %s", final.BlockID)
	}

	again, err := e.coord.Submit(context.Background(), photosynthesis())
	if err != nil || !again.Cached || again.Block.ID != *final.BlockID {
		t.Fatalf("fresh resubmit should be a cache hit, got %+v %v", again, err)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Fatalf("cache hit must not call the backend, calls=%d", n)
	}
}

func TestScenarioTimeoutsRetryThenSucceed(t *testing.T) {
	gen := &scriptedGen{behave: func(call int, ctx context.Context) error {
		if call <= 3 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}}
	e := newEnv(t, gen, 30*time.Millisecond)
	e.run(t)

	res, err := e.coord.Submit(context.Background(), photosynthesis())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	final := e.await(t, res.Job.ID)
	if final.State != jobs.StateSucceeded || final.Attempts != 4 {
		t.Fatalf("expected success on attempt 4, got %s after %d", final.State, final.Attempts)
	}
}

func TestRetryBoundEndsInFailure(t *testing.T) {
	gen := &scriptedGen{behave: func(int, context.Context) error {
		return apperrors.Transient(errors.New("upstream 503"))
	}}
	e := newEnv(t, gen, time.Second)
	e.run(t)

	res, _ := e.coord.Submit(context.Background(), photosynthesis())
	final := e.await(t, res.Job.ID)
	if final.State != jobs.StateFailed || final.Attempts != 4 || final.ErrorKind != apperrors.KindTransient {
		t.Fatalf("expected failed after 4 attempts, got %+v", final)
	}
	if n := gen.calls.Load(); n != 4 {
		t.Fatalf("backend calls = %d, want 4", n)
	}
}

func TestScenarioContentPolicyFailsWithoutRetry(t *testing.T) {
	gen := &scriptedGen{behave: func(int, context.Context) error {
		return fmt.Errorf("model refused: %w", apperrors.ErrContentPolicy)
	}}
	e := newEnv(t, gen, time.Second)
	e.run(t)

	res, _ := e.coord.Submit(context.Background(), photosynthesis())
	final := e.await(t, res.Job.ID)
	if final.State != jobs.StateFailed || final.Attempts != 1 || final.ErrorKind != apperrors.KindContentPolicy {
		t.Fatalf("expected immediate content-policy failure, got %+v", final)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Fatalf("backend calls = %d, want 1", n)
	}
}

func TestScenarioCancelWhileQueuedNeverGenerates(t *testing.T) {
	gen := &scriptedGen{}
	e := newEnv(t, gen, time.Second)
	ctx := context.Background()

	res, err := e.coord.Submit(ctx, photosynthesis())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	j, err := e.coord.Cancel(ctx, res.Job.ID, "user-1")
	if err != nil || j.State != jobs.StateCancelled {
		t.Fatalf("cancel: %v state=%v", err, j)
	}
	e.run(t)
	deadline := time.Now().Add(time.Second)
	for e.lanes.Len(jobs.LaneFast) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if n := gen.calls.Load(); n != 0 {
		t.Fatalf("cancelled job reached the backend %d times", n)
	}
	if final := e.await(t, res.Job.ID); final.State != jobs.StateCancelled {
		t.Fatalf("expected cancelled, got %s", final.State)
	}
}

func TestPanicFailsOnlyThatJob(t *testing.T) {
	gen := &scriptedGen{behave: func(call int, _ context.Context) error {
		if call == 1 {
			panic("boom")
		}
		return nil
	}}
	e := newEnv(t, gen, time.Second)
	e.run(t)
	ctx := context.Background()

	bad, _ := e.coord.Submit(ctx, photosynthesis())
	final := e.await(t, bad.Job.ID)
	if final.State != jobs.StateFailed || final.ErrorKind != apperrors.KindInternal {
		t.Fatalf("panicking job should fail as internal, got %+v", final)
	}

	other := photosynthesis()
	other.Topic = "Cell respiration"
	good, _ := e.coord.Submit(ctx, other)
	if final := e.await(t, good.Job.ID); final.State != jobs.StateSucceeded {
		t.Fatalf("next job should be unaffected, got %s", final.State)
	}
}

func TestBlockIDIsStablePerRun(t *testing.T) {
	e := newEnv(t, &scriptedGen{}, time.Second)
	e.run(t)
	res, _ := e.coord.Submit(context.Background(), photosynthesis())
	final := e.await(t, res.Job.ID)
	if *final.BlockID != BlockID(res.Job.RunID) {
		t.Fatalf("block id should derive from the run id")
	}
}

func TestStalledHolderDoesNotStrandRetry(t *testing.T) {
	e := newEnv(t, &scriptedGen{}, time.Second)
	ctx := context.Background()

	res, err := e.coord.Submit(ctx, photosynthesis())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	held, err := e.leases.Acquire(ctx, res.Job.ID, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	stalled, err := e.coord.Start(ctx, res.Job.ID, time.Now().Add(10*time.Millisecond))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	e.run(t)

	time.Sleep(20 * time.Millisecond)
	if out, err := e.coord.Sweep(ctx); err != nil || out.Expired != 1 {
		t.Fatalf("sweep = %+v, %v", out, err)
	}
	deadline := time.Now().Add(time.Second)
	for (e.lanes.Len(jobs.LaneFast) > 0 || e.lanes.Pending() == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := e.coord.Complete(ctx, coordinator.AttemptOf(stalled), BlockID(stalled.RunID)); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("stalled attempt should be fenced out, got %v", err)
	}
	if err := held.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	final := e.await(t, res.Job.ID)
	if final.State != jobs.StateSucceeded || final.Attempts != 2 {
		t.Fatalf("expected success on attempt 2, got %s after %d", final.State, final.Attempts)
	}
	if n := e.gen.calls.Load(); n != 1 {
		t.Fatalf("backend calls = %d, want 1", n)
	}
}
