package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	jobrepo "github.com/yungbote/illumyn-backend/internal/data/repos/jobs"
	"github.com/yungbote/illumyn-backend/internal/data/repos/testutil"
	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/jobs/coordinator"
	"github.com/yungbote/illumyn-backend/internal/jobs/status"
	"github.com/yungbote/illumyn-backend/internal/learning/normalize"
	"github.com/yungbote/illumyn-backend/internal/learning/ranking"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	"github.com/yungbote/illumyn-backend/internal/platform/ctxutil"
	"github.com/yungbote/illumyn-backend/internal/platform/docstore"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

const tinyPDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

type nopQueue struct{}

func (nopQueue) Enqueue(jobs.Lane, string) error { return nil }
func (nopQueue) EnqueueAfter(jobs.Lane, string, time.Duration) {}

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (e *recordingEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *recordingEmitter) events() []realtime.SSEEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]realtime.SSEEvent, len(e.msgs))
	for i, m := range e.msgs {
		out[i] = m.Event
	}
	return out
}

func as(requesterID string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{RequesterID: requesterID})
}

type harness struct {
	gen    GenerationService
	coord  *coordinator.Coordinator
	blocks *blocks.MemoryRepo
	emit   *recordingEmitter
	docs   *docstore.Local
	norm   *normalize.Normalizer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()
	docs, err := docstore.NewLocal(log, t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	emit := &recordingEmitter{}
	blockRepo := blocks.NewMemoryRepo()
	coord := coordinator.New(log, jobrepo.NewMemoryStore(), blockRepo, status.NewBroker(log), nopQueue{},
		coordinator.DefaultConfig(), coordinator.WithNotifier(NewJobNotifier(emit)))
	norm := normalize.New(docs, normalize.Config{MaxDocumentBytes: 1 << 10})
	return &harness{
		gen:    NewGenerationService(log, norm, coord),
		coord:  coord,
		blocks: blockRepo,
		emit:   emit,
		docs:   docs,
		norm:   norm,
	}
}

func TestSubmitRequiresRequester(t *testing.T) {
	h := newHarness(t)
	_, err := h.gen.Submit(context.Background(), learning.RawGenerationRequest{Topic: "Photosynthesis"})
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSubmitUsesContextRequester(t *testing.T) {
	h := newHarness(t)
	res, err := h.gen.Submit(as("user-1"), learning.RawGenerationRequest{
		RequesterID: "someone-else",
		Topic:       "Photosynthesis",
		Format:      "block",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Job.RequesterID != "user-1" {
		t.Fatalf("requester taken from body, got %q", res.Job.RequesterID)
	}
	if got := h.emit.events(); len(got) != 1 || got[0] != realtime.SSEEventJobCreated {
		t.Fatalf("expected one JobCreated notification, got %v", got)
	}
	if h.emit.msgs[0].Channel != "user-1" {
		t.Fatalf("notification sent to %q", h.emit.msgs[0].Channel)
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.gen.Submit(as("user-1"), learning.RawGenerationRequest{Format: "block"})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestJobHiddenFromStrangers(t *testing.T) {
	h := newHarness(t)
	res, err := h.gen.Submit(as("user-1"), learning.RawGenerationRequest{Topic: "Photosynthesis"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := h.gen.GetForRequestUser(as("user-1"), res.Job.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := h.gen.GetForRequestUser(as("user-2"), res.Job.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("stranger should see not found, got %v", err)
	}
	if _, err := h.gen.SubscribeForRequestUser(as("user-2"), res.Job.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("stranger subscribe should fail, got %v", err)
	}
}

func TestCancelForRequestUserSilencesWaiter(t *testing.T) {
	h := newHarness(t)
	res, _ := h.gen.Submit(as("user-1"), learning.RawGenerationRequest{Topic: "Photosynthesis"})
	j, err := h.gen.CancelForRequestUser(as("user-1"), res.Job.ID)
	if err != nil || j.State != jobs.StateCancelled {
		t.Fatalf("cancel: %v %+v", err, j)
	}
	for _, ev := range h.emit.events() {
		if ev != realtime.SSEEventJobCreated {
			t.Fatalf("cancelled waiter got %s", ev)
		}
	}
	if _, err := h.gen.GetForRequestUser(as("user-1"), res.Job.ID); err != nil {
		t.Fatalf("former waiter should still read the job: %v", err)
	}
}

func TestUploadThenSubmitWithDocument(t *testing.T) {
	h := newHarness(t)
	docsSvc := NewDocumentService(logger.Nop(), h.docs, h.norm)
	meta, err := docsSvc.Upload(as("user-1"), "notes.pdf", strings.NewReader(tinyPDF))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if meta.MimeType != "application/pdf" || meta.Size != int64(len(tinyPDF)) || meta.SHA256 == "" {
		t.Fatalf("unexpected meta %+v", meta)
	}
	res, err := h.gen.Submit(as("user-1"), learning.RawGenerationRequest{DocumentRef: meta.Ref})
	if err != nil {
		t.Fatalf("submit with document: %v", err)
	}
	if doc := res.Job.Request.Data().Document; doc == nil || doc.SHA256 != meta.SHA256 {
		t.Fatalf("document not carried into the request")
	}
}

func TestUploadRejectsOversizeAndWrongType(t *testing.T) {
	h := newHarness(t)
	docsSvc := NewDocumentService(logger.Nop(), h.docs, h.norm)
	big := bytes.Repeat([]byte("a"), 2<<10)
	if _, err := docsSvc.Upload(as("user-1"), "big.pdf", bytes.NewReader(big)); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("oversize upload: %v", err)
	}
	if _, err := docsSvc.Upload(as("user-1"), "notes.txt", strings.NewReader("plain text")); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("text upload should be rejected: %v", err)
	}
	if _, err := docsSvc.Upload(context.Background(), "notes.pdf", strings.NewReader(tinyPDF)); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("anonymous upload: %v", err)
	}
}

func TestRecordEngagement(t *testing.T) {
	repo := blocks.NewMemoryRepo()
	b := testutil.Block(time.Now())
	if _, err := repo.Put(dbctx.New(context.Background()), b); err != nil {
		t.Fatalf("put: %v", err)
	}
	svc := NewBlockService(logger.Nop(), repo)
	got, err := svc.RecordEngagement(context.Background(), b.ID, "completion")
	if err != nil || got.Completions != 1 {
		t.Fatalf("engagement: %v %+v", err, got)
	}
	if _, err := svc.RecordEngagement(context.Background(), b.ID, "like"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("unknown kind: %v", err)
	}
}

func TestTrendingAttachesSummaries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := blocks.NewMemoryRepo()
	dbc := dbctx.New(context.Background())
	older, newer := testutil.Block(now.Add(-2*time.Hour)), testutil.Block(now.Add(-time.Hour))
	older.Views = 10
	for _, b := range []*learning.Block{older, newer} {
		if _, err := repo.Put(dbc, b); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	r := ranking.New(logger.Nop(), repo, nil, ranking.DefaultConfig(), ranking.WithClock(func() time.Time { return now }))
	if _, err := r.Recompute(context.Background()); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	items, err := NewTrendingService(logger.Nop(), r, repo).Trending(context.Background(), 10)
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(items) != 2 || items[0].BlockID != older.ID || items[0].Block == nil || items[0].Block.Title != older.Title {
		t.Fatalf("unexpected trending items %+v", items)
	}
}

func TestAuthTokenRoundTrip(t *testing.T) {
	auth := NewAuthService(logger.Nop(), "test-secret")
	tok, err := auth.IssueToken("user-9", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ctx, err := auth.SetContextFromToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := ctxutil.RequesterID(ctx); got != "user-9" {
		t.Fatalf("requester = %q", got)
	}
	other := NewAuthService(logger.Nop(), "other-secret")
	if _, err := other.SetContextFromToken(context.Background(), tok); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("foreign token accepted: %v", err)
	}
	expired, _ := auth.IssueToken("user-9", -time.Minute)
	if _, err := auth.SetContextFromToken(context.Background(), expired); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

type fakeBus struct {
	mu   sync.Mutex
	sent []realtime.SSEMessage
	err  error
}

func (b *fakeBus) Publish(_ context.Context, msg realtime.SSEMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
	return b.err
}

func (b *fakeBus) StartForwarder(context.Context, func(realtime.SSEMessage)) error { return nil }
func (b *fakeBus) Close() error { return nil }

func TestBusEmitterPublishesAndSwallowsErrors(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	local := hub.NewSSEClient("user-1")
	hub.AddChannel(local, "user-1")

	fb := &fakeBus{err: errors.New("redis down")}
	e := NewSSEEmitter(logger.Nop(), hub, fb)
	e.Emit(context.Background(), realtime.SSEMessage{Channel: "user-1", Event: realtime.SSEEventJobDone})
	if len(fb.sent) != 1 || fb.sent[0].Event != realtime.SSEEventJobDone {
		t.Fatalf("message not published: %+v", fb.sent)
	}
	select {
	case msg := <-local.Outbound:
		t.Fatalf("bus mode must leave the hub to the forwarder, got %+v", msg)
	default:
	}
}

func TestHubEmitterBroadcastsLocally(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	local := hub.NewSSEClient("user-1")
	hub.AddChannel(local, "user-1")

	NewSSEEmitter(logger.Nop(), hub, nil).Emit(context.Background(), realtime.SSEMessage{Channel: "user-1", Event: realtime.SSEEventJobCreated})
	select {
	case msg := <-local.Outbound:
		if msg.Event != realtime.SSEEventJobCreated {
			t.Fatalf("unexpected event %s", msg.Event)
		}
	default:
		t.Fatalf("hub mode should deliver immediately")
	}
}
