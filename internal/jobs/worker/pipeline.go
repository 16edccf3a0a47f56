package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/jobs/coordinator"
	"github.com/yungbote/illumyn-backend/internal/learning/content"
	"github.com/yungbote/illumyn-backend/internal/observability"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

// blockNamespace seeds block ids: one run always commits the same id, so a
// retried commit is a no-op.
var blockNamespace = uuid.MustParse("6e1f0b8a-3c55-4d8e-9a51-2b7c4f6d9e10")

// errStopped ends an attempt whose job was cancelled at a yield point.
var errStopped = errors.New("attempt stopped by cancellation")

type Generator interface {
	Name() string
	Generate(ctx context.Context, in learning.GenerateInput) (learning.StructuredPayload, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, doc learning.DocumentMeta) (string, error)
}

// Pipeline runs one attempt: parse, synthesize, validate, commit.
type Pipeline struct {
	log    *logger.Logger
	coord  *coordinator.Coordinator
	gen    Generator
	docs   TextExtractor
	blocks blocks.Repo
	now    func() time.Time
}

func NewPipeline(log *logger.Logger, coord *coordinator.Coordinator, gen Generator, docs TextExtractor, blockRepo blocks.Repo) *Pipeline {
	return &Pipeline{
		log:    log.With("component", "GenerationPipeline"),
		coord:  coord,
		gen:    gen,
		docs:   docs,
		blocks: blockRepo,
		now:    time.Now,
	}
}

// BlockID is the id the run commits under.
func BlockID(runID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(blockNamespace, runID[:])
}

// Run executes the attempt and returns the committed block id. Cancellation is
// honored before the backend call only; once a payload exists it is committed.
func (p *Pipeline) Run(ctx context.Context, job *jobs.Job) (uuid.UUID, error) {
	req := job.Request.Data()
	ct := req.ContentType()
	lane := string(job.Lane)

	var source string
	err := p.stage(ctx, job, coordinator.StageParse, 10, true, func(ctx context.Context) error {
		text, err := p.sourceText(ctx, req)
		source = text
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}

	var payload learning.StructuredPayload
	err = p.stage(ctx, job, coordinator.StageSynthesize, 30, true, func(ctx context.Context) error {
		start := time.Now()
		out, err := p.gen.Generate(ctx, learning.GenerateInput{
			Topic:       req.Topic,
			SourceText:  source,
			ContentType: ct,
			Difficulty:  req.Difficulty,
			Focus:       req.Focus,
			Duration:    req.Duration,
		})
		observability.Current().ObserveBackend(p.gen.Name(), string(ct), statusOf(err), time.Since(start))
		payload = out
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}

	var body []byte
	err = p.stage(ctx, job, coordinator.StageValidate, 80, false, func(context.Context) error {
		b, err := content.Validate(ct, payload)
		body = b
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}

	id := BlockID(job.RunID)
	err = p.stage(ctx, job, coordinator.StageCommit, 90, false, func(ctx context.Context) error {
		b := &learning.Block{
			ID:          id,
			JobID:       job.ID,
			RequesterID: req.RequesterID,
			Title:       strings.TrimSpace(payload.Title),
			Description: strings.TrimSpace(payload.Description),
			Category:    strings.TrimSpace(payload.Category),
			ContentType: ct,
			Payload:     datatypes.JSON(body),
			SourceTopic: req.Topic,
			CreatedAt:   p.now().UTC().Truncate(time.Microsecond),
		}
		if req.Document != nil {
			b.SourceDocumentRef = req.Document.Ref
		}
		created, err := p.blocks.Put(dbctx.New(ctx), b)
		if err != nil {
			return apperrors.Transient(fmt.Errorf("commit block: %w", err))
		}
		if created {
			observability.Current().IncBlocksCommitted()
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	p.log.Debug("block committed", "job_id", job.ID, "block_id", id, "lane", lane, "content_type", ct)
	return id, nil
}

// stage reports progress and runs fn in its own span. Yielding stages check
// for cancellation first; the others ignore the attempt deadline, since they
// only run once the backend has answered.
func (p *Pipeline) stage(ctx context.Context, job *jobs.Job, name string, pct int, yield bool, fn func(context.Context) error) error {
	if !yield {
		ctx = context.WithoutCancel(ctx)
	} else {
		if err := ctx.Err(); err != nil {
			return err
		}
		stop, err := p.coord.ShouldStop(ctx, coordinator.AttemptOf(job))
		if err != nil {
			return err
		}
		if stop {
			return errStopped
		}
	}
	if err := p.coord.Progress(ctx, coordinator.AttemptOf(job), name, pct); err != nil {
		return err
	}

	ctx, span := observability.StartSpan(ctx, "job.stage."+name,
		attribute.String("job.id", job.ID),
		attribute.String("job.lane", string(job.Lane)),
		attribute.Int("job.attempt", job.Attempts),
	)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	observability.Current().ObserveStage(string(job.Lane), name, statusOf(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.KindOf(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *Pipeline) sourceText(ctx context.Context, req learning.GenerationRequest) (string, error) {
	if req.Document == nil {
		return "", nil
	}
	text, err := p.docs.ExtractText(ctx, *req.Document)
	if err != nil {
		return "", err
	}
	return text, nil
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.KindOf(err)
}
