package services

import (
	"context"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/jobs/coordinator"
	"github.com/yungbote/illumyn-backend/internal/jobs/status"
	"github.com/yungbote/illumyn-backend/internal/learning/normalize"
	"github.com/yungbote/illumyn-backend/internal/observability"
	"github.com/yungbote/illumyn-backend/internal/platform/ctxutil"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

// GenerationService is the request-facing side of the job coordinator. Every
// method acts for the requester carried in ctx.
type GenerationService interface {
	Submit(ctx context.Context, raw learning.RawGenerationRequest) (coordinator.SubmitResult, error)
	GetForRequestUser(ctx context.Context, jobID string) (*jobs.Job, error)
	CancelForRequestUser(ctx context.Context, jobID string) (*jobs.Job, error)
	SubscribeForRequestUser(ctx context.Context, jobID string) (*status.Subscription, error)
}

type generationService struct {
	log   *logger.Logger
	norm  *normalize.Normalizer
	coord *coordinator.Coordinator
}

func NewGenerationService(baseLog *logger.Logger, norm *normalize.Normalizer, coord *coordinator.Coordinator) GenerationService {
	return &generationService{
		log:   baseLog.With("service", "GenerationService"),
		norm:  norm,
		coord: coord,
	}
}

func (s *generationService) Submit(ctx context.Context, raw learning.RawGenerationRequest) (coordinator.SubmitResult, error) {
	rid, err := requester(ctx)
	if err != nil {
		return coordinator.SubmitResult{}, err
	}
	raw.RequesterID = rid
	req, err := s.norm.Normalize(ctx, raw)
	if err != nil {
		observability.Current().IncRejected(apperrors.KindOf(err))
		return coordinator.SubmitResult{}, err
	}
	res, err := s.coord.Submit(ctx, req)
	if err != nil {
		return res, err
	}
	s.log.Debug("generation submitted",
		"job_id", res.Job.ID,
		"requester_id", rid,
		"cached", res.Cached,
		"joined", res.Joined,
	)
	return res, nil
}

// GetForRequestUser hides jobs the caller never waited on behind ErrNotFound.
func (s *generationService) GetForRequestUser(ctx context.Context, jobID string) (*jobs.Job, error) {
	rid, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	j, err := s.coord.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.Visible(rid) {
		return nil, apperrors.ErrNotFound
	}
	return j, nil
}

func (s *generationService) CancelForRequestUser(ctx context.Context, jobID string) (*jobs.Job, error) {
	rid, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	return s.coord.Cancel(ctx, jobID, rid)
}

func (s *generationService) SubscribeForRequestUser(ctx context.Context, jobID string) (*status.Subscription, error) {
	if _, err := s.GetForRequestUser(ctx, jobID); err != nil {
		return nil, err
	}
	return s.coord.Subscribe(ctx, jobID)
}

func requester(ctx context.Context) (string, error) {
	rid := ctxutil.RequesterID(ctx)
	if rid == "" {
		return "", apperrors.ErrUnauthorized
	}
	return rid, nil
}
