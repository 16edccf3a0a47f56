package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/observability"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type BlockService interface {
	List(ctx context.Context, limit int, cursor string) (blocks.Page, error)
	Get(ctx context.Context, id uuid.UUID) (*learning.Block, error)
	RecordEngagement(ctx context.Context, id uuid.UUID, kind string) (*learning.Block, error)
}

type blockService struct {
	log  *logger.Logger
	repo blocks.Repo
}

func NewBlockService(baseLog *logger.Logger, repo blocks.Repo) BlockService {
	return &blockService{log: baseLog.With("service", "BlockService"), repo: repo}
}

func (s *blockService) List(ctx context.Context, limit int, cursor string) (blocks.Page, error) {
	return s.repo.ListRecent(dbctx.New(ctx), limit, cursor)
}

func (s *blockService) Get(ctx context.Context, id uuid.UUID) (*learning.Block, error) {
	return s.repo.Get(dbctx.New(ctx), id)
}

func (s *blockService) RecordEngagement(ctx context.Context, id uuid.UUID, kind string) (*learning.Block, error) {
	b, err := s.repo.IncrementEngagement(dbctx.New(ctx), id, learning.EngagementKind(kind))
	if err != nil {
		return nil, err
	}
	observability.Current().IncEngagement(kind)
	return b, nil
}
