package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/learning/ranking"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

// BlockSummary is the part of a block the trending list shows.
type BlockSummary struct {
	ID          uuid.UUID            `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    string               `json:"category,omitempty"`
	ContentType learning.ContentType `json:"content_type"`
	Views       int64                `json:"views"`
	Completions int64                `json:"completions"`
}

type TrendingItem struct {
	learning.TrendingEntry
	Block *BlockSummary `json:"block,omitempty"`
}

type TrendingService interface {
	Trending(ctx context.Context, limit int) ([]TrendingItem, error)
}

type trendingService struct {
	log    *logger.Logger
	ranker *ranking.Ranker
	blocks blocks.Repo
}

func NewTrendingService(baseLog *logger.Logger, ranker *ranking.Ranker, blockRepo blocks.Repo) TrendingService {
	return &trendingService{
		log:    baseLog.With("service", "TrendingService"),
		ranker: ranker,
		blocks: blockRepo,
	}
}

// Trending reads the current ranking snapshot. Summaries reflect the live
// counters, which may have moved since the ranking was computed.
func (s *trendingService) Trending(ctx context.Context, limit int) ([]TrendingItem, error) {
	entries := s.ranker.Trending(blocks.ClampLimit(limit))
	if len(entries) == 0 {
		return []TrendingItem{}, nil
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.BlockID
	}
	found, err := s.blocks.GetByIDs(dbctx.New(ctx), ids)
	if err != nil {
		return nil, fmt.Errorf("load trending blocks: %w", err)
	}
	byID := make(map[uuid.UUID]*learning.Block, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}
	out := make([]TrendingItem, 0, len(entries))
	for _, e := range entries {
		item := TrendingItem{TrendingEntry: e}
		if b := byID[e.BlockID]; b != nil {
			item.Block = &BlockSummary{
				ID:          b.ID,
				Title:       b.Title,
				Description: b.Description,
				Category:    b.Category,
				ContentType: b.ContentType,
				Views:       b.Views,
				Completions: b.Completions,
			}
		}
		out = append(out, item)
	}
	return out, nil
}
