// Package blocks stores committed learning blocks. Payloads are immutable;
// only the engagement counters change after Put.
package blocks

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
)

type Page struct {
	Blocks     []*learning.Block `json:"blocks"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type Repo interface {
	// Put inserts b unless a block with the same id exists. It reports
	// whether this call created the row.
	Put(dbc dbctx.Context, b *learning.Block) (bool, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*learning.Block, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*learning.Block, error)
	ListRecent(dbc dbctx.Context, limit int, cursor string) (Page, error)
	IncrementEngagement(dbc dbctx.Context, id uuid.UUID, kind learning.EngagementKind) (*learning.Block, error)
	ListSince(dbc dbctx.Context, since time.Time) ([]*learning.Block, error)
}

func nextCursor(page []*learning.Block, more bool) string {
	if !more || len(page) == 0 {
		return ""
	}
	last := page[len(page)-1]
	return Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
}

func validKind(kind learning.EngagementKind) bool {
	return kind == learning.EngagementView || kind == learning.EngagementCompletion
}
