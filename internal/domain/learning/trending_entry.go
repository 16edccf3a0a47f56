package learning

import (
	"time"

	"github.com/google/uuid"
)

// TrendingEntry is derived from blocks; it is never edited by hand.
type TrendingEntry struct {
	BlockID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"block_id"`
	Rank       int       `gorm:"column:rank;not null;index" json:"rank"`
	Score      float64   `gorm:"column:score;not null" json:"score"`
	ComputedAt time.Time `gorm:"column:computed_at;not null" json:"computed_at"`
}

func (TrendingEntry) TableName() string { return "trending_entry" }
