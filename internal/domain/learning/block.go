package learning

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EngagementKind string

const (
	EngagementView       EngagementKind = "view"
	EngagementCompletion EngagementKind = "completion"
)

// StructuredPayload is what the generation backend returns before it is committed.
type StructuredPayload struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Body        json.RawMessage `json:"body"`
}

// Block is a committed unit of interactive content. Payload never changes after Put.
type Block struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey;index:idx_learning_block_feed,priority:2" json:"id"`
	JobID             string         `gorm:"column:job_id;not null;index" json:"job_id"`
	RequesterID       string         `gorm:"column:requester_id;not null;index" json:"requester_id"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	Description       string         `gorm:"column:description" json:"description"`
	Category          string         `gorm:"column:category;index" json:"category,omitempty"`
	ContentType       ContentType    `gorm:"column:content_type;not null;index" json:"content_type"`
	Payload           datatypes.JSON `gorm:"column:payload;type:json;not null" json:"payload"`
	SourceTopic       string         `gorm:"column:source_topic" json:"source_topic,omitempty"`
	SourceDocumentRef string         `gorm:"column:source_document_ref" json:"source_document_ref,omitempty"`
	Views             int64          `gorm:"column:views;not null;default:0" json:"views"`
	Completions       int64          `gorm:"column:completions;not null;default:0" json:"completions"`
	CreatedAt         time.Time      `gorm:"not null;index:idx_learning_block_feed,priority:1" json:"created_at"`
}

func (Block) TableName() string { return "learning_block" }

// Clone returns a copy that shares no mutable memory with b.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	out := *b
	if b.Payload != nil {
		out.Payload = append(datatypes.JSON(nil), b.Payload...)
	}
	return &out
}

// CompletionWeight is how many views one completion is worth.
const CompletionWeight = 3

// Engagement is the weighted signal used for ranking.
func (b *Block) Engagement() int64 {
	return b.Views + CompletionWeight*b.Completions
}
