package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
)

func Job(id string, state jobs.State, at time.Time) *jobs.Job {
	return &jobs.Job{
		ID:          id,
		RunID:       uuid.New(),
		RequesterID: "user-1",
		State:       state,
		Lane:        jobs.LaneFast,
		Waiters:     datatypes.JSONSlice[jobs.Waiter]{{ID: uuid.NewString(), RequesterID: "user-1", AddedAt: at}},
		Watchers:    datatypes.JSONSlice[string]{"user-1"},
		Request: datatypes.NewJSONType(learning.GenerationRequest{
			RequesterID: "user-1",
			Topic:       "Photosynthesis",
			Format:      learning.FormatBlock,
			Duration:    learning.DurationShort,
			Focus:       learning.FocusBreadth,
			Difficulty:  learning.DifficultyBeginner,
		}),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func Block(at time.Time) *learning.Block {
	body, _ := json.Marshal(map[string]any{
		"question":       "Which pigment?",
		"options":        []string{"Chlorophyll", "Carotene"},
		"allow_multiple": false,
	})
	return &learning.Block{
		ID:          uuid.New(),
		JobID:       "job",
		RequesterID: "user-1",
		Title:       "Pigments",
		Description: "A poll.",
		Category:    "Biology",
		ContentType: learning.ContentPoll,
		Payload:     datatypes.JSON(body),
		SourceTopic: "Photosynthesis",
		CreatedAt:   at.UTC().Truncate(time.Microsecond),
	}
}
