// Package repos groups the storage behind the pipeline into one set so the
// app can swap the gorm and in-memory backends together.
package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	"github.com/yungbote/illumyn-backend/internal/data/repos/jobs"
	"github.com/yungbote/illumyn-backend/internal/data/repos/trending"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type JobStore = jobs.Store
type BlockRepo = blocks.Repo
type TrendingRepo = trending.Repo

type Set struct {
	Jobs     JobStore
	Blocks   BlockRepo
	Trending TrendingRepo
}

func NewGormSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Jobs:     jobs.NewGormStore(db, baseLog),
		Blocks:   blocks.NewGormRepo(db, baseLog),
		Trending: trending.NewGormRepo(db, baseLog),
	}
}

// NewMemorySet keeps everything in process; jobs and blocks are lost on restart.
func NewMemorySet() Set {
	return Set{
		Jobs:     jobs.NewMemoryStore(),
		Blocks:   blocks.NewMemoryRepo(),
		Trending: trending.NewMemoryRepo(),
	}
}
