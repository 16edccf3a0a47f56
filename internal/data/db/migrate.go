package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&jobs.Job{},
		&learning.Block{},
		&learning.TrendingEntry{},
	)
}
