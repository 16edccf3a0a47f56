package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/illumyn-backend/internal/data/db"
	"github.com/yungbote/illumyn-backend/internal/data/repos"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

func wireRepos(cfg Config, log *logger.Logger) (*gorm.DB, repos.Set, error) {
	log.Info("Wiring repos...", "driver", cfg.DBDriver)
	if cfg.DBDriver == "memory" {
		log.Warn("Using in-memory storage; jobs and blocks do not survive a restart")
		return nil, repos.NewMemorySet(), nil
	}
	theDB, err := db.Open(db.Config{
		Driver:      cfg.DBDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
	}, log)
	if err != nil {
		return nil, repos.Set{}, fmt.Errorf("init database: %w", err)
	}
	return theDB, repos.NewGormSet(theDB, log), nil
}
