// Package testutil holds fixtures and the postgres harness for repo tests.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/illumyn-backend/internal/data/db"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

const dsnEnv = "TEST_POSTGRES_DSN"

var pg struct {
	once sync.Once
	db   *gorm.DB
	err  error
}

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// Postgres returns the shared migrated handle and a context bound to a
// transaction that is rolled back when tb ends. It skips unless
// TEST_POSTGRES_DSN is set.
func Postgres(tb testing.TB) (*gorm.DB, dbctx.Context) {
	tb.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		tb.Skip("set " + dsnEnv + " to run repo integration tests")
	}
	pg.once.Do(func() {
		pg.db, pg.err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if pg.err == nil {
			pg.err = db.AutoMigrateAll(pg.db)
		}
	})
	if pg.err != nil {
		tb.Fatalf("init test db: %v", pg.err)
	}

	tx := pg.db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() { _ = tx.Rollback().Error })
	return pg.db, dbctx.Context{Ctx: context.Background(), Tx: tx}
}
