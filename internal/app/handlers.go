package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apphttp "github.com/yungbote/illumyn-backend/internal/http"
	httpH "github.com/yungbote/illumyn-backend/internal/http/handlers"
	httpMW "github.com/yungbote/illumyn-backend/internal/http/middleware"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Realtime   *httpH.RealtimeHandler
	Generation *httpH.GenerationHandler
	Job        *httpH.JobHandler
	Document   *httpH.DocumentHandler
	Block      *httpH.BlockHandler
	Trending   *httpH.TrendingHandler
}

func wireHandlers(log *logger.Logger, svc Services, hub *realtime.SSEHub, checks map[string]httpH.Check) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(checks),
		Realtime:   httpH.NewRealtimeHandler(log, hub),
		Generation: httpH.NewGenerationHandler(svc.Generation),
		Job:        httpH.NewJobHandler(log, svc.Generation),
		Document:   httpH.NewDocumentHandler(svc.Documents),
		Block:      httpH.NewBlockHandler(svc.Blocks),
		Trending:   httpH.NewTrendingHandler(svc.Trending),
	}
}

// readinessChecks probes the database and Redis when they are configured.
func readinessChecks(theDB *gorm.DB, clients *Clients) map[string]httpH.Check {
	checks := map[string]httpH.Check{}
	if theDB != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := theDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if clients != nil && clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func wireRouter(log *logger.Logger, cfg Config, svc Services, h Handlers) *gin.Engine {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelService
	}
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:               log,
		ServiceName:       serviceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, svc.Auth, cfg.AuthDisabled),
		GenerationHandler: h.Generation,
		JobHandler:        h.Job,
		DocumentHandler:   h.Document,
		BlockHandler:      h.Block,
		TrendingHandler:   h.Trending,
		RealtimeHandler:   h.Realtime,
		HealthHandler:     h.Health,
	})
}
