package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/illumyn-backend/internal/http/handlers"
	httpMW "github.com/yungbote/illumyn-backend/internal/http/middleware"
	"github.com/yungbote/illumyn-backend/internal/observability"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	GenerationHandler *httpH.GenerationHandler
	JobHandler        *httpH.JobHandler
	DocumentHandler   *httpH.DocumentHandler
	BlockHandler      *httpH.BlockHandler
	TrendingHandler   *httpH.TrendingHandler
	RealtimeHandler   *httpH.RealtimeHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.Metrics(observability.Current()))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
		r.GET("/metrics", cfg.HealthHandler.Metrics)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		// Generation
		if cfg.GenerationHandler != nil {
			protected.POST("/generations", cfg.GenerationHandler.Submit)
		}

		// Job
		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			protected.GET("/jobs/:id/events", cfg.JobHandler.Events)
		}

		// Documents
		if cfg.DocumentHandler != nil {
			protected.POST("/documents", cfg.DocumentHandler.Upload)
		}

		// Blocks
		if cfg.BlockHandler != nil {
			protected.GET("/blocks", cfg.BlockHandler.ListBlocks)
			protected.GET("/blocks/:id", cfg.BlockHandler.GetBlock)
			protected.POST("/blocks/:id/engagement", cfg.BlockHandler.RecordEngagement)
		}

		// Trending
		if cfg.TrendingHandler != nil {
			protected.GET("/trending", cfg.TrendingHandler.ListTrending)
		}
	}

	return r
}
