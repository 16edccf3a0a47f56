package app

import (
	"context"
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/illumyn-backend/internal/data/repos"
	apphttp "github.com/yungbote/illumyn-backend/internal/http"
	"github.com/yungbote/illumyn-backend/internal/observability"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    repos.Set
	Services Services
	SSEHub   *realtime.SSEHub

	clients      *Clients
	shutdownOtel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode, logger.WithRedaction(cfg.LogRedaction), logger.WithHashSalt(cfg.LogHashSalt))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	observability.Init(log)
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.OtelService,
		Environment: cfg.OtelEnvironment,
		Version:     cfg.OtelVersion,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     cfg.OtelHeaders,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})

	theDB, reposet, err := wireRepos(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	clients, err := wireClients(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	ssehub := realtime.NewSSEHub(log)
	serviceset := wireServices(log, cfg, reposet, clients, ssehub)
	handlerset := wireHandlers(log, serviceset, ssehub, readinessChecks(theDB, clients))
	router := wireRouter(log, cfg, serviceset, handlerset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		SSEHub:       ssehub,
		clients:      clients,
		shutdownOtel: shutdownOtel,
	}, nil
}

// Run serves the API and runs the worker pool and the ranker until ctx ends
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if a.clients.Bus != nil {
		broker := a.Services.Broker
		forward := func(m realtime.SSEMessage) {
			if !broker.Deliver(m) {
				a.SSEHub.Broadcast(m)
			}
		}
		if err := a.clients.Bus.StartForwarder(gctx, forward); err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}
	g.Go(func() error { return a.Services.Worker.Run(gctx) })
	g.Go(func() error { return a.Services.Ranker.Run(gctx) })
	g.Go(func() error {
		addr := net.JoinHostPort("", a.Cfg.Port)
		a.Log.Info("HTTP server listening", "addr", addr)
		return apphttp.NewServerFor(a.Router).Run(gctx, addr)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.clients != nil {
		if a.clients.Bus != nil {
			_ = a.clients.Bus.Close()
		}
		a.clients.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.shutdownOtel != nil {
		_ = a.shutdownOtel(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
