package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/illumyn-backend/internal/jobs/lease"
	"github.com/yungbote/illumyn-backend/internal/jobs/worker"
	"github.com/yungbote/illumyn-backend/internal/platform/docstore"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/platform/offline"
	"github.com/yungbote/illumyn-backend/internal/platform/openai"
	"github.com/yungbote/illumyn-backend/internal/realtime/bus"
)

type Clients struct {
	Redis     goredis.UniversalClient
	Bus       bus.Bus
	Leases    lease.Manager
	Docs      docstore.Store
	Generator worker.Generator

	closers []func() error
}

func (c *Clients) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func wireClients(ctx context.Context, cfg Config, log *logger.Logger) (*Clients, error) {
	log.Info("Wiring clients...")
	out := &Clients{}

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:       strings.Split(addr, ","),
			Password:    cfg.RedisPassword,
			DialTimeout: 5 * time.Second,
		})
		out.closers = append(out.closers, rdb.Close)
		b, err := bus.NewRedisBus(ctx, log, rdb, cfg.RedisChannel)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
		out.Redis = rdb
		out.Bus = b
		out.Leases = lease.NewRedis(log, rdb)
	} else {
		log.Info("REDIS_ADDR not set; using in-process leases and SSE delivery")
		out.Leases = lease.NewTable()
	}

	switch cfg.DocStore {
	case "gcs":
		gcs, err := docstore.NewGCS(ctx, log, docstore.GCSConfig{
			Bucket:       cfg.GCSBucket,
			Prefix:       cfg.GCSPrefix,
			EmulatorHost: cfg.GCSEmulatorHost,
		})
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("init gcs document store: %w", err)
		}
		out.closers = append(out.closers, gcs.Close)
		out.Docs = gcs
	default:
		local, err := docstore.NewLocal(log, cfg.DocDir)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("init local document store: %w", err)
		}
		out.Docs = local
	}

	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		log.Warn("OPENAI_API_KEY not set; using the offline generator")
		out.Generator = offline.New()
	} else {
		gen, err := openai.New(log, openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OpenAITimeout,
		})
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("init openai generator: %w", err)
		}
		out.Generator = gen
	}
	return out, nil
}
