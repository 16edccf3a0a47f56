package app

import (
	"github.com/yungbote/illumyn-backend/internal/data/repos"
	"github.com/yungbote/illumyn-backend/internal/jobs/coordinator"
	"github.com/yungbote/illumyn-backend/internal/jobs/status"
	"github.com/yungbote/illumyn-backend/internal/jobs/worker"
	"github.com/yungbote/illumyn-backend/internal/learning/normalize"
	"github.com/yungbote/illumyn-backend/internal/learning/ranking"
	"github.com/yungbote/illumyn-backend/internal/platform/docparse"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/realtime"
	"github.com/yungbote/illumyn-backend/internal/services"
)

type Services struct {
	Coordinator *coordinator.Coordinator
	Broker      *status.Broker
	Worker      *worker.Worker
	Ranker      *ranking.Ranker

	Auth       services.AuthService
	Generation services.GenerationService
	Documents  services.DocumentService
	Blocks     services.BlockService
	Trending   services.TrendingService
}

func wireServices(log *logger.Logger, cfg Config, reposet repos.Set, clients *Clients, hub *realtime.SSEHub) Services {
	log.Info("Wiring services...")

	emitter := services.NewSSEEmitter(log, hub, clients.Bus)

	var brokerOpts []status.Option
	if clients.Bus != nil {
		brokerOpts = append(brokerOpts, status.WithRelay(clients.Bus))
	}
	broker := status.NewBroker(log, brokerOpts...)

	lanes := worker.NewLanes(cfg.FastQueueDepth, cfg.HeavyQueueDepth)
	coord := coordinator.New(log, reposet.Jobs, reposet.Blocks, broker, lanes,
		coordinator.Config{
			FreshnessWindow: cfg.FreshnessWindow,
			Retention:       cfg.Retention,
			Retry: coordinator.RetryPolicy{
				MaxRetries: cfg.RetryMax,
				Base:       cfg.RetryBase,
				Cap:        cfg.RetryCap,
				Jitter:     cfg.RetryJitter,
			},
		},
		coordinator.WithNotifier(services.NewJobNotifier(emitter)),
	)

	norm := normalize.New(clients.Docs, normalize.Config{
		MaxDocumentBytes: cfg.MaxDocumentBytes,
		AllowedMIME:      cfg.AllowedDocTypes,
	})
	parser := docparse.New(clients.Docs, cfg.MaxDocumentBytes, cfg.MaxSourceChars)
	pipeline := worker.NewPipeline(log, coord, clients.Generator, parser, reposet.Blocks)
	w := worker.NewWorker(log, worker.Config{
		FastWorkers:    cfg.FastWorkers,
		HeavyWorkers:   cfg.HeavyWorkers,
		AttemptTimeout: cfg.AttemptTimeout,
		LeaseTTL:       cfg.LeaseTTL,
		SweepInterval:  cfg.SweepInterval,
	}, lanes, coord, clients.Leases, pipeline)

	ranker := ranking.New(log, reposet.Blocks, reposet.Trending, ranking.Config{
		Interval:   cfg.RankingInterval,
		Window:     cfg.RankingWindow,
		HalfLife:   cfg.RankingHalfLife,
		MaxEntries: cfg.RankingMax,
	})

	return Services{
		Coordinator: coord,
		Broker:      broker,
		Worker:      w,
		Ranker:      ranker,
		Auth:        services.NewAuthService(log, cfg.SessionJWTSecret),
		Generation:  services.NewGenerationService(log, norm, coord),
		Documents:   services.NewDocumentService(log, clients.Docs, norm),
		Blocks:      services.NewBlockService(log, reposet.Blocks),
		Trending:    services.NewTrendingService(log, ranker, reposet.Blocks),
	}
}
