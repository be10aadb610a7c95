package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/KasTrack/config"
	"github.com/BearBump/KasTrack/internal/broker/kafka"
	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/cache"
	"github.com/BearBump/KasTrack/internal/cache/rediscache"
	"github.com/BearBump/KasTrack/internal/integrations/carrier"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fake"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fedex"
	"github.com/BearBump/KasTrack/internal/services/intake"
	"github.com/BearBump/KasTrack/internal/services/trackings"
	"github.com/BearBump/KasTrack/internal/storage/pgtracking"
)

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo trackings.Repository, closeFn func(), err error)
	newProducer      func(cfg *config.Config) (intake.Producer, func())
	newRedis         func(cfg *config.Config) (cache.BytesCache, intake.RateLimiter, func())
	newCarrierClient func(cfg *config.Config, tokens cache.BytesCache) carrier.Client
	newSource        func(cfg *config.Config) (intake.Source, func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (trackings.Repository, func(), error) {
			st, err := pgtracking.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (intake.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newRedis: func(cfg *config.Config) (cache.BytesCache, intake.RateLimiter, func()) {
			rdb := rediscache.NewClient(cfg.Redis.Addr())
			return rediscache.New(rdb, cfg.Redis.Namespace),
				rediscache.NewRateLimiter(rdb, cfg.Redis.Namespace),
				func() { _ = rdb.Close() }
		},
		newCarrierClient: func(cfg *config.Config, tokens cache.BytesCache) carrier.Client {
			if cfg.FedEx.UseFake {
				return fake.New()
			}
			return fedex.New(cfg.FedEx.BaseURL, cfg.FedEx.APIKey, cfg.FedEx.SecretKey, tokens)
		},
		newSource: func(cfg *config.Config) (intake.Source, func()) {
			topic := cfg.Kafka.SubmitTopic
			if topic == "" {
				topic = messages.TopicSubmit
			}
			group := cfg.KasTrack.WorkerConsumerGroup
			if group == "" {
				group = "track-worker"
			}
			c := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
			return c, func() { _ = c.Close() }
		},
	}
}

// buildWorker wires the intake worker. The returned func releases every
// resource that was opened.
func buildWorker(cfg *config.Config, f workerFactories) (*intake.Worker, intake.Source, func(), error) {
	outcomesTopic := cfg.Kafka.OutcomesTopic
	if outcomesTopic == "" {
		outcomesTopic = messages.TopicOutcomes
	}
	ingestedTopic := cfg.Kafka.TrackingIngestedTopic
	if ingestedTopic == "" {
		ingestedTopic = messages.TopicTrackingIngested
	}
	cacheTTL := time.Duration(cfg.KasTrack.RecordCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	concurrency := cfg.KasTrack.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	rlPerMin := int64(cfg.KasTrack.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeDB, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	var closers []func()
	if closeDB != nil {
		closers = append(closers, closeDB)
	}

	producer, closeProducer := f.newProducer(cfg)
	records, rl, closeRedis := f.newRedis(cfg)
	src, closeSource := f.newSource(cfg)
	closers = append(closers, closeProducer, closeRedis, closeSource)

	svc := trackings.New(repo, f.newCarrierClient(cfg, records), records, cacheTTL).
		WithProducer(producer, ingestedTopic)

	w := intake.New(svc, producer, rl, outcomesTopic).
		WithSettings(concurrency, rlPerMin).
		WithCarrierRateLimits(cfg.KasTrack.WorkerCarrierRateLimits)

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if closers[i] != nil {
				closers[i]()
			}
		}
	}
	return w, src, closeAll, nil
}

func RunTrackWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	w, src, closeFn, err := buildWorker(cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	if cfg.KasTrack.WorkerHTTPAddr != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.KasTrack.WorkerHTTPAddr,
				swaggerPath: cfg.KasTrack.WorkerSwaggerPath,
				worker:      w,
				cfg:         cfg,
			})
			if err != nil {
				slog.Error("worker http server", "error", err.Error())
			}
		}()
	}

	slog.Info("intake worker started")
	return w.Run(ctx, src)
}
