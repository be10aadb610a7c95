package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/KasTrack/config"
	trackingsapi "github.com/BearBump/KasTrack/internal/api/trackings_api"
	"github.com/BearBump/KasTrack/internal/broker/kafka"
	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/cache"
	"github.com/BearBump/KasTrack/internal/cache/rediscache"
	"github.com/BearBump/KasTrack/internal/integrations/carrier"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fake"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fedex"
	"github.com/BearBump/KasTrack/internal/services/images"
	"github.com/BearBump/KasTrack/internal/services/trackings"
	"github.com/BearBump/KasTrack/internal/storage/pgtracking"
	"github.com/BearBump/KasTrack/internal/storage/supastore"
	"github.com/redis/go-redis/v9"
)

type trackAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     trackAPIOpts
	api      *trackingsapi.TrackingsAPI
	svc      *trackings.Service
	health   healthCheck
	consumer *kafka.Consumer
	producer *kafka.Producer
	rdb      *redis.Client
	closeDB  func()
}

// topics holds the kafka topic names with defaults filled in.
type topics struct {
	carrierPayloads  string
	trackingIngested string
	submit           string
}

func topicsFromConfig(k config.KafkaConfig) topics {
	t := topics{
		carrierPayloads:  k.CarrierPayloadsTopic,
		trackingIngested: k.TrackingIngestedTopic,
		submit:           k.SubmitTopic,
	}
	if t.carrierPayloads == "" {
		t.carrierPayloads = messages.TopicCarrierPayloads
	}
	if t.trackingIngested == "" {
		t.trackingIngested = messages.TopicTrackingIngested
	}
	if t.submit == "" {
		t.submit = messages.TopicSubmit
	}
	return t
}

func newCarrierClient(cfg config.FedExConfig, tokens cache.BytesCache) carrier.Client {
	if cfg.UseFake {
		return fake.New()
	}
	return fedex.New(cfg.BaseURL, cfg.APIKey, cfg.SecretKey, tokens)
}

func newImageService(cfg config.StorageConfig, repo images.Repository, tracks images.Invalidator) *images.Service {
	if cfg.SupabaseURL == "" {
		slog.Warn("object storage is not configured, image routes disabled")
		return nil
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "images"
	}
	return images.New(repo, supastore.New(cfg.SupabaseURL, cfg.ServiceRoleKey, bucket), tracks)
}

func mustBootstrapTrackAPI() *trackAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	httpAddr := cfg.KasTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.KasTrack.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "track-api"
	}
	cacheTTL := time.Duration(cfg.KasTrack.RecordCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	tp := topicsFromConfig(cfg.Kafka)

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	rdb := rediscache.NewClient(cfg.Redis.Addr())
	rc := rediscache.New(rdb, cfg.Redis.Namespace)

	brokers := cfg.Kafka.Brokers()
	producer := kafka.NewProducer(brokers)

	svc := trackings.New(st, newCarrierClient(cfg.FedEx, rc), rc, cacheTTL).
		WithProducer(producer, tp.trackingIngested)

	var api *trackingsapi.TrackingsAPI
	if img := newImageService(cfg.Storage, st, svc); img != nil {
		api = trackingsapi.New(svc, img)
	} else {
		api = trackingsapi.New(svc, nil)
	}
	api.WithBatchQueue(producer, tp.submit)

	consumer := kafka.NewConsumer(brokers, tp.carrierPayloads, consumerGroup).WithRetry(3, time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &trackAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: trackAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         tp.carrierPayloads,
			consumerGroup: consumerGroup,
		},
		api: api,
		svc: svc,
		health: func(ctx context.Context) error {
			if err := st.Ping(ctx); err != nil {
				return err
			}
			return rc.Ping(ctx)
		},
		consumer: consumer,
		producer: producer,
		rdb:      rdb,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgtracking.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgtracking.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *trackAPIApp) Run() error {
	return runTrackAPI(a.ctx, a.opts, a.api, a.svc, a.consumer, a.health)
}
