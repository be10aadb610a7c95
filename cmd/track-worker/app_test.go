package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/KasTrack/config"
	"github.com/BearBump/KasTrack/internal/broker/kafka"
	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/cache"
	"github.com/BearBump/KasTrack/internal/cache/rediscache"
	"github.com/BearBump/KasTrack/internal/integrations/carrier"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fake"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fedex"
	"github.com/BearBump/KasTrack/internal/models"
	"github.com/BearBump/KasTrack/internal/services/intake"
	"github.com/BearBump/KasTrack/internal/services/trackings"
	trackingmocks "github.com/BearBump/KasTrack/internal/services/trackings/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	topics []string
}

func (p *recordingProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topics = append(p.topics, topic)
	return nil
}

// batchSource hands over its batches and then blocks until ctx is done.
type batchSource struct {
	batches []messages.SubmitBatch
}

func (s *batchSource) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, b := range s.batches {
		v, _ := json.Marshal(b)
		if err := handler(nil, v); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func testFactories(repo trackings.Repository, prod *recordingProducer, src intake.Source, closed *[]string) workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (trackings.Repository, func(), error) {
			return repo, func() { *closed = append(*closed, "db") }, nil
		},
		newProducer: func(cfg *config.Config) (intake.Producer, func()) {
			return prod, func() { *closed = append(*closed, "producer") }
		},
		newRedis: func(cfg *config.Config) (cache.BytesCache, intake.RateLimiter, func()) {
			return nil, nil, func() { *closed = append(*closed, "redis") }
		},
		newCarrierClient: func(cfg *config.Config, tokens cache.BytesCache) carrier.Client {
			return fake.New()
		},
		newSource: func(cfg *config.Config) (intake.Source, func()) {
			return src, func() { *closed = append(*closed, "source") }
		},
	}
}

func TestRunTrackWorker_ProcessesBatchUntilCanceled(t *testing.T) {
	repo := trackingmocks.NewMockRepository(t)
	repo.On("FindTrackingByNumber", mock.Anything, "123456789012").Return(nil, models.ErrNotFound).Once()
	repo.On("CreateTracking", mock.Anything, mock.Anything).
		Return(func(_ context.Context, d models.TrackingDraft) *models.TrackingRecord {
			rec := d.Record
			rec.ID = 1
			rec.KasID = "K-001-000001"
			return &rec
		}, nil).Once()

	prod := &recordingProducer{}
	src := &batchSource{batches: []messages.SubmitBatch{{BatchID: "b", TrackingNumbers: []string{"123456789012"}}}}
	var closed []string

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := RunTrackWorker(ctx, &config.Config{}, testFactories(repo, prod, src, &closed))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, []string{messages.TopicTrackingIngested, messages.TopicOutcomes}, prod.topics)
	require.Equal(t, []string{"source", "redis", "producer", "db"}, closed)
}

func TestRunTrackWorker_ContextCanceled(t *testing.T) {
	var closed []string
	f := testFactories(trackingmocks.NewMockRepository(t), &recordingProducer{}, &batchSource{}, &closed)

	cfg := &config.Config{
		Kafka:    config.KafkaConfig{OutcomesTopic: "t"},
		KasTrack: config.KasTrackConfig{WorkerConcurrency: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunTrackWorker(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, closed, 4)
}

func TestDefaultWorkerFactories(t *testing.T) {
	f := defaultWorkerFactories()

	c := f.newCarrierClient(&config.Config{FedEx: config.FedExConfig{UseFake: true}}, nil)
	_, ok := c.(*fake.FakeClient)
	require.True(t, ok)

	c = f.newCarrierClient(&config.Config{FedEx: config.FedExConfig{APIKey: "k", SecretKey: "s"}}, nil)
	_, ok = c.(*fedex.Client)
	require.True(t, ok)

	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	p, closeP := f.newProducer(cfg)
	require.IsType(t, &kafka.Producer{}, p)
	closeP()

	records, rl, closeR := f.newRedis(cfg)
	require.IsType(t, &rediscache.RedisCache{}, records)
	require.IsType(t, &rediscache.RateLimiter{}, rl)
	closeR()

	src, closeS := f.newSource(cfg)
	require.Equal(t, messages.TopicSubmit, src.(*kafka.Consumer).Topic())
	closeS()
}

func TestWorkerRouter(t *testing.T) {
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	cfg := &config.Config{
		FedEx:    config.FedExConfig{APIKey: "secret"},
		KasTrack: config.KasTrackConfig{WorkerConcurrency: 3},
	}
	w := intake.New(nil, nil, nil, "t")
	r := newWorkerRouter(workerHTTPOpts{swaggerPath: sw, worker: w, cfg: cfg})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st intake.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, int64(0), st.TotalBatches)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Contains(t, rec.Body.String(), `"concurrency":3`)
	require.NotContains(t, rec.Body.String(), "secret")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunWorkerHTTPServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		})
	}()

	resp, err := http.Get("http://" + <-addrCh + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-errCh)

	err = runWorkerHTTPServer(context.Background(), workerHTTPOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.ErrorContains(t, err, "worker swagger file not found")
}
