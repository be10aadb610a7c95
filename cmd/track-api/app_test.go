package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/BearBump/KasTrack/config"
	trackingsapi "github.com/BearBump/KasTrack/internal/api/trackings_api"
	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fake"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fedex"
	"github.com/BearBump/KasTrack/internal/models"
	"github.com/BearBump/KasTrack/internal/services/trackings"
	trackingmocks "github.com/BearBump/KasTrack/internal/services/trackings/mocks"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeIngester struct {
	err   error
	calls int
	raw   []byte
}

func (f *fakeIngester) Ingest(ctx context.Context, raw []byte) (*models.TrackingRecord, error) {
	f.calls++
	f.raw = raw
	if f.err != nil {
		return nil, f.err
	}
	return &models.TrackingRecord{ID: 1, KasID: "K-000-000001"}, nil
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func newAPI(t *testing.T) (*trackingsapi.TrackingsAPI, *trackings.Service) {
	svc := trackings.New(trackingmocks.NewMockRepository(t), fake.New(), nil, 0)
	return trackingsapi.New(svc, nil), svc
}

func TestRunTrackAPI_SwaggerServed(t *testing.T) {
	api, svc := newAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := trackAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   writeSwagger(t),
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTrackAPI(ctx, opts, api, svc, fakeConsumer{}, nil)
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, err = http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunTrackAPI_SwaggerRequired(t *testing.T) {
	api, svc := newAPI(t)

	err := runTrackAPI(context.Background(), trackAPIOpts{httpAddr: "127.0.0.1:0"}, api, svc, nil, nil)
	require.ErrorContains(t, err, "swaggerPath")

	err = runTrackAPI(context.Background(), trackAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, api, svc, nil, nil)
	require.ErrorContains(t, err, "swagger file not found")
}

func TestNewRouter_HealthzReportsStoreFailure(t *testing.T) {
	api, _ := newAPI(t)
	h := newRouter(api, writeSwagger(t), func(ctx context.Context) error { return errors.New("ping pg: refused") })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "ping pg: refused")
}

func TestRelayHandler(t *testing.T) {
	value, err := json.Marshal(messages.CarrierPayload{Source: "webhook", Payload: json.RawMessage(`{"output":{}}`)})
	require.NoError(t, err)

	ing := &fakeIngester{}
	h := relayHandler(context.Background(), ing)
	require.NoError(t, h(nil, value))
	require.JSONEq(t, `{"output":{}}`, string(ing.raw))

	ing.err = models.ErrMalformedPayload
	require.NoError(t, h(nil, value))

	ing.err = models.ErrDuplicateTrackingNumber
	require.NoError(t, h(nil, value))

	ing.err = models.ErrPersistenceFailure
	require.ErrorIs(t, h(nil, value), models.ErrPersistenceFailure)

	calls := ing.calls
	require.NoError(t, h(nil, []byte("not json")))
	require.Equal(t, calls, ing.calls)
}

func TestTopicsFromConfig(t *testing.T) {
	tp := topicsFromConfig(config.KafkaConfig{})
	require.Equal(t, messages.TopicCarrierPayloads, tp.carrierPayloads)
	require.Equal(t, messages.TopicTrackingIngested, tp.trackingIngested)
	require.Equal(t, messages.TopicSubmit, tp.submit)

	tp = topicsFromConfig(config.KafkaConfig{SubmitTopic: "custom.submit"})
	require.Equal(t, "custom.submit", tp.submit)
}

func TestNewCarrierClient(t *testing.T) {
	_, ok := newCarrierClient(config.FedExConfig{UseFake: true}, nil).(*fake.FakeClient)
	require.True(t, ok)

	_, ok = newCarrierClient(config.FedExConfig{BaseURL: "http://localhost:1", APIKey: "k", SecretKey: "s"}, nil).(*fedex.Client)
	require.True(t, ok)
}

func TestNewImageService_DisabledWithoutStorage(t *testing.T) {
	require.Nil(t, newImageService(config.StorageConfig{}, nil, nil))
	require.NotNil(t, newImageService(config.StorageConfig{SupabaseURL: "http://localhost:54321", ServiceRoleKey: "k"}, nil, nil))
}
