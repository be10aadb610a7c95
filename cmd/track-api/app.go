package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	trackingsapi "github.com/BearBump/KasTrack/internal/api/trackings_api"
	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type trackAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type payloadIngester interface {
	Ingest(ctx context.Context, raw []byte) (*models.TrackingRecord, error)
}

// healthCheck reports whether the backing stores answer.
type healthCheck func(ctx context.Context) error

func runTrackAPI(ctx context.Context, opts trackAPIOpts, api *trackingsapi.TrackingsAPI, ingester payloadIngester, consumer kafkaConsumer, health healthCheck) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, newRouter(api, opts.swaggerPath, health))
	}()

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			err := consumer.Consume(ctx, relayHandler(ctx, ingester))
			if err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "topic", opts.topic, "error", err.Error())
			}
		}()
	}

	select {
	case <-ctx.Done():
		<-httpErr
		return ctx.Err()
	case err := <-httpErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
}

// relayHandler ingests CarrierPayload messages. Payloads that can never be
// stored are logged and committed; storage failures stop the consumer with
// the message uncommitted.
func relayHandler(ctx context.Context, ingester payloadIngester) func(key, value []byte) error {
	return func(_, value []byte) error {
		var m messages.CarrierPayload
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Warn("skip carrier payload", "error", err.Error())
			return nil
		}
		rec, err := ingester.Ingest(ctx, m.Payload)
		switch {
		case errors.Is(err, models.ErrMalformedPayload), errors.Is(err, models.ErrDuplicateTrackingNumber):
			slog.Warn("skip carrier payload", "source", m.Source, "error", err.Error())
			return nil
		case err != nil:
			return err
		}
		slog.Info("carrier payload ingested", "source", m.Source, "tracking_id", rec.ID, "kas_id", rec.KasID)
		return nil
	}
}

func newRouter(api *trackingsapi.TrackingsAPI, swaggerPath string, health healthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health != nil {
			if err := health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	r.Mount("/api/v1", api.Routes())
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
