package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/falldetect/internal/api"
	"github.com/your-org/falldetect/internal/api/handlers"
	"github.com/your-org/falldetect/internal/api/ws"
	"github.com/your-org/falldetect/internal/config"
	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/observability"
	"github.com/your-org/falldetect/internal/queue"
	"github.com/your-org/falldetect/internal/storage"
	"github.com/your-org/falldetect/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)

	slog.Info("starting fall API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Store fall events and broadcast them via WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create fall consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeFalls(ctx, "api-falls", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.FallEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.Error("unmarshal fall event", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := db.CreateFallEvent(ctx, &event); err != nil {
			return fmt.Errorf("store fall %s: %w", event.ID, err)
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:     "fall_detected",
			CameraID: event.CameraID,
			Data:     handlers.FallToResponse(event),
		})
		return nil
	})
	if err != nil {
		slog.Warn("start fall consumer", "error", err)
	}

	// Diagnostics records live in MinIO only with the minio backend.
	var diagnosticsObjects handlers.ObjectDeleter
	if cfg.Diagnostics.Backend == "minio" {
		diagnosticsObjects = minioStore
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		DB:          db,
		Objects:     minioStore,
		Diagnostics: diagnosticsObjects,
		Producer:    producer,
		Hub:         hub,
		Checks: map[string]handlers.Check{
			"postgres": db.Ping,
			"minio":    minioStore.Ping,
			"nats":     func(context.Context) error { return producer.Ping() },
		},
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
