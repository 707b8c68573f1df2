package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/falldetect/internal/alert"
	"github.com/your-org/falldetect/internal/config"
	"github.com/your-org/falldetect/internal/diagnostics"
	"github.com/your-org/falldetect/internal/fall"
	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/observability"
	"github.com/your-org/falldetect/internal/pipeline"
	"github.com/your-org/falldetect/internal/queue"
	"github.com/your-org/falldetect/internal/storage"
	"github.com/your-org/falldetect/internal/streamlog"
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

	slog.Info("starting fall detector",
		"cameras", cfg.CameraIDs(),
		"redis", cfg.Redis.Addr(),
		"max_len", cfg.Stream.MaxLen,
	)

	// Bounded logs shared with the pose and visualization stages
	log, err := streamlog.NewRedisLog(cfg.Redis, cfg.Stream.MaxLen)
	if err != nil {
		slog.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	defer log.Close()

	// MinIO holds fall snapshots and, optionally, diagnostics records
	var objects *storage.MinIOStore
	if cfg.MinIO.Endpoint != "" {
		objects, err = storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := objects.EnsureBucket(context.Background()); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
	}

	var objectClient diagnostics.ObjectClient
	var snapshots alert.SnapshotStore
	if objects != nil {
		objectClient = objects
		snapshots = objects
	}
	diagStore, err := diagnostics.NewStore(cfg.Diagnostics, objectClient)
	if err != nil {
		slog.Error("init diagnostics", "error", err)
		os.Exit(1)
	}

	// NATS carries fall events out and camera commands in
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}
	notifier := alert.NewQueue(alert.NewPublisher(snapshots, producer), alert.DefaultQueueSize)
	go notifier.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supervisor := pipeline.NewSupervisor(ctx, log, cfg.Stream.PollInterval, func(cameraID string) (pipeline.Transform, error) {
		opts := []fall.StageOption{fall.WithNotifier(notifier)}
		if diagStore != nil {
			opts = append(opts, fall.WithHistorySink(diagnostics.NewSink(cameraID, diagStore), cfg.Diagnostics.FlushInterval))
		}
		return fall.NewStage(cameraID, fall.NewDetector(cfg.Detection), opts...), nil
	})

	for _, id := range cfg.CameraIDs() {
		if err := supervisor.Start(id); err != nil {
			slog.Error("start camera", "camera_id", id, "error", err)
		}
	}

	// Camera control plane
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create control consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	sub, err := consumer.SubscribeControl(func(cmd models.CameraCommand) {
		slog.Info("camera command", "camera_id", cmd.CameraID, "action", cmd.Action)
		if err := supervisor.HandleCommand(cmd); err != nil {
			slog.Error("handle camera command", "camera_id", cmd.CameraID, "action", cmd.Action, "error", err)
		}
	})
	if err != nil {
		slog.Warn("subscribe camera control", "error", err)
	} else {
		defer func() { _ = sub.Unsubscribe() }()
	}

	// Metrics endpoint
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux(log, producer)}
	go func() {
		slog.Info("detector metrics listening", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down detector...")
	supervisor.StopAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := notifier.Close(shutdownCtx); err != nil {
		slog.Warn("pending fall alerts not delivered", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown error", "error", err)
	}
	slog.Info("detector stopped")
}

func metricsMux(log *streamlog.RedisLog, producer *queue.Producer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := log.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":"redis unavailable"}`)
			return
		}
		if err := producer.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":"nats unavailable"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
