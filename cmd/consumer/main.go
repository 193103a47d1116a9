package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/training/internal/config"
	"example.com/training/internal/domain"
	"example.com/training/internal/events"
	"example.com/training/internal/ingest"
	"example.com/training/internal/ingest/mqtt"
	"example.com/training/internal/logging"
	"example.com/training/internal/persistence"
	"example.com/training/internal/telemetry"
	httptransport "example.com/training/internal/transport/http"
)

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeLogger := logging.Component(logger, "store")
	store, err := persistence.Open(ctx, cfg.StoreURI, persistence.Options{Database: cfg.StoreDatabase, Logger: storeLogger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure session store")
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			storeLogger.Warn().Err(err).Msg("store close failed")
		}
	}()
	if err := store.Prepare(ctx); err != nil {
		storeLogger.Error().Err(err).Msg("session store unreachable at startup")
	}

	opts := []domain.ServiceOption{domain.WithLogger(logging.Component(logger, "service"))}
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.SessionEventsTopic)
		defer producer.Close()
		opts = append(opts, domain.WithPublisher(producer))
	}
	service := domain.NewService(store, opts...)

	ingestLogger := logging.Component(logger, "ingest")
	worker := ingest.NewWorker(
		mqtt.NewDialer(mqtt.Config{
			BrokerURL:      cfg.BrokerURL,
			Username:       cfg.BrokerUsername,
			Password:       cfg.BrokerPassword,
			ConnectTimeout: cfg.ConnectTimeout,
		}, ingestLogger),
		telemetry.NewNormalizer(cfg.DefaultOwner, cfg.DefaultEquipment),
		service,
		ingest.Config{
			Topic:             cfg.Topic,
			ClientIDPrefix:    cfg.ClientIDPrefix,
			ReconnectInterval: cfg.ReconnectInterval,
			BufferSize:        cfg.IngestBuffer,
		},
		ingest.WithLogger(ingestLogger),
	)

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if worker.State() != ingest.StateSubscribed {
			http.Error(w, worker.State().String(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	metricsLogger := logging.Component(logger, "metrics")
	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), mux, metricsLogger)

	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := metricsSrv.Serve(ctx); err != nil {
			metricsLogger.Error().Err(err).Msg("metrics server error")
		}
	}()

	ingestLogger.Info().Str("broker", cfg.BrokerURL).Str("topic", cfg.Topic).Msg("consumer started")
	_ = worker.Run(ctx)
	<-metricsDone
	ingestLogger.Info().Msg("consumer shutdown complete")
}
