package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"example.com/training/internal/api"
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

type publisher interface {
	domain.Publisher
	Close() error
}

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
		// Requests made while the store is unreachable fail individually.
		storeLogger.Error().Err(err).Msg("session store unreachable at startup")
	}

	var pub publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.SessionEventsTopic)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.SessionEventsTopic).Msg("session event fan-out enabled")
	}
	defer pub.Close()

	service := domain.NewService(store,
		domain.WithPublisher(pub),
		domain.WithLogger(logging.Component(logger, "service")),
	)

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

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ingestLogger.Info().Str("broker", cfg.BrokerURL).Str("topic", cfg.Topic).Msg("ingestion worker started")
		_ = worker.Run(ctx)
		ingestLogger.Info().Msg("ingestion worker stopped")
	}()

	apiLogger := logging.Component(logger, "api")
	router := api.NewRouter(api.NewHandler(service), api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         apiLogger,
	})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress()), router, apiLogger)

	if err := server.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("http server error")
		stop()
	}

	wg.Wait()
	logger.Info().Msg("training service stopped")
}
