package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	categoryrepo "affirmation-wave/backend/internal/category/repository"
	"affirmation-wave/backend/internal/config"
	"affirmation-wave/backend/internal/db"
	wavehttp "affirmation-wave/backend/internal/http"
	"affirmation-wave/backend/internal/notification"
	"affirmation-wave/backend/internal/reconciler"
	reflectionrepo "affirmation-wave/backend/internal/reflection/repository"
	reflectionservice "affirmation-wave/backend/internal/reflection/service"
	"affirmation-wave/backend/internal/speech"
	userrepo "affirmation-wave/backend/internal/user/repository"
	waverepo "affirmation-wave/backend/internal/wave/repository"
	waveservice "affirmation-wave/backend/internal/wave/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	logger, err := zap.NewProduction()
	if cfg.Env == "development" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	defer database.Close()

	users := userrepo.NewPostgresRepository(database)
	categories := categoryrepo.NewPostgresRepository(database)
	sessions := reflectionrepo.NewPostgresRepository(database)
	waves := waverepo.NewPostgresRepository(database)

	speechClient := speech.NewClient(cfg.TranscribeURL, cfg.TransformURL, cfg.SynthURL, cfg.AssetStoreURL, cfg.SpeechAPIKey)

	engine := reflectionservice.NewEngine(
		sessions, waves, users, categories,
		speechClient, speechClient, speechClient, speechClient,
		cfg.DefaultTTSVoice, logger,
	)
	scheduler := waveservice.NewScheduler(waves, sessions, logger)

	producer, err := notification.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.CompletionKafkaTopic)
	if err != nil {
		logger.Fatal("kafka producer", zap.Error(err))
	}
	var producerIface notification.Producer
	if producer != nil {
		producerIface = producer
		defer func() { _ = producer.Close() }()
	} else {
		logger.Info("KAFKA_BROKERS not set; completion events disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := reconciler.New(waves, sessions, users, producerIface, cfg.ReconcileEvery(), logger)
	go sweeper.Run(ctx)

	server := wavehttp.NewServer(engine, scheduler, users, categories, logger)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
