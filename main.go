package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dashgate/internal/config"
	"dashgate/internal/logging"
	"dashgate/internal/services"
	"dashgate/pkg/rabbitmq"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	// --- Configuration ---
	v := viper.New()
	config.SetDefaults(v)
	v.AutomaticEnv()

	cfg, err := config.Load(v)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	// --- Auth events (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Logger: logger})
		if err != nil {
			logger.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		publisher = mqClient

		if err := mqClient.ConsumeAuthEvents(rabbitmq.LogAuthEvent(logger.WithField("component", "audit"))); err != nil {
			logger.Errorf("Failed to start auth event consumer: %v", err)
		}
	} else {
		logger.Info("RABBITMQ_URL not set, auth events disabled")
	}

	// --- HTTP app ---
	app, cleanup, err := NewApp(context.Background(), cfg, publisher, logger)
	if err != nil {
		logger.Fatalf("Failed to create app: %v", err)
	}
	defer cleanup()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithField("addr", cfg.AppPort).Info("Starting server")
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		logger.Errorf("Error during Fiber shutdown: %v", err)
	}
	logger.Info("Server gracefully stopped")
}
