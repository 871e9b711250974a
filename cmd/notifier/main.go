package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	notifierservice "reservo/internal/notifier/service"
	"reservo/pkg/config"
	"reservo/pkg/kafka"
	kafka_config "reservo/pkg/kafka/config"
	kafkamiddleware "reservo/pkg/kafka/middleware"
	"reservo/pkg/sealer"
)

const ServiceName = "reservo-notifier"

func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	seal, err := sealer.New(cfg.ConfirmationKey)
	if err != nil {
		cfg.Log.Fatal("Invalid confirmation key", "error", err)
	}

	sender := notifierservice.NewLogSender(cfg.Log)
	notifier := notifierservice.NewNotifierService(sender, seal, cfg.Log)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.ReservationEventsTopic,
		cfg.NotifierGroupID,
		cfg.ReservationEventsDLQ,
		notifier.HandleMessage,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafkamiddleware.MetricsConsumerMiddleware())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		cfg.Log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	cfg.Log.Info("Starting notifier consumer",
		"topic", cfg.ReservationEventsTopic,
		"group_id", cfg.NotifierGroupID,
	)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}

	cfg.Log.Info("Notifier stopped gracefully")
}
