package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/notification"
	"github.com/sirupsen/logrus"
)

// Dedicated consumer group so every notifier instance shares the stream.
const consumerGroup = "email-notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component(logger, "notifier")

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
		"group":   consumerGroup,
		"smtp":    cfg.SMTPHost + ":" + cfg.SMTPPort,
	}).Info("starting email notifier")

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, log)
	defer consumer.Close()

	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("consumer stopped")
		os.Exit(1)
	}
	log.Info("shutting down")
}
