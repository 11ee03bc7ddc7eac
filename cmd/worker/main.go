package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/email"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logger"
)

// The worker turns ticket notifications into emails.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logg)
	defer consumer.Close()

	sender := email.NewSender(cfg.SMTP, logg)

	logg.Info("worker started", "topic", cfg.Kafka.NotificationsTopic, "group", cfg.Kafka.GroupID)
	err = consumer.ConsumeTicketEvents(ctx, func(ctx context.Context, event kafka.TicketEvent) error {
		if err := sender.Send(ctx, event); err != nil {
			// A broken mailbox must not stall the partition.
			logg.Error("send notification", "ticket_id", event.TicketID, "type", event.Type, "error", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	logg.Info("worker stopped")
}
