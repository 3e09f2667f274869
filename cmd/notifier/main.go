package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/resqbox/resqbox/internal/config"
	kafkax "github.com/resqbox/resqbox/internal/kafka"
	"github.com/resqbox/resqbox/internal/logging"
	"github.com/resqbox/resqbox/internal/notify"
)

// The notifier is the delivery side of the event stream: it consumes every
// order and payment topic and hands the event to a delivery channel. Until a
// real push/email provider is attached it logs the delivery.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName + "-notifier")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range notify.AllTopics() {
		c := kafkax.NewConsumer(cfg.KafkaBrokers, "resqbox-notifier", topic, 4, logger)
		g.Go(func() error {
			return c.Start(gctx, deliver(logger))
		})
	}

	logger.Info("notifier running", zap.Int("topics", len(notify.AllTopics())))
	if err := g.Wait(); err != nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
}

func deliver(logger *zap.Logger) kafkax.Handler {
	return func(_ context.Context, m kafka.Message) error {
		var env notify.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			// Poison message: log and commit, re-reading it will not help.
			logger.Error("undecodable event", zap.String("topic", m.Topic), zap.Error(err))
			return nil
		}
		var ref notify.OrderRef
		if err := json.Unmarshal(env.Payload, &ref); err != nil {
			logger.Error("undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}

		logger.Info("notification delivered",
			zap.String("event_type", env.EventType),
			zap.String("order_number", ref.OrderNumber),
			zap.String("customer_id", ref.CustomerID),
			zap.String("status", ref.Status),
			zap.String("reason", ref.Reason),
		)
		return nil
	}
}
