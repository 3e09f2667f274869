package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/resqbox/resqbox/internal/carts"
	"github.com/resqbox/resqbox/internal/clock"
	"github.com/resqbox/resqbox/internal/config"
	kafkax "github.com/resqbox/resqbox/internal/kafka"
	"github.com/resqbox/resqbox/internal/logging"
	"github.com/resqbox/resqbox/internal/notify"
	"github.com/resqbox/resqbox/internal/offers"
	"github.com/resqbox/resqbox/internal/orders"
	"github.com/resqbox/resqbox/internal/payments"
	"github.com/resqbox/resqbox/internal/postgres"
	"github.com/resqbox/resqbox/internal/redisx"
	"github.com/resqbox/resqbox/internal/sweeper"
)

// The sweeper runs off the request path: it shares the API's storage and
// bus but never its process, so a slow sweep cannot stall request serving.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName + "-sweeper")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	producer := kafkax.NewProducer(cfg.KafkaBrokers, logger, 1024)
	producer.Start()

	clk := clock.NewSystem()
	ledger := offers.NewLedger(db, cfg.LockWaitTimeout)
	cartSvc := carts.NewService(carts.NewRedisStore(rdb), ledger, clk, cfg.CartTTL)
	orchestrator := payments.NewOrchestrator(payments.NewRepo(db), payments.NewSandboxGateway(), clk, logger)
	publisher := notify.NewPublisher(producer, cfg.ServiceName+"-sweeper", logger)

	orderSvc := orders.NewService(
		orders.NewRepo(db), ledger, orchestrator, cartSvc, publisher, clk, logger,
		orders.Config{
			AcceptanceWindow: cfg.AcceptanceWindow,
			PickupWindow:     cfg.PickupWindow,
			CompletionWindow: cfg.CompletionWindow,
			CreatedGrace:     cfg.CreatedGrace,
			ServiceFeeCents:  cfg.ServiceFeeCents,
			Currency:         cfg.Currency,
		},
	)

	sw := sweeper.New(orderSvc, cfg.SweepInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sw.Run(gctx)
		return nil
	})

	logger.Info("sweeper running", zap.Duration("interval", cfg.SweepInterval))
	_ = g.Wait()

	producer.Close()
	producer.WaitClosed()
}
