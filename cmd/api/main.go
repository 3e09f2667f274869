package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/resqbox/resqbox/internal/carts"
	"github.com/resqbox/resqbox/internal/clock"
	"github.com/resqbox/resqbox/internal/config"
	"github.com/resqbox/resqbox/internal/httpx"
	kafkax "github.com/resqbox/resqbox/internal/kafka"
	"github.com/resqbox/resqbox/internal/logging"
	"github.com/resqbox/resqbox/internal/notify"
	"github.com/resqbox/resqbox/internal/offers"
	"github.com/resqbox/resqbox/internal/orders"
	"github.com/resqbox/resqbox/internal/payments"
	"github.com/resqbox/resqbox/internal/postgres"
	"github.com/resqbox/resqbox/internal/redisx"
	"github.com/resqbox/resqbox/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	producer := kafkax.NewProducer(cfg.KafkaBrokers, logger, 1024)
	producer.Start()

	clk := clock.NewSystem()

	ledger := offers.NewLedger(db, cfg.LockWaitTimeout)
	cartSvc := carts.NewService(carts.NewRedisStore(rdb), ledger, clk, cfg.CartTTL)

	paymentRepo := payments.NewRepo(db)
	gateway := payments.NewSandboxGateway()
	orchestrator := payments.NewOrchestrator(paymentRepo, gateway, clk, logger)
	webhooks := payments.NewWebhookProcessor(paymentRepo, redisx.NewDeduper(rdb), cfg.GatewaySecret, clk, logger)

	publisher := notify.NewPublisher(producer, cfg.ServiceName, logger)
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

	router := httpx.NewRouter()
	(&httpx.CartsHandler{Carts: cartSvc}).Register(router)
	(&httpx.OrdersHandler{Orders: orderSvc, Offers: ledger}).Register(router)
	(&httpx.WebhookHandler{Processor: webhooks, Log: logger}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	producer.Close()
	producer.WaitClosed()
}
