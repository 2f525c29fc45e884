package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safar/go-order-engine/internal/collab"
	"github.com/safar/go-order-engine/internal/collab/kafkanotify"
	"github.com/safar/go-order-engine/internal/config"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/httpapi"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/observability"
	"github.com/safar/go-order-engine/internal/orders"
	"github.com/safar/go-order-engine/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	var notifier collab.PaymentNotifier = collab.NopNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		kn := kafkanotify.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kn.Close(); err != nil {
				logger.Warn("kafka writer close error", zap.Error(err))
			}
		}()
		notifier = kn
		logger.Info("payment events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	clients := collab.NewHTTPClients(
		cfg.Collab.AddressURL, cfg.Collab.CatalogURL, cfg.Collab.CartURL, cfg.Collab.Timeout)

	svc, err := orders.NewService(orders.Deps{
		Repo:      store.NewOrders(db),
		Addresses: clients.AddressBook,
		Catalog:   clients.Catalog,
		Cart:      clients.Cart,
		Notifier:  notifier,
		Metrics:   metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("build order service: %w", err)
	}

	router := httpapi.NewRouter(httpapi.NewHandler(svc, logger), db.Ping)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
