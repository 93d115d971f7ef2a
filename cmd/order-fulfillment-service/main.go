// Package main boots the Order Fulfillment Service HTTP server.
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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/order-fulfillment-service/internal/config"
	httpapi "github.com/fairyhunter13/order-fulfillment-service/internal/http"
	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
	"github.com/fairyhunter13/order-fulfillment-service/internal/queue"
	"github.com/fairyhunter13/order-fulfillment-service/internal/relay"
	"github.com/fairyhunter13/order-fulfillment-service/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Load()
	cmd := &cobra.Command{
		Use:          "order-fulfillment-service",
		Short:        "Inventory, order allocation and transaction ledger over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	cmd.Flags().BoolVar(&cfg.SeedSampleData, "seed", cfg.SeedSampleData, "load the sample product catalogue at startup")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting", "addr", cfg.HTTPAddr)

	pub, closePub, err := newPublisher(ctx, cfg)
	if err != nil {
		obs.Logger.Error("relay_publisher_error", "error", err)
		return err
	}
	defer closePub()

	q := queue.New(128)
	mgr := queue.NewManager(cfg, q, pub)
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()
	mgr.Start(relayCtx)

	svc := service.New(service.Options{
		LockTimeout:       cfg.LockTimeout,
		LowStockThreshold: int64(cfg.LowStockThreshold),
		TransactionsLimit: cfg.TransactionsLimit,
		Sink:              mgr,
	})
	if cfg.SeedSampleData {
		n, err := svc.SeedSampleData()
		if err != nil {
			obs.Logger.Error("seed_failed", "error", err)
			return err
		}
		obs.Logger.Info("seed_loaded", "products", n)
	}

	app := httpapi.NewApp(cfg, svc, mgr)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		obs.Logger.Info("shutdown_signal")
		app.StartShutdown()
		ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelSrv()
		if err := srv.Shutdown(ctxSrv); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	err = g.Wait()
	if err != nil {
		obs.Logger.Error("http_server_error", "error", err)
	}

	// No request is running now; close intake and flush what the ledger produced.
	mgr.CloseIntake()
	obs.Logger.Info("shutdown_drain_begin", "backlog_size", mgr.QueueMetrics().BacklogSize, "worker_count", mgr.WorkerCount())
	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := mgr.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}
	mgr.Stop()
	obs.Logger.Info("service_stopped")
	return err
}

// newPublisher picks RabbitMQ when AMQP_URL is set and the structured log otherwise.
func newPublisher(ctx context.Context, cfg config.Config) (queue.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		obs.Logger.Info("relay_publisher", "kind", "log")
		return relay.LogPublisher{}, func() {}, nil
	}
	conn, ch, err := relay.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, err
	}
	obs.Logger.Info("relay_publisher", "kind", "amqp", "exchange", cfg.AMQPExchange)
	return relay.NewAMQPPublisher(ch, cfg.AMQPExchange), func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}
