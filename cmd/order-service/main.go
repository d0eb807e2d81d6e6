package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/museo-app/marketplace/internal/auth/supabase"
	inventoryApp "github.com/museo-app/marketplace/internal/inventory/application"
	inventorypg "github.com/museo-app/marketplace/internal/inventory/infrastructure/postgres"
	"github.com/museo-app/marketplace/internal/order/application"
	orderhttp "github.com/museo-app/marketplace/internal/order/infrastructure/http"
	orderkafka "github.com/museo-app/marketplace/internal/order/infrastructure/kafka"
	"github.com/museo-app/marketplace/internal/order/infrastructure/memory"
	orderpg "github.com/museo-app/marketplace/internal/order/infrastructure/postgres"
	"github.com/museo-app/marketplace/internal/payment/infrastructure/xendit"
	"github.com/museo-app/marketplace/migrations"
	"github.com/museo-app/marketplace/pkg/config"
	"github.com/museo-app/marketplace/pkg/dbmigrate"
	"github.com/museo-app/marketplace/pkg/health"
	"github.com/museo-app/marketplace/pkg/idempotency"
	"github.com/museo-app/marketplace/pkg/logging"
	"github.com/museo-app/marketplace/pkg/outbox"
	"github.com/museo-app/marketplace/pkg/shutdown"
	"github.com/museo-app/marketplace/pkg/tracing"
)

const serviceName = "order-service"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "order cancellation API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the outbox relay",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrate(*cli.Context) error {
	cfg, err := config.LoadOrderService()
	if err != nil {
		return err
	}
	return dbmigrate.Up(logging.New(cfg.LogLevel), migrations.FS, cfg.Postgres.URL)
}

// ports bundles the storage side of the service for one STORE_DRIVER.
type ports struct {
	orders    application.OrderStore
	items     inventoryApp.ItemRepository
	publisher application.NotificationPublisher
	locker    application.Locker
	relay     *outbox.Relay
	close     func()
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadOrderService()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(c.Context)
	defer cancel()

	tp, err := tracing.Init(ctx, serviceName, cfg.Tracing.Endpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}

	p, err := buildPorts(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	payments := xendit.NewClient(log, cfg.Xendit.BaseURL, cfg.Xendit.SecretKey, cfg.Xendit.Timeout)
	inventory := inventoryApp.NewService(log, p.items)
	svc := application.NewService(log, p.orders, inventory, payments, p.publisher, p.locker,
		application.WithNoticeTimeout(cfg.NoticeTimeout))

	verifier := supabase.NewVerifier(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	handler := orderhttp.NewHandler(log, svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, orderhttp.Authenticate(log, verifier))
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	gs, hs, err := health.Run(cfg.GRPCAddr, serviceName)
	if err != nil {
		return fmt.Errorf("grpc health: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.relay != nil {
		g.Go(func() error { return p.relay.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hs.Shutdown()
		return shutdown.Graceful(10*time.Second,
			srv.Shutdown,
			func(context.Context) error { gs.GracefulStop(); return nil },
			func(context.Context) error { svc.Close(); return nil },
			tp.Shutdown,
		)
	})

	err = g.Wait()
	log.Info("order-service shutdown complete", "err", err)
	return err
}

func buildPorts(ctx context.Context, log *slog.Logger, cfg config.OrderService) (*ports, error) {
	switch cfg.StoreDriver {
	case "memory":
		store := memory.NewStore()
		return &ports{
			orders:    store,
			items:     store,
			publisher: memory.NewPublisher(log),
			locker:    memory.NewLocker(),
			close:     func() {},
		}, nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	writer := orderkafka.NewWriter(cfg.Kafka.Brokers)

	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.NotificationsTopic)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, serviceName+"-relay")

	return &ports{
		orders:    orderpg.NewRepository(log, pool),
		items:     inventorypg.NewRepository(log, pool),
		publisher: orderpg.NewPublisher(log, pool),
		locker:    idempotency.NewLocker(rdb, cfg.Redis.LockTTL),
		relay:     relay,
		close: func() {
			_ = writer.Close()
			_ = rdb.Close()
			pool.Close()
		},
	}, nil
}
