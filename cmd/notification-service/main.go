package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/museo-app/marketplace/internal/notification/application"
	notificationkafka "github.com/museo-app/marketplace/internal/notification/infrastructure/kafka"
	notificationpg "github.com/museo-app/marketplace/internal/notification/infrastructure/postgres"
	"github.com/museo-app/marketplace/migrations"
	"github.com/museo-app/marketplace/pkg/config"
	"github.com/museo-app/marketplace/pkg/dbmigrate"
	"github.com/museo-app/marketplace/pkg/health"
	"github.com/museo-app/marketplace/pkg/idempotency"
	"github.com/museo-app/marketplace/pkg/logging"
	"github.com/museo-app/marketplace/pkg/shutdown"
	"github.com/museo-app/marketplace/pkg/tracing"
)

const serviceName = "notification-service"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "deliver order notifications to user inboxes",
		Commands: []*cli.Command{
			{Name: "serve", Usage: "consume the notifications topic", Action: serve},
			{Name: "migrate", Usage: "apply database migrations", Action: migrate},
		},
		DefaultCommand: "serve",
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrate(*cli.Context) error {
	cfg, err := config.LoadNotificationService()
	if err != nil {
		return err
	}
	return dbmigrate.Up(logging.New(cfg.LogLevel), migrations.FS, cfg.Postgres.URL)
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadNotificationService()
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

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("pg connect: %w", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.Redis.IdemTTL)

	svc := application.NewService(log, notificationpg.NewRepository(log, pool))
	reader := notificationkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, cfg.ConsumerGroup)
	consumer := notificationkafka.NewConsumer(log, reader, svc, idem)

	gs, hs, err := health.Run(cfg.GRPCAddr, serviceName)
	if err != nil {
		return fmt.Errorf("grpc health: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consuming", "topic", cfg.Kafka.NotificationsTopic, "group", cfg.ConsumerGroup)
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		hs.Shutdown()
		return shutdown.Graceful(10*time.Second,
			func(context.Context) error { gs.GracefulStop(); return nil },
			tp.Shutdown,
		)
	})

	err = g.Wait()
	log.Info("notification-service shutdown complete", "err", err)
	return err
}
