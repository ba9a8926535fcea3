package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/jobs"
	"github.com/spec-kit/helpdesk/internal/mailer"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	handlerDeps := jobs.HandlerDependencies{
		Tickets:       repository.NewTicketRepository(pool),
		Users:         repository.NewUserRepository(pool),
		Notifications: repository.NewNotificationRepository(pool),
		Sessions:      repository.NewSessionRepository(pool),
		Mail:          mailer.NewSMTPSender(cfg.Mail, logger),
		Logger:        logger,
	}
	handlers := jobs.NewHandlers(handlerDeps)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    cfg.Queue.Concurrency,
		RetryDelayFunc: jobs.RetryDelay(time.Duration(cfg.Queue.RetryBaseDelaySec) * time.Second),
		Logger:         jobs.NewLogger(logger),
	})

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	scheduler, err := jobs.NewScheduler(redisOpt, cfg.Queue.ArchiveCronSpec, logger)
	if err != nil {
		logger.Fatal("failed to build scheduler", zap.Error(err))
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Fatal("scheduler stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := server.Run(mux); err != nil {
			logger.Fatal("worker stopped", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	scheduler.Shutdown()
	server.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
