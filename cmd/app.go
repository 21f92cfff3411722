package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"naijaedu/alerts-service/internal/alerts"
	"naijaedu/alerts-service/internal/config"
	"naijaedu/alerts-service/internal/db"
	"naijaedu/alerts-service/internal/events"
	"naijaedu/alerts-service/internal/lock"
	"naijaedu/alerts-service/internal/mailer"
	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/savedsearch"
	"naijaedu/alerts-service/internal/search"
	"naijaedu/alerts-service/internal/store"
)

// app holds the wired service graph shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client

	orchestrator *alerts.Orchestrator
	cascade      *alerts.Cascade
	executor     *savedsearch.Service
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	logConfig := zap.NewProductionConfig()
	logConfig.Level = lvl
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return logConfig.Build(zap.Fields(zap.String("service", "alerts-service")))
}

// newApp loads config and connects to PostgreSQL and Redis.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logger.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, int32(cfg.WorkerCount+4))
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	logger.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, cfg.WorkerCount)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		rdb.Close()
		pool.Close()
		return nil, err
	}

	st := store.New(pool)
	index := search.NewClient(cfg.SearchURL, cfg.SearchAPIKey, cfg.SearchRatePerSec)
	indexes := savedsearch.Indexes{
		model.KindPrograms:     cfg.ProgramsIndex,
		model.KindInstitutions: cfg.InstitutionsIndex,
	}
	composer := alerts.NewComposer(cfg.AppBaseURL)
	publisher := events.NewRedisPublisher(rdb)
	opts := alerts.Options{Workers: cfg.WorkerCount, ItemTimeout: cfg.ItemTimeout}

	detector := alerts.NewDetector(index, indexes, cfg.DetectPageSize)
	dispatcher := alerts.NewDispatcher(st, st, notifier, composer, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		rdb:          rdb,
		orchestrator: alerts.NewOrchestrator(st, detector, dispatcher, lock.NewRedisLocker(rdb), publisher, opts, logger),
		cascade:      alerts.NewCascade(st, st, notifier, composer, publisher, opts, logger),
		executor:     savedsearch.NewService(st, index, indexes, cfg.ExecutePageSize, logger),
	}, nil
}

func newNotifier(cfg *config.Config, logger *zap.Logger) (mailer.Notifier, error) {
	var n mailer.Notifier
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, alert emails are logged instead of sent")
		n = mailer.NewLogMailer(logger)
	} else {
		m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.MailFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp: %w", err)
		}
		n = m
	}
	return mailer.NewRateLimited(n, cfg.MailRatePerSec), nil
}

func (a *app) Close() {
	a.rdb.Close()
	a.pool.Close()
	_ = a.logger.Sync()
}
