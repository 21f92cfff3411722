package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/api"
	"naijaedu/alerts-service/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and both cron schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.orchestrator, a.cascade, scheduler.Config{
		CheckIntervalHours: a.cfg.CheckIntervalHours,
		DeadlineSpec:       a.cfg.DeadlineCron,
		DaysBefore:         a.cfg.DeadlineDaysBefore,
		RunTimeout:         a.cfg.RunTimeout,
	}, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	h := api.NewHandler(a.orchestrator, a.cascade, a.executor, a.cfg.RunTimeout, version, a.logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Port),
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: a.cfg.RunTimeout + 30*time.Second, // admin runs are synchronous
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("version", version), zap.String("port", a.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	a.logger.Info("stopped")
	return nil
}
