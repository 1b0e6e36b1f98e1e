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
	"github.com/trogers1052/recommendation-performance/internal/api"
	"github.com/trogers1052/recommendation-performance/internal/kafka"
	"github.com/trogers1052/recommendation-performance/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, Kafka consumer and evaluation scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().Msg("Starting recommendation performance service")

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := wire(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer w.Close()

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.RecommendationTopic, cfg.Kafka.ConsumerGroup, w.service, log)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Kafka consumer stopped")
			}
		}()
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(log)
		job := scheduler.NewEvaluationJob(w.service, 0, log)
		if err := sched.AddJob(cfg.Scheduler.Cron, job); err != nil {
			return fmt.Errorf("failed to register evaluation job: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	handler := api.NewHandler(w.service, db, w.cache, cfg.Scheduler.Token, log)
	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           api.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
