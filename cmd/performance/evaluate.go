package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/trogers1052/recommendation-performance/internal/performance"
)

var evaluateUser string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one evaluation pass and print the result",
	Long: `Backfills snapshots for recommendations that have none and evaluates every
open snapshot whose horizon has come due. Use --user all for every user.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateUser, "user", "u", performance.AllUsers, "user id, or \"all\"")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()

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

	result, err := w.service.RunEvaluation(ctx, evaluateUser)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("evaluation finished with %d errors", result.Errors)
	}
	return nil
}
