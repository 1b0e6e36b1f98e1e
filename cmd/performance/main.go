package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/trogers1052/recommendation-performance/internal/config"
	"github.com/trogers1052/recommendation-performance/internal/database"
	"github.com/trogers1052/recommendation-performance/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "performance",
	Short:         "Recommendation performance service",
	Long:          `Tracks how AI recommendations perform against realized market prices.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, evaluateCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, builds the logger and opens the database
func bootstrap() (*config.Config, zerolog.Logger, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, log, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, log, db, nil
}
