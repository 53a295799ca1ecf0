// Command migrate applies the embedded schema migrations and exits.
// Useful for running migrations out of band of service startup.
package main

import (
	"context"
	"fmt"
	"os"

	"escrow-trade-service/config"
	pgStorage "escrow-trade-service/internal/adapter/storage/postgres"
	"escrow-trade-service/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := pgStorage.Migrate(context.Background(), cfg.Database.DSN(), log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}
