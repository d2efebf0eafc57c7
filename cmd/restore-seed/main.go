// restore-seed resets the database to its freshly seeded state: every migration is
// rolled back and reapplied, so all postings are lost and only the reference data
// from the seed migration remains.
// Refuses to run unless CONFIRM_RESET=yes is set.
//
// Usage: CONFIRM_RESET=yes go run ./cmd/restore-seed
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"accounting-engine/internal/config"
	"accounting-engine/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(cfg)

	if os.Getenv("CONFIRM_RESET") != "yes" {
		logger.Fatal("refusing to reset: set CONFIRM_RESET=yes to wipe all postings")
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	if err := db.Reset(cfg.DatabaseURL, logger); err != nil {
		logger.Fatalf("reset failed: %v", err)
	}
	logger.Info("Seed data restored successfully.")
}
