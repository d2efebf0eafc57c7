package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"accounting-engine/internal/adapters/cli"
	"accounting-engine/internal/app"
	"accounting-engine/internal/config"
	"accounting-engine/internal/core"
	"accounting-engine/internal/db"
	"accounting-engine/internal/lock"
	"accounting-engine/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// CLI output goes to stdout; logs stay readable on stderr.
	cfg.LogFormat = "text"
	logger := config.NewLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	locker, closeLocker, err := lock.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("posting lock: %v", err)
	}
	defer closeLocker()

	svc := app.NewAppService(postgres.New(pool), locker, logger, cfg.TxTimeout)
	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := 1
		if errors.Is(err, cli.ErrUsage) {
			code = 2
		} else if core.KindOf(err) == core.KindRetryable {
			code = 75
		}
		pool.Close()
		os.Exit(code)
	}
}
