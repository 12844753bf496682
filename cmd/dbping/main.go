// Package main is the dbping connectivity checker.
//
// It loads configuration, constructs the configured provider variant through
// the factory, connects, verifies a trivial round trip, and reports whether
// each table named on the command line exists. It is the smallest possible
// composition root for the data access layer and doubles as a deployment
// smoke test:
//
//	DB_BACKEND=direct DATABASE_URL=postgres://... dbping flights accommodations
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tripbase/internal/config"
	"tripbase/internal/database"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code. os.Exit skips deferred calls, so the
// Disconnect cleanup lives here and main exits on the returned code.
func run(names []string) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := database.Get(cfg, logger, false)
	if err != nil {
		logger.Error("failed to construct provider", "backend", cfg.Backend, "error", err)
		return 1
	}

	if err := provider.Connect(ctx); err != nil {
		logger.Error("failed to connect", "backend", cfg.Backend, "error", err)
		return 1
	}
	defer func() {
		if err := provider.Disconnect(context.Background()); err != nil {
			logger.Error("failed to disconnect", "error", err)
		}
	}()

	res, err := provider.ExecuteSQL(ctx, "SELECT 1 AS ok", nil)
	if err != nil {
		logger.Error("round-trip query failed", "error", err)
		return 1
	}
	logger.Info("database reachable", "backend", cfg.Backend, "rows", res.Count)

	if len(names) > 0 {
		exists, err := provider.TablesExist(ctx, names)
		if err != nil {
			logger.Error("table existence check failed", "error", err)
			return 1
		}
		for _, name := range names {
			logger.Info("table checked", "table", name, "exists", exists[name])
		}
	}
	return 0
}

// parseLevel maps the configured log level string to a slog level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
