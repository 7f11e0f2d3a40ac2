package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/roxannelandry/calibrate-my-run/internal/activity"
	"github.com/roxannelandry/calibrate-my-run/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("Error loading config", slog.Any("error", err))
		os.Exit(1)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(ctx, os.Stdout, os.Args[1:], logger, cfg); err != nil {
		logger.Error("Error running calibrate-my-run", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, args []string, logger *slog.Logger, cfg *config.Config) error {
	var activityService *activity.Service
	if cfg.DBPath != "" {
		db, err := sql.Open("sqlite3", cfg.DBPath)
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
		defer db.Close()

		activityService = activity.NewService(db, logger)
	}

	cli := activity.NewCLI(w, logger, activityService, activity.Options{
		Output: cfg.Output,
		Addr:   cfg.Addr,
	})

	if err := cli.Run(ctx, args); err != nil {
		return err
	}

	return nil
}
