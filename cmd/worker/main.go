package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"snapbox_console/internal/config"
	"snapbox_console/internal/logging"
	"snapbox_console/internal/services"
	"snapbox_console/internal/tasks"
)

const tickInterval = 5 * time.Minute

func main() {
	config.LoadDotEnv(logging.Must(os.Getenv("ENV")))
	logger := logging.Must(os.Getenv("ENV"))
	defer logger.Sync()

	cfg := config.Load(logger)
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := services.AutoMigrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := tasks.NewScheduler(db).EnsureRecurring(ctx, tasks.PruneSessionLogsTask.TaskID(),
		map[string]int{"older_than_days": 90}, tasks.DailyRule)
	if err != nil {
		logger.Error("Failed to schedule session log pruning", zap.Error(err))
	} else if created {
		logger.Info("Scheduled daily session log pruning")
	}

	runner := tasks.NewRunner(tasks.DefineTasks(tasks.NewRegistry()), tasks.Deps{
		DB:       db,
		Reporter: services.NewSnapBoxAPI(cfg.APIBaseURL, cfg.APITimeout),
		Logger:   logger,
	})

	logger.Info("Worker started", zap.Duration("interval", tickInterval))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Run once on start, then on every tick
	process(ctx, runner, logger)
	for {
		select {
		case <-ticker.C:
			process(ctx, runner, logger)
		case <-ctx.Done():
			logger.Info("Shutting down worker...")
			return
		}
	}
}

func process(ctx context.Context, runner *tasks.Runner, logger *zap.Logger) {
	n, err := runner.ProcessDue(ctx)
	if err != nil {
		logger.Error("Error processing tasks", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("Processed tasks", zap.Int("count", n))
	}
}
