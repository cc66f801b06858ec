package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapbox_console/internal/config"
	"snapbox_console/internal/logging"
	"snapbox_console/internal/models"
	"snapbox_console/internal/services"
	"snapbox_console/internal/tasks"
)

var (
	argsStr    string
	dueStr     string
	taskType   string
	recurring  string
	maxAttempt int
)

var rootCmd = &cobra.Command{
	Use:   "schedule_task <task_name>",
	Short: "Enqueue a task for the SnapBox worker",
	Long: `Creates a scheduled task that the worker runs once it is due.

Known tasks: log_info, report_logout, prune_session_logs.`,
	Example: `  schedule_task log_info --arguments '{"message":"hi"}' --due "2024-06-01 09:00"
  schedule_task prune_session_logs --tasktype recurring --recurring FREQ=DAILY`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&argsStr, "arguments", "{}", "JSON arguments for the task")
	rootCmd.Flags().StringVar(&dueStr, "due", "", "Due date, '2006-01-02 15:04' (local) or RFC3339; default now")
	rootCmd.Flags().StringVar(&taskType, "tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	rootCmd.Flags().StringVar(&recurring, "recurring", "", "RRULE for recurring tasks, e.g. FREQ=DAILY")
	rootCmd.Flags().IntVar(&maxAttempt, "max_attempt", 3, "Max attempts")
}

func run(cmd *cobra.Command, positional []string) error {
	taskName := positional[0]
	if _, ok := tasks.DefineTasks(tasks.NewRegistry()).Get(taskName); !ok {
		return fmt.Errorf("unknown task %q", taskName)
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}

	due, err := parseDue(dueStr)
	if err != nil {
		return err
	}

	tt := models.ScheduledTaskType(taskType)
	var recurringPtr *string
	switch tt {
	case models.ScheduledTaskTypeOneTime:
	case models.ScheduledTaskTypeRecurring:
		if recurring == "" {
			return fmt.Errorf("--recurring is required for recurring tasks")
		}
		recurringPtr = &recurring
	default:
		return fmt.Errorf("invalid task type %q", taskType)
	}

	config.LoadDotEnv(zap.NewNop())
	logger := logging.Must(os.Getenv("ENV"))
	defer logger.Sync()

	cfg := config.Load(logger)
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to connect DB: %w", err)
	}

	task, err := tasks.BuildScheduledTask(taskName, args, due, recurringPtr, tt, maxAttempt)
	if err != nil {
		return err
	}
	if err := db.WithContext(cmd.Context()).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Successfully created task ID: %d\n", task.ID)
	fmt.Fprintf(out, "Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due.Format(time.RFC3339), task.TaskType)
	return nil
}

func parseDue(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date, use '2006-01-02 15:04' (local) or RFC3339: %w", err)
	}
	return due, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
