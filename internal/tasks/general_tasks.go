package tasks

import (
	"context"

	"go.uber.org/zap"

	"snapbox_console/internal/models"
)

// LogInfoTaskDef writes its message to the worker log. Useful to check that
// the worker picks tasks up.
type LogInfoTaskDef struct{}

func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	deps.Logger.Info("log_info task", zap.String("message", message), zap.Uint("task_id", task.ID))

	return map[string]interface{}{
		"status":  "success",
		"message": message,
	}, nil
}

var LogInfoTask = &LogInfoTaskDef{}
