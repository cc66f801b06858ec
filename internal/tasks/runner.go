package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"snapbox_console/internal/models"
)

// retryBackoff is the delay before the given failed attempt is retried
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 5 * time.Minute
}

// Runner executes due tasks and records their history
type Runner struct {
	registry *Registry
	deps     Deps
	now      func() time.Time
}

func NewRunner(registry *Registry, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{registry: registry, deps: deps, now: time.Now}
}

// ProcessDue runs every active task whose due time has passed and returns how
// many were executed.
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	now := r.now()
	err := r.deps.DB.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due asc").
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	if len(pending) == 0 {
		r.deps.Logger.Debug("No pending tasks found")
		return 0, nil
	}
	r.deps.Logger.Info("Found pending tasks", zap.Int("count", len(pending)))

	processed := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		r.execute(ctx, task)
		processed++
	}
	return processed, nil
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	db := r.deps.DB.WithContext(ctx)
	log := r.deps.Logger.With(zap.String("task", task.TaskName), zap.Uint("task_id", task.ID))
	attempt := task.Attempts + 1
	startTime := r.now()

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warn("Task handler not found, marking as failure")
		db.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			Status:          "handler_not_found",
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		db.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &startTime,
			"attempts": attempt,
		})
		return
	}

	result, err := handler(ctx, r.deps, task)
	runtime := time.Since(startTime)

	status := "success"
	if err != nil {
		status = "failure"
		result = map[string]interface{}{"error": err.Error()}
		log.Warn("Task failed", zap.Int("attempt", attempt), zap.Error(err))
	} else {
		log.Info("Task completed", zap.Duration("runtime", runtime))
	}

	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		RuntimeMs:       int(runtime.Milliseconds()),
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := db.Create(&history).Error; err != nil {
		log.Error("Failed to write task history", zap.Error(err))
	}

	updates := map[string]interface{}{
		"last_run": &startTime,
		"attempts": attempt,
	}

	if status != "success" {
		if attempt < task.MaxAttempt {
			updates["due"] = startTime.Add(retryBackoff(attempt))
		} else {
			updates["status"] = models.ScheduledTaskStatusFailure
		}
	} else {
		switch task.TaskType {
		case models.ScheduledTaskTypeRecurring:
			// the next due must be in the future or the task would run on every tick
			next := task.NextDue(startTime)
			if next.After(task.Due) {
				updates["due"] = next
				updates["attempts"] = 0
			} else {
				updates["status"] = models.ScheduledTaskStatusDone
			}
		default:
			updates["status"] = models.ScheduledTaskStatusDone
		}
	}

	if err := db.Model(&task).Updates(updates).Error; err != nil {
		log.Error("Failed to update task", zap.Error(err))
	}
}
