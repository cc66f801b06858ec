package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"snapbox_console/internal/models"
)

const (
	// DailyRule runs a recurring task once a day at its start time
	DailyRule = "FREQ=DAILY"

	logoutReportDelay       = time.Minute
	logoutReportMaxAttempts = 5
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	if maxAttempt < 1 {
		maxAttempt = 1
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// Scheduler enqueues tasks for the worker
type Scheduler struct {
	db  *gorm.DB
	now func() time.Time
}

func NewScheduler(db *gorm.DB) *Scheduler {
	return &Scheduler{db: db, now: time.Now}
}

// ScheduleLogoutReport enqueues a retry of a failed logout report
func (s *Scheduler) ScheduleLogoutReport(ctx context.Context, sid, email, mostViewedPath string) error {
	args := ReportLogoutArgs{SessionID: sid, Email: email, MostViewedPath: mostViewedPath}
	task, err := BuildScheduledTask(ReportLogoutTask.TaskID(), args, s.now().Add(logoutReportDelay), nil, models.ScheduledTaskTypeOneTime, logoutReportMaxAttempts)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(task).Error
}

// EnsureRecurring creates the recurring task unless an active one with the
// same name already exists. It reports whether a task was created.
func (s *Scheduler) EnsureRecurring(ctx context.Context, taskName string, args interface{}, rule string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("task_name = ? AND status = ?", taskName, models.ScheduledTaskStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	task, err := BuildScheduledTask(taskName, args, s.now(), &rule, models.ScheduledTaskTypeRecurring, 1)
	if err != nil {
		return false, err
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return false, err
	}
	return true, nil
}
