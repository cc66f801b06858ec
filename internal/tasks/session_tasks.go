package tasks

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"snapbox_console/internal/models"
)

// ReportLogoutArgs are the arguments of a report_logout task
type ReportLogoutArgs struct {
	SessionID      string `json:"session_id"`
	Email          string `json:"email"`
	MostViewedPath string `json:"most_viewed_path"`
}

// ReportLogoutTaskDef sends a logout event the console could not deliver
// when the user logged out. On success only the log of that session is
// marked reported.
type ReportLogoutTaskDef struct{}

func (t *ReportLogoutTaskDef) TaskID() string {
	return "report_logout"
}

func (t *ReportLogoutTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	sid, _ := task.Arguments["session_id"].(string)
	email, _ := task.Arguments["email"].(string)
	path, _ := task.Arguments["most_viewed_path"].(string)
	if email == "" {
		return nil, errors.New("email argument is required")
	}
	if path == "" {
		path = "/"
	}
	if deps.Reporter == nil {
		return nil, errors.New("no logout reporter configured")
	}

	if err := deps.Reporter.ReportLogout(ctx, email, path); err != nil {
		return nil, err
	}

	if deps.DB != nil && sid != "" {
		err := deps.DB.WithContext(ctx).Model(&models.SessionLog{}).
			Where("session_id = ? AND logout_at IS NOT NULL AND reported_remote = ?", sid, false).
			Update("reported_remote", true).Error
		if err != nil {
			deps.Logger.Warn("Failed to mark session log reported", zap.String("email", email), zap.Error(err))
		}
	}

	return map[string]interface{}{"status": "success", "email": email, "most_viewed_path": path}, nil
}

var ReportLogoutTask = &ReportLogoutTaskDef{}

// PruneSessionLogsTaskDef deletes session logs older than older_than_days
// (default 90). Meant to run as a recurring task.
type PruneSessionLogsTaskDef struct {
	now func() time.Time
}

func (t *PruneSessionLogsTaskDef) TaskID() string {
	return "prune_session_logs"
}

func (t *PruneSessionLogsTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps.DB == nil {
		return nil, errors.New("no database configured")
	}

	days := 90
	if v, ok := task.Arguments["older_than_days"].(float64); ok && v > 0 {
		days = int(v)
	}

	now := time.Now
	if t.now != nil {
		now = t.now
	}
	cutoff := now().AddDate(0, 0, -days)

	res := deps.DB.WithContext(ctx).Unscoped().Where("login_at < ?", cutoff).Delete(&models.SessionLog{})
	if res.Error != nil {
		return nil, res.Error
	}

	deps.Logger.Info("Pruned session logs", zap.Int64("deleted", res.RowsAffected), zap.Time("cutoff", cutoff))
	return map[string]interface{}{"status": "success", "deleted": res.RowsAffected}, nil
}

var PruneSessionLogsTask = &PruneSessionLogsTaskDef{}
