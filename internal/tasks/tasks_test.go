package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"snapbox_console/internal/models"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.SessionLog{}, &models.ScheduledTask{}, &models.ScheduledTaskHistory{}))
	return db
}

type fakeReporter struct {
	calls [][2]string
	err   error
}

func (f *fakeReporter) ReportLogout(_ context.Context, email, path string) error {
	f.calls = append(f.calls, [2]string{email, path})
	return f.err
}

func newTestRunner(db *gorm.DB, registry *Registry, reporter *fakeReporter, now *time.Time) *Runner {
	r := NewRunner(registry, Deps{DB: db, Reporter: reporter, Logger: zap.NewNop()})
	r.now = func() time.Time { return *now }
	return r
}

func createTask(t *testing.T, db *gorm.DB, name string, args interface{}, due time.Time, maxAttempt int) models.ScheduledTask {
	t.Helper()
	task, err := BuildScheduledTask(name, args, due, nil, models.ScheduledTaskTypeOneTime, maxAttempt)
	require.NoError(t, err)
	require.NoError(t, db.Create(task).Error)
	return *task
}

func reload(t *testing.T, db *gorm.DB, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	require.NoError(t, db.First(&task, id).Error)
	return task
}

func TestBuildScheduledTask(t *testing.T) {
	task, err := BuildScheduledTask("report_logout", ReportLogoutArgs{Email: "a@org.com", MostViewedPath: "/Home"}, t0, nil, models.ScheduledTaskTypeOneTime, 0)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"email": "a@org.com", "most_viewed_path": "/Home"}, task.Arguments)
	assert.Equal(t, models.ScheduledTaskStatusActive, task.Status)
	assert.Equal(t, 1, task.MaxAttempt)
}

func TestProcessDueRunsOneTimeTask(t *testing.T) {
	db := newTestDB(t)
	now := t0
	runner := newTestRunner(db, DefineTasks(NewRegistry()), &fakeReporter{}, &now)

	task := createTask(t, db, LogInfoTask.TaskID(), map[string]string{"message": "hello"}, t0.Add(-time.Minute), 3)
	future := createTask(t, db, LogInfoTask.TaskID(), nil, t0.Add(time.Hour), 3)

	n, err := runner.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done := reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusDone, done.Status)
	assert.Equal(t, 1, done.Attempts)
	assert.Equal(t, models.ScheduledTaskStatusActive, reload(t, db, future.ID).Status)

	var history []models.ScheduledTaskHistory
	require.NoError(t, db.Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, "hello", history[0].Result["message"])
}

func TestFailedTaskIsRetriedUntilMaxAttempt(t *testing.T) {
	db := newTestDB(t)
	now := t0
	registry := NewRegistry()
	registry.Register("flaky", func(context.Context, Deps, models.ScheduledTask) (map[string]interface{}, error) {
		return nil, errors.New("remote down")
	})
	runner := newTestRunner(db, registry, &fakeReporter{}, &now)
	task := createTask(t, db, "flaky", nil, t0, 2)

	n, err := runner.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	first := reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, first.Status)
	assert.Equal(t, 1, first.Attempts)
	assert.True(t, first.Due.Equal(t0.Add(retryBackoff(1))))

	// not due yet
	n, err = runner.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = t0.Add(10 * time.Minute)
	_, err = runner.ProcessDue(context.Background())
	require.NoError(t, err)

	last := reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusFailure, last.Status)
	assert.Equal(t, 2, last.Attempts)

	var count int64
	db.Model(&models.ScheduledTaskHistory{}).Where("status = ?", "failure").Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestUnknownTaskFails(t *testing.T) {
	db := newTestDB(t)
	now := t0
	runner := newTestRunner(db, NewRegistry(), &fakeReporter{}, &now)
	task := createTask(t, db, "nope", nil, t0, 3)

	_, err := runner.ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ScheduledTaskStatusFailure, reload(t, db, task.ID).Status)
	var history models.ScheduledTaskHistory
	require.NoError(t, db.First(&history).Error)
	assert.Equal(t, "handler_not_found", history.Status)
}

func TestLogoutReportRetry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := t0

	logoutAt := t0.Add(-time.Hour)
	require.NoError(t, db.Create(&models.SessionLog{
		SessionID: "sid", Email: "a@org.com", LoginAt: t0.Add(-2 * time.Hour), LogoutAt: &logoutAt, MostViewedPath: "/Email",
	}).Error)
	// an earlier session with the same user and path whose report is still pending
	require.NoError(t, db.Create(&models.SessionLog{
		SessionID: "other-sid", Email: "a@org.com", LoginAt: t0.Add(-5 * time.Hour), LogoutAt: &logoutAt, MostViewedPath: "/Email",
	}).Error)

	scheduler := NewScheduler(db)
	scheduler.now = func() time.Time { return t0 }
	require.NoError(t, scheduler.ScheduleLogoutReport(ctx, "sid", "a@org.com", "/Email"))

	reporter := &fakeReporter{}
	runner := newTestRunner(db, DefineTasks(NewRegistry()), reporter, &now)

	n, err := runner.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "retry waits for its delay")

	now = t0.Add(logoutReportDelay)
	n, err = runner.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, [][2]string{{"a@org.com", "/Email"}}, reporter.calls)

	var log models.SessionLog
	require.NoError(t, db.Where("session_id = ?", "sid").First(&log).Error)
	assert.True(t, log.ReportedRemote)

	var other models.SessionLog
	require.NoError(t, db.Where("session_id = ?", "other-sid").First(&other).Error)
	assert.False(t, other.ReportedRemote)
}

func TestPruneSessionLogsIsRecurring(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := t0

	require.NoError(t, db.Create(&models.SessionLog{Email: "old@org.com", LoginAt: t0.AddDate(0, 0, -100)}).Error)
	require.NoError(t, db.Create(&models.SessionLog{Email: "new@org.com", LoginAt: t0.AddDate(0, 0, -1)}).Error)

	scheduler := NewScheduler(db)
	scheduler.now = func() time.Time { return t0.Add(-time.Hour) }
	created, err := scheduler.EnsureRecurring(ctx, PruneSessionLogsTask.TaskID(), map[string]int{"older_than_days": 90}, DailyRule)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = scheduler.EnsureRecurring(ctx, PruneSessionLogsTask.TaskID(), nil, DailyRule)
	require.NoError(t, err)
	assert.False(t, created)

	registry := NewRegistry()
	registry.Register(PruneSessionLogsTask.TaskID(), (&PruneSessionLogsTaskDef{now: func() time.Time { return t0 }}).HandleExecution)
	runner := newTestRunner(db, registry, &fakeReporter{}, &now)

	_, err = runner.ProcessDue(ctx)
	require.NoError(t, err)

	var emails []string
	require.NoError(t, db.Model(&models.SessionLog{}).Pluck("email", &emails).Error)
	assert.Equal(t, []string{"new@org.com"}, emails)

	var task models.ScheduledTask
	require.NoError(t, db.First(&task).Error)
	assert.Equal(t, models.ScheduledTaskStatusActive, task.Status)
	assert.True(t, task.Due.Equal(t0.Add(23*time.Hour)), task.Due)
}

func TestNextDue(t *testing.T) {
	rule := DailyRule
	task := models.ScheduledTask{TaskType: models.ScheduledTaskTypeRecurring, RecurringInterval: &rule, Due: t0}

	assert.True(t, task.NextDue(t0).Equal(t0.AddDate(0, 0, 1)))
	assert.True(t, task.NextDue(t0.Add(-time.Minute)).Equal(t0))

	task.TaskType = models.ScheduledTaskTypeOneTime
	assert.True(t, task.NextDue(t0.AddDate(0, 0, 5)).Equal(t0))

	bad := "NOT A RULE"
	task = models.ScheduledTask{TaskType: models.ScheduledTaskTypeRecurring, RecurringInterval: &bad, Due: t0}
	assert.True(t, task.NextDue(t0).Equal(t0))
}
