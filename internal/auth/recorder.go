package auth

import (
	"context"
	"time"

	"gorm.io/gorm"

	"snapbox_console/internal/models"
	"snapbox_console/internal/session"
)

// GormRecorder stores session history in the database
type GormRecorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db, now: time.Now}
}

func (r *GormRecorder) RecordLogin(ctx context.Context, sid string, sess session.Session) error {
	log := models.SessionLog{
		SessionID: sid,
		Email:     sess.Email,
		IsAdmin:   sess.IsAdmin,
		LoginAt:   r.now(),
	}
	return r.db.WithContext(ctx).Create(&log).Error
}

// RecordLogout closes the latest open log of the session. A session with no
// open log is ignored.
func (r *GormRecorder) RecordLogout(ctx context.Context, sid, mostViewedPath string, reported bool) error {
	var log models.SessionLog
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND logout_at IS NULL", sid).
		Order("login_at desc").
		First(&log).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	now := r.now()
	return r.db.WithContext(ctx).Model(&log).Updates(map[string]interface{}{
		"logout_at":        &now,
		"most_viewed_path": mostViewedPath,
		"reported_remote":  reported,
	}).Error
}

// Recent returns the latest session logs, newest first
func (r *GormRecorder) Recent(ctx context.Context, limit int) ([]models.SessionLog, error) {
	var logs []models.SessionLog
	err := r.db.WithContext(ctx).Order("login_at desc").Limit(limit).Find(&logs).Error
	return logs, err
}
