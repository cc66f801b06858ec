package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionLog records one console session of a user, from login to logout
type SessionLog struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SessionID      string     `gorm:"type:varchar(64);index" json:"session_id"`
	Email          string     `gorm:"type:varchar(255);index" json:"email"`
	IsAdmin        bool       `json:"is_admin"`
	LoginAt        time.Time  `json:"login_at"`
	LogoutAt       *time.Time `json:"logout_at"`
	MostViewedPath string     `gorm:"type:varchar(255)" json:"most_viewed_path"`
	ReportedRemote bool       `gorm:"default:false" json:"reported_remote"`
}

// DurationMinutes is the session length, or the time elapsed so far while open
func (l SessionLog) DurationMinutes(now time.Time) int {
	end := now
	if l.LogoutAt != nil {
		end = *l.LogoutAt
	}
	if end.Before(l.LoginAt) {
		return 0
	}
	return int(end.Sub(l.LoginAt).Minutes())
}
