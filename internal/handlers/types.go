package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/campaign"
	"snapbox_console/internal/middleware"
	"snapbox_console/internal/models"
	"snapbox_console/internal/services"
	"snapbox_console/internal/session"
	"snapbox_console/internal/views"
)

// LoginData backs login.html
type LoginData struct {
	State         string
	Email         string
	Code          string
	AllowedDomain string
	Flash         *views.Flash
	Year          int
}

type HomeData struct {
	Files []services.FileRecord
}

type EmailData struct {
	Recipients string
	HTML       string
	FileCount  int
}

type ParametrizerData struct {
	Agency     string
	Params     []string
	UTMOptions map[string][]string
	Values     map[string]string
	BaseURL    string
	ResultURL  string
	Saved      []services.SavedURL
}

type PerformanceData struct {
	URL   services.SavedURL
	Start string
	End   string
	Stats services.PerformanceStats
	UTM   []campaign.Param
}

// UserMinutes is one row of the most active users ranking
type UserMinutes struct {
	Email   string
	Minutes float64
}

type AdminData struct {
	Stats    services.AdminStats
	TopUsers []UserMinutes
	Local    []models.SessionLog
	Now      time.Time
}

// Success messages shown after a redirect, keyed by the notice query parameter
var notices = map[string]string{
	"code_resent":  "A new verification code was sent.",
	"uploaded":     "File(s) uploaded successfully!",
	"file_deleted": "File deleted.",
	"email_sent":   "E-mails sent successfully!",
	"url_saved":    "URL saved successfully!",
	"url_renamed":  "URL renamed.",
	"url_deleted":  "URL deleted.",
	"admin_added":  "Administrator added successfully!",
}

func noticeFlash(c echo.Context) *views.Flash {
	if msg, ok := notices[c.QueryParam("notice")]; ok {
		return views.SuccessFlash(msg)
	}
	return nil
}

func errorFlash(err error) *views.Flash {
	return views.ErrorFlash(apperr.UserMessage(err))
}

// statusFor is the response code of a page re-rendered with an inline error
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindRejection:
		return http.StatusUnprocessableEntity
	case apperr.KindTransport:
		return http.StatusBadGateway
	case apperr.KindStale:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newPage(c echo.Context, title, activeNav string, data interface{}) views.Page {
	email := getStringFromContext(c, middleware.ContextUserEmail)
	return views.Page{
		Title:        title,
		ActiveNav:    activeNav,
		UserEmail:    email,
		UserInitials: views.Initials(email),
		IsAdmin:      getBoolFromContext(c, middleware.ContextIsAdmin),
		Data:         data,
	}
}

func redirectWithNotice(c echo.Context, path, notice string) error {
	return c.Redirect(http.StatusSeeOther, path+"?notice="+notice)
}

func loadSession(c echo.Context, store session.Store) (session.Session, error) {
	return session.Load(c.Request().Context(), store, middleware.SessionID(c))
}

// Helper to safely get string from context
func getStringFromContext(c echo.Context, key string) string {
	val := c.Get(key)
	if val == nil {
		return ""
	}
	strVal, ok := val.(string)
	if !ok {
		return ""
	}
	return strVal
}

func getBoolFromContext(c echo.Context, key string) bool {
	val, _ := c.Get(key).(bool)
	return val
}
