package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"snapbox_console/internal/auth"
	"snapbox_console/internal/middleware"
	"snapbox_console/internal/models"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/services"
	"snapbox_console/internal/views"
)

const (
	adminStatsCacheKey = "snapbox:admin_stats"
	adminStatsTTL      = time.Minute
	recentSessionLimit = 20
)

// AdminService is the admin part of the API
type AdminService interface {
	AdminStats(ctx context.Context) (services.AdminStats, error)
	AddAdmin(ctx context.Context, email string) (string, error)
}

// SessionHistory lists sessions recorded by this console
type SessionHistory interface {
	Recent(ctx context.Context, limit int) ([]models.SessionLog, error)
}

type AdminHandler struct {
	api     AdminService
	cache   *services.RedisCache
	history SessionHistory
	logger  *zap.Logger
}

// NewAdminHandler builds the dashboard handler. cache and history may be nil.
func NewAdminHandler(api AdminService, cache *services.RedisCache, history SessionHistory, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{api: api, cache: cache, history: history, logger: logger}
}

func (h *AdminHandler) Dashboard(c echo.Context) error {
	return h.render(c, http.StatusOK, noticeFlash(c))
}

// AddAdmin grants admin rights to another user
func (h *AdminHandler) AddAdmin(c echo.Context) error {
	ctx := c.Request().Context()
	email := strings.TrimSpace(c.FormValue("email"))
	if err := auth.ValidateEmail(email, ""); err != nil {
		return h.render(c, statusFor(err), errorFlash(err))
	}

	if _, err := h.api.AddAdmin(ctx, email); err != nil {
		h.logger.Warn("Add admin failed", zap.String("email", email), zap.Error(err))
		return h.render(c, statusFor(err), errorFlash(err))
	}
	if err := h.cache.Delete(ctx, adminStatsCacheKey); err != nil {
		h.logger.Warn("Failed to invalidate admin stats", zap.Error(err))
	}

	h.logger.Info("Admin added",
		zap.String("email", email),
		zap.String("by", getStringFromContext(c, middleware.ContextUserEmail)))
	return redirectWithNotice(c, routes.AdminHomePath, "admin_added")
}

func (h *AdminHandler) render(c echo.Context, status int, flash *views.Flash) error {
	data := AdminData{Now: time.Now()}

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		stats, err := services.GetOrSet(h.cache, ctx, adminStatsCacheKey, adminStatsTTL, func() (services.AdminStats, error) {
			return h.api.AdminStats(ctx)
		})
		if err != nil {
			return err
		}
		data.Stats = stats
		return nil
	})
	if h.history != nil {
		g.Go(func() error {
			logs, err := h.history.Recent(ctx, recentSessionLimit)
			if err != nil {
				return err
			}
			data.Local = logs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		h.logger.Warn("Failed to load admin dashboard", zap.Error(err))
		if flash == nil {
			flash = errorFlash(err)
		}
	}
	data.TopUsers = TopUsers(data.Stats.UserLogs, 3)

	page := newPage(c, "Admin", "admin", data)
	page.Flash = flash
	return c.Render(status, "admin.html", page)
}

// TopUsers sums session minutes per e-mail and returns the n most active users.
// Users with equal totals keep the order in which they first appear.
func TopUsers(logs []services.UserLog, n int) []UserMinutes {
	var out []UserMinutes
	index := make(map[string]int)
	for _, log := range logs {
		i, ok := index[log.Email]
		if !ok {
			i = len(out)
			index[log.Email] = i
			out = append(out, UserMinutes{Email: log.Email})
		}
		out[i].Minutes += log.SessionDurationMinutes
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Minutes > out[b].Minutes })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
