package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/campaign"
	"snapbox_console/internal/services"
)

const dateLayout = "2006-01-02"

// StatsService reports click statistics of saved URLs
type StatsService interface {
	ListURLs(ctx context.Context) ([]services.SavedURL, error)
	URLPerformance(ctx context.Context, id string, start, end time.Time) (services.PerformanceStats, error)
}

type PerformanceHandler struct {
	api    StatsService
	logger *zap.Logger
	now    func() time.Time
}

func NewPerformanceHandler(api StatsService, logger *zap.Logger) *PerformanceHandler {
	return &PerformanceHandler{api: api, logger: logger, now: time.Now}
}

// Show renders the stats of one saved URL. The range defaults to the last 7 days.
func (h *PerformanceHandler) Show(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.QueryParam("id")
	if id == "" {
		return c.Redirect(http.StatusSeeOther, parametrizerPath)
	}

	urls, err := h.api.ListURLs(ctx)
	if err != nil {
		h.logger.Warn("Failed to load saved URLs", zap.String("id", id), zap.Error(err))
		page := newPage(c, "Performance", "parametrizer", PerformanceData{URL: services.SavedURL{ID: id}})
		page.Flash = errorFlash(err)
		return c.Render(statusFor(err), "performance.html", page)
	}
	var saved *services.SavedURL
	for i := range urls {
		if urls[i].ID == id {
			saved = &urls[i]
			break
		}
	}
	if saved == nil {
		return echo.NewHTTPError(http.StatusNotFound, "URL not found")
	}

	end := h.now()
	start := end.AddDate(0, 0, -7)
	var rangeErr error
	if v := c.QueryParam("end"); v != "" {
		if end, err = time.Parse(dateLayout, v); err != nil {
			rangeErr = apperr.New(apperr.KindValidation, "performance.range", "Invalid end date.")
		}
	}
	if v := c.QueryParam("start"); v != "" && rangeErr == nil {
		if start, err = time.Parse(dateLayout, v); err != nil {
			rangeErr = apperr.New(apperr.KindValidation, "performance.range", "Invalid start date.")
		}
	}
	if rangeErr == nil && start.After(end) {
		rangeErr = apperr.New(apperr.KindValidation, "performance.range", "The start date must be before the end date.")
	}

	data := PerformanceData{
		URL: *saved,
		UTM: campaign.ExtractParams(saved.URL),
	}
	status := http.StatusOK
	page := newPage(c, "Performance", "parametrizer", nil)

	if rangeErr != nil {
		status = statusFor(rangeErr)
		page.Flash = errorFlash(rangeErr)
	} else {
		data.Start, data.End = start.Format(dateLayout), end.Format(dateLayout)
		stats, err := h.api.URLPerformance(ctx, id, start, end)
		if err != nil {
			h.logger.Warn("Failed to load performance", zap.String("id", id), zap.Error(err))
			page.Flash = errorFlash(err)
		}
		data.Stats = stats
	}

	page.Data = data
	return c.Render(status, "performance.html", page)
}
