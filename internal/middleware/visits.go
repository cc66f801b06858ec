package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/session"
)

// TrackVisits counts a visit once the view rendered successfully. A path
// entered again without leaving it is not counted twice.
func TrackVisits(store session.Store, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}

			status := c.Response().Status
			if status < 200 || status >= 300 {
				return nil
			}

			ctx := c.Request().Context()
			sid := SessionID(c)
			path := c.Request().URL.Path

			last, _, err := store.Get(ctx, sid, session.KeyLastPath)
			if err != nil {
				logger.Warn("Failed to read last path", zap.Error(err))
				return nil
			}
			if last == path {
				return nil
			}

			visits, err := session.LoadVisits(ctx, store, sid)
			if err != nil {
				logger.Warn("Failed to load visits", zap.Error(err))
				return nil
			}
			visits.Increment(path)
			if err := session.SaveVisits(ctx, store, sid, visits); err != nil {
				logger.Warn("Failed to save visits", zap.Error(err))
				return nil
			}
			if err := store.Set(ctx, sid, session.KeyLastPath, path); err != nil {
				logger.Warn("Failed to save last path", zap.Error(err))
			}
			return nil
		}
	}
}
