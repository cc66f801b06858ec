package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/gate"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/session"
)

// FlowAbandoner invalidates a pending login flow
type FlowAbandoner interface {
	Abandon(ctx context.Context, sid string) error
}

// RequireRoute runs the session gate for route on every request. Leaving the
// login page abandons a login flow that is still waiting for the API.
func RequireRoute(route routes.Route, store session.Store, flow FlowAbandoner, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sid := SessionID(c)

			if flow != nil && route.Path != routes.LoginPath {
				if err := flow.Abandon(ctx, sid); err != nil {
					logger.Warn("Failed to abandon login flow", zap.String("path", route.Path), zap.Error(err))
				}
			}

			sess, err := session.Load(ctx, store, sid)
			if err != nil {
				return err
			}

			decision := gate.Evaluate(sess, route)
			if decision.Action == gate.Redirect {
				logger.Debug("Gate redirect",
					zap.String("path", route.Path),
					zap.String("target", decision.Target))
				return c.Redirect(http.StatusSeeOther, decision.Target)
			}

			// Set user info in context for downstream handlers
			if sess.Authenticated() {
				c.Set(ContextUserEmail, sess.Email)
				c.Set(ContextIsAdmin, sess.IsAdmin)
			}

			return next(c)
		}
	}
}
