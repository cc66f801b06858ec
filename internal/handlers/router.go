package handlers

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/auth"
	"snapbox_console/internal/middleware"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/services"
	"snapbox_console/internal/session"
)

// Deps is everything the console's routes need
type Deps struct {
	Store        session.Store
	API          *services.SnapBoxAPI
	Flow         *auth.Flow
	Logout       *auth.Logout
	Cache        *services.RedisCache
	History      SessionHistory
	Routes       *routes.Table
	AgencyName   string
	SessionTTL   time.Duration
	CookieSecure bool
	Logger       *zap.Logger
}

// Register mounts every view of the route table plus the form actions.
// Views are gated and counted as visits. Actions are only gated.
func Register(e *echo.Echo, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	table := d.Routes
	if table == nil {
		table = routes.Default()
	}

	authHandler := NewAuthHandler(d.Store, d.Flow, d.Logout, logger)
	filesHandler := NewFilesHandler(d.API, logger)
	emailHandler := NewEmailHandler(d.API, logger)
	parametrizerHandler := NewParametrizerHandler(d.API, d.AgencyName, logger)
	performanceHandler := NewPerformanceHandler(d.API, logger)
	adminHandler := NewAdminHandler(d.API, d.Cache, d.History, logger)

	views := map[routes.View]echo.HandlerFunc{
		routes.ViewLogin:           authHandler.LoginPage,
		routes.ViewHome:            filesHandler.ListFiles,
		routes.ViewEmail:           emailHandler.Compose,
		routes.ViewUrlParametrizer: parametrizerHandler.Index,
		routes.ViewPerformance:     performanceHandler.Show,
		routes.ViewAdmin:           adminHandler.Dashboard,
	}

	e.Use(middleware.SessionCookie(d.SessionTTL, d.CookieSecure))
	track := middleware.TrackVisits(d.Store, logger)
	gateFor := func(path string) echo.MiddlewareFunc {
		return middleware.RequireRoute(table.MustLookup(path), d.Store, d.Flow, logger)
	}

	for _, route := range table.Routes() {
		handler, ok := views[route.View]
		if !ok {
			logger.Warn("No handler for route", zap.String("path", route.Path))
			continue
		}
		mw := []echo.MiddlewareFunc{middleware.RequireRoute(route, d.Store, d.Flow, logger)}
		// The login page is the entry point, not a visited view
		if route.Path != routes.LoginPath {
			mw = append(mw, track)
		}
		e.GET(route.Path, handler, mw...)
	}

	// Login actions
	e.POST("/auth/email", authHandler.SubmitEmail, authHandler.GuestOnly)
	e.POST("/auth/code", authHandler.SubmitCode, authHandler.GuestOnly)
	e.POST("/auth/back", authHandler.Back, authHandler.GuestOnly)
	e.POST("/auth/resend", authHandler.Resend, authHandler.GuestOnly)
	e.POST("/auth/logout", authHandler.Logout)

	requireHome := gateFor(routes.HomePath)
	e.POST("/Home/upload", filesHandler.Upload, requireHome)
	e.POST("/Home/files/:id/delete", filesHandler.Delete, requireHome)

	requireEmail := gateFor("/Email")
	e.POST("/Email/send", emailHandler.Send, requireEmail)
	e.POST("/Email/swap-images", emailHandler.SwapImages, requireEmail)

	requireParametrizer := gateFor(parametrizerPath)
	e.POST(parametrizerPath+"/build", parametrizerHandler.Build, requireParametrizer)
	e.POST(parametrizerPath+"/save", parametrizerHandler.Save, requireParametrizer)
	e.POST(parametrizerPath+"/:id/rename", parametrizerHandler.Rename, requireParametrizer)
	e.POST(parametrizerPath+"/:id/delete", parametrizerHandler.Delete, requireParametrizer)

	e.POST(routes.AdminHomePath+"/admins", adminHandler.AddAdmin, gateFor(routes.AdminHomePath))
}
