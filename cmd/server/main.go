package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"snapbox_console/internal/auth"
	"snapbox_console/internal/config"
	"snapbox_console/internal/handlers"
	"snapbox_console/internal/logging"
	appMiddleware "snapbox_console/internal/middleware"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/services"
	"snapbox_console/internal/session"
	"snapbox_console/internal/tasks"
	"snapbox_console/internal/views"
	"snapbox_console/web"
)

func main() {
	// Load environment variables before the final logger level is known
	config.LoadDotEnv(logging.Must(os.Getenv("ENV")))
	logger := logging.Must(os.Getenv("ENV"))
	defer logger.Sync()

	cfg := config.Load(logger)
	if cfg.APIBaseURL == "" {
		logger.Warn("SNAPBOX_API_URL not set, every remote call will fail")
	}

	// Session store: Redis when configured, process memory otherwise
	var store session.Store
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		client, err := services.NewRedisClient(cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		store = session.NewRedisStore(client, cfg.SessionTTL)
		cache = services.NewRedisCache(client)
	} else {
		logger.Warn("REDIS_URL not set, sessions are kept in memory and lost on restart")
		store = session.NewMemoryStore()
	}

	// Initialize Database
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = services.InitDB(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := services.AutoMigrate(db, logger); err != nil {
			logger.Fatal("Failed to run database migrations", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL not set, session history and logout retries disabled")
	}

	api := services.NewSnapBoxAPI(cfg.APIBaseURL, cfg.APITimeout)

	flowOpts := []auth.FlowOption{
		auth.WithAllowedDomain(cfg.AllowedEmailDomain),
		auth.WithLogger(logger),
	}
	logoutOpts := []auth.LogoutOption{auth.WithLogoutLogger(logger)}
	deps := handlers.Deps{
		Store:        store,
		API:          api,
		Cache:        cache,
		Routes:       routes.Default(),
		AgencyName:   cfg.AgencyName,
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
		Logger:       logger,
	}
	if db != nil {
		recorder := auth.NewGormRecorder(db)
		flowOpts = append(flowOpts, auth.WithRecorder(recorder))
		logoutOpts = append(logoutOpts,
			auth.WithLogoutRecorder(recorder),
			auth.WithReportRetrier(tasks.NewScheduler(db)))
		deps.History = recorder
	}
	deps.Flow = auth.NewFlow(store, api, flowOpts...)
	deps.Logout = auth.NewLogout(store, api, logoutOpts...)

	renderer, err := views.NewRenderer(web.Templates)
	if err != nil {
		logger.Fatal("Failed to parse templates", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Renderer = renderer
	e.HTTPErrorHandler = appMiddleware.ErrorHandler(renderer, logger)

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error))
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handlers.Register(e, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
