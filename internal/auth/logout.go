package auth

import (
	"context"

	"go.uber.org/zap"

	"snapbox_console/internal/routes"
	"snapbox_console/internal/session"
)

// LogoutReporter receives the logout analytics event
type LogoutReporter interface {
	ReportLogout(ctx context.Context, email, mostViewedPath string) error
}

// ReportRetrier schedules a later attempt of a failed logout report
type ReportRetrier interface {
	ScheduleLogoutReport(ctx context.Context, sid, email, mostViewedPath string) error
}

// Logout ends a session. The most-visited path is computed and reported
// before anything is cleared.
type Logout struct {
	store    session.Store
	reporter LogoutReporter
	recorder SessionRecorder
	retrier  ReportRetrier
	logger   *zap.Logger
}

// LogoutOption configures a Logout
type LogoutOption func(*Logout)

func WithLogoutRecorder(r SessionRecorder) LogoutOption {
	return func(l *Logout) { l.recorder = r }
}

func WithReportRetrier(r ReportRetrier) LogoutOption {
	return func(l *Logout) { l.retrier = r }
}

func WithLogoutLogger(logger *zap.Logger) LogoutOption {
	return func(l *Logout) { l.logger = logger }
}

func NewLogout(store session.Store, reporter LogoutReporter, opts ...LogoutOption) *Logout {
	l := &Logout{store: store, reporter: reporter, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run performs the logout and returns the path to redirect to. Reporting
// failures are logged and never block the local cleanup.
func (l *Logout) Run(ctx context.Context, sid string) (string, error) {
	email, _, err := l.store.Get(ctx, sid, session.KeyAuthEmail)
	if err != nil {
		l.logger.Warn("Failed to read e-mail on logout", zap.Error(err))
	}

	visits, err := session.LoadVisits(ctx, l.store, sid)
	if err != nil {
		l.logger.Warn("Failed to read visits on logout", zap.Error(err))
		visits = session.NewVisitCounter()
	}
	mostViewed := visits.MostVisited()

	reported := false
	if email != "" {
		if err := l.reporter.ReportLogout(ctx, email, mostViewed); err != nil {
			l.logger.Warn("Logout report failed",
				zap.String("email", email),
				zap.String("most_viewed_path", mostViewed),
				zap.Error(err))
			if l.retrier != nil {
				if err := l.retrier.ScheduleLogoutReport(ctx, sid, email, mostViewed); err != nil {
					l.logger.Warn("Failed to schedule logout report retry", zap.Error(err))
				}
			}
		} else {
			reported = true
		}
	}

	if l.recorder != nil && email != "" {
		if err := l.recorder.RecordLogout(ctx, sid, mostViewed, reported); err != nil {
			l.logger.Warn("Failed to record logout", zap.String("email", email), zap.Error(err))
		}
	}

	if err := session.Clear(ctx, l.store, sid); err != nil {
		return "", err
	}

	l.logger.Info("User logged out", zap.String("email", email), zap.String("most_viewed_path", mostViewed))
	return routes.LoginPath, nil
}
