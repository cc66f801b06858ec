package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/auth"
	"snapbox_console/internal/middleware"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/session"
)

// AuthHandler handles the login steps and logout
type AuthHandler struct {
	store  session.Store
	flow   *auth.Flow
	logout *auth.Logout
	logger *zap.Logger
}

func NewAuthHandler(store session.Store, flow *auth.Flow, logout *auth.Logout, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{store: store, flow: flow, logout: logout, logger: logger}
}

// LoginPage renders the current login step. Authenticated users skip the
// flow and land on their home.
func (h *AuthHandler) LoginPage(c echo.Context) error {
	sess, err := loadSession(c, h.store)
	if err != nil {
		return err
	}
	if sess.Authenticated() {
		return c.Redirect(http.StatusSeeOther, routes.HomeFor(sess.IsAdmin))
	}

	st, err := h.flow.Current(c.Request().Context(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	return h.renderLogin(c, http.StatusOK, LoginData{
		State: string(st.State),
		Email: st.Email,
		Flash: noticeFlash(c),
	})
}

// GuestOnly sends an authenticated session to its home instead of running a
// login action over it. Replacing a live session must go through logout.
func (h *AuthHandler) GuestOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := loadSession(c, h.store)
		if err != nil {
			return err
		}
		if sess.Authenticated() {
			return c.Redirect(http.StatusSeeOther, routes.HomeFor(sess.IsAdmin))
		}
		return next(c)
	}
}

// SubmitEmail requests a verification code
func (h *AuthHandler) SubmitEmail(c echo.Context) error {
	email := c.FormValue("email")
	if err := h.flow.SubmitEmail(c.Request().Context(), middleware.SessionID(c), email); err != nil {
		if apperr.IsKind(err, apperr.KindStale) {
			h.logger.Info("Stale code request discarded", zap.String("sid", middleware.SessionID(c)))
			return c.Redirect(http.StatusSeeOther, routes.LoginPath)
		}
		return h.renderLogin(c, statusFor(err), LoginData{
			State: string(auth.AwaitingEmail),
			Email: email,
			Flash: errorFlash(err),
		})
	}
	return c.Redirect(http.StatusSeeOther, routes.LoginPath)
}

// SubmitCode verifies the code and signs the user in
func (h *AuthHandler) SubmitCode(c echo.Context) error {
	ctx := c.Request().Context()
	sid := middleware.SessionID(c)
	code := c.FormValue("code")

	login, err := h.flow.SubmitCode(ctx, sid, code)
	if err != nil {
		if apperr.IsKind(err, apperr.KindStale) {
			h.logger.Info("Stale verification discarded", zap.String("sid", sid))
			return c.Redirect(http.StatusSeeOther, routes.LoginPath)
		}
		st, stErr := h.flow.Current(ctx, sid)
		if stErr != nil {
			return stErr
		}
		return h.renderLogin(c, statusFor(err), LoginData{
			State: string(st.State),
			Email: st.Email,
			Code:  code,
			Flash: errorFlash(err),
		})
	}
	middleware.ReplaceSessionID(c, login.SessionID)
	return c.Redirect(http.StatusSeeOther, login.Target)
}

// Back returns to the e-mail step
func (h *AuthHandler) Back(c echo.Context) error {
	if err := h.flow.Back(c.Request().Context(), middleware.SessionID(c)); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, routes.LoginPath)
}

// Resend asks for another code for the pending e-mail
func (h *AuthHandler) Resend(c echo.Context) error {
	ctx := c.Request().Context()
	sid := middleware.SessionID(c)

	if err := h.flow.Resend(ctx, sid); err != nil {
		st, stErr := h.flow.Current(ctx, sid)
		if stErr != nil {
			return stErr
		}
		return h.renderLogin(c, statusFor(err), LoginData{
			State: string(st.State),
			Email: st.Email,
			Flash: errorFlash(err),
		})
	}
	return redirectWithNotice(c, routes.LoginPath, "code_resent")
}

// Logout reports the session and clears it
func (h *AuthHandler) Logout(c echo.Context) error {
	target, err := h.logout.Run(c.Request().Context(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (h *AuthHandler) renderLogin(c echo.Context, status int, data LoginData) error {
	data.AllowedDomain = h.flow.AllowedDomain()
	data.Year = time.Now().Year()
	return c.Render(status, "login.html", data)
}
