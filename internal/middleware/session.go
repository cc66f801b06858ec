package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionCookieName holds the opaque id of the server-side session
const SessionCookieName = "snapbox_sid"

// Context keys set by the middlewares in this package
const (
	ContextSessionID = "sessionID"
	ContextUserEmail = "userEmail"
	ContextIsAdmin   = "isAdmin"

	contextCookieSettings = "sessionCookieSettings"
)

type cookieSettings struct {
	ttl    time.Duration
	secure bool
}

func writeSessionCookie(c echo.Context, sid string, cfg cookieSettings) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(cfg.ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionCookie makes sure every request carries a session id. Browsers
// without a valid cookie get a fresh one.
func SessionCookie(ttl time.Duration, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := ""
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sid = cookie.Value
				}
			}

			if sid == "" {
				sid = uuid.New().String()
			}

			// Refresh on every request so the cookie outlives the store TTL
			cfg := cookieSettings{ttl: ttl, secure: secure}
			writeSessionCookie(c, sid, cfg)

			c.Set(contextCookieSettings, cfg)
			c.Set(ContextSessionID, sid)
			return next(c)
		}
	}
}

// SessionID returns the id set by SessionCookie
func SessionID(c echo.Context) string {
	sid, _ := c.Get(ContextSessionID).(string)
	return sid
}

// ReplaceSessionID points the browser at sid from now on. The cookie written
// earlier in this response is dropped so only the new id is sent.
func ReplaceSessionID(c echo.Context, sid string) {
	cfg, _ := c.Get(contextCookieSettings).(cookieSettings)

	header := c.Response().Header()
	var kept []string
	for _, v := range header.Values(echo.HeaderSetCookie) {
		if !strings.HasPrefix(v, SessionCookieName+"=") {
			kept = append(kept, v)
		}
	}
	header.Del(echo.HeaderSetCookie)
	for _, v := range kept {
		header.Add(echo.HeaderSetCookie, v)
	}

	writeSessionCookie(c, sid, cfg)
	c.Set(ContextSessionID, sid)
}
