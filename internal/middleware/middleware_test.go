package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/session"
	"snapbox_console/internal/views"
	"snapbox_console/web"
)

const testSID = "0b8f9c77-2f3e-4d8e-8a0e-6f8f6a2d9e11"

type fakeAbandoner struct {
	calls []string
}

func (f *fakeAbandoner) Abandon(_ context.Context, sid string) error {
	f.calls = append(f.calls, sid)
	return nil
}

func newContext(e *echo.Echo, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextSessionID, testSID)
	return c, rec
}

func TestSessionCookieIssuesID(t *testing.T) {
	e := echo.New()
	handler := SessionCookie(time.Hour, true)(func(c echo.Context) error {
		return c.String(http.StatusOK, SessionID(c))
	})

	tests := []struct {
		name   string
		cookie string
		keep   bool
	}{
		{name: "no cookie"},
		{name: "garbage cookie", cookie: "not-a-uuid"},
		{name: "valid cookie", cookie: testSID, keep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			require.NoError(t, handler(e.NewContext(req, rec)))

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, SessionCookieName, cookies[0].Name)
			assert.True(t, cookies[0].HttpOnly)
			assert.True(t, cookies[0].Secure)
			assert.Equal(t, 3600, cookies[0].MaxAge)
			assert.Equal(t, cookies[0].Value, rec.Body.String())
			if tt.keep {
				assert.Equal(t, tt.cookie, cookies[0].Value)
			} else {
				assert.NotEqual(t, tt.cookie, cookies[0].Value)
			}
		})
	}
}

func TestReplaceSessionID(t *testing.T) {
	e := echo.New()
	handler := SessionCookie(time.Hour, true)(func(c echo.Context) error {
		c.SetCookie(&http.Cookie{Name: "theme", Value: "dark"})
		ReplaceSessionID(c, "fresh-id")
		return c.String(http.StatusOK, SessionID(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/code", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: testSID})
	rec := httptest.NewRecorder()

	require.NoError(t, handler(e.NewContext(req, rec)))

	byName := map[string]*http.Cookie{}
	for _, cookie := range rec.Result().Cookies() {
		_, dup := byName[cookie.Name]
		require.False(t, dup, cookie.Name)
		byName[cookie.Name] = cookie
	}
	require.Contains(t, byName, SessionCookieName)
	assert.Equal(t, "fresh-id", byName[SessionCookieName].Value)
	assert.True(t, byName[SessionCookieName].HttpOnly)
	assert.Equal(t, 3600, byName[SessionCookieName].MaxAge)
	assert.Equal(t, "dark", byName["theme"].Value)
	assert.Equal(t, "fresh-id", rec.Body.String())
}

func TestRequireRoute(t *testing.T) {
	table := routes.Default()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	tests := []struct {
		name     string
		path     string
		sess     *session.Session
		code     int
		location string
	}{
		{name: "anonymous on protected", path: "/Home", code: http.StatusSeeOther, location: "/"},
		{name: "anonymous on login", path: "/", code: http.StatusOK},
		{name: "user on home", path: "/Home", sess: &session.Session{Token: "t", Email: "a@org.com"}, code: http.StatusOK},
		{name: "user on admin", path: "/Admin", sess: &session.Session{Token: "t", Email: "a@org.com"}, code: http.StatusSeeOther, location: "/Home"},
		{name: "admin on admin", path: "/Admin", sess: &session.Session{Token: "t", Email: "a@org.com", IsAdmin: true}, code: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewMemoryStore()
			if tt.sess != nil {
				require.NoError(t, session.Save(context.Background(), store, testSID, *tt.sess))
			}
			flow := &fakeAbandoner{}
			e := echo.New()
			c, rec := newContext(e, http.MethodGet, tt.path)

			mw := RequireRoute(table.MustLookup(tt.path), store, flow, zap.NewNop())
			require.NoError(t, mw(ok)(c))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get(echo.HeaderLocation))
			if tt.path == routes.LoginPath {
				assert.Empty(t, flow.calls)
			} else {
				assert.Equal(t, []string{testSID}, flow.calls)
			}
			if tt.code == http.StatusOK && tt.sess != nil {
				assert.Equal(t, tt.sess.Email, c.Get(ContextUserEmail))
				assert.Equal(t, tt.sess.IsAdmin, c.Get(ContextIsAdmin))
			}
		})
	}
}

func TestTrackVisits(t *testing.T) {
	store := session.NewMemoryStore()
	e := echo.New()
	mw := TrackVisits(store, zap.NewNop())

	visit := func(path string, code int) {
		c, _ := newContext(e, http.MethodGet, path)
		require.NoError(t, mw(func(c echo.Context) error { return c.NoContent(code) })(c))
	}

	visit("/Home", http.StatusOK)
	visit("/Home", http.StatusOK)
	visit("/Email", http.StatusOK)
	visit("/Admin", http.StatusSeeOther)
	visit("/Home", http.StatusOK)

	counter, err := session.LoadVisits(context.Background(), store, testSID)
	require.NoError(t, err)
	assert.Equal(t, []session.PathCount{{Path: "/Home", Count: 2}, {Path: "/Email", Count: 1}}, counter.Entries())
}

func TestTrackVisitsSkipsFailedHandlers(t *testing.T) {
	store := session.NewMemoryStore()
	e := echo.New()
	c, _ := newContext(e, http.MethodGet, "/Home")

	err := TrackVisits(store, zap.NewNop())(func(echo.Context) error {
		return echo.ErrNotFound
	})(c)

	assert.ErrorIs(t, err, echo.ErrNotFound)
	_, ok, _ := store.Get(context.Background(), testSID, session.KeyVisitedPaths)
	assert.False(t, ok)
}

func TestErrorHandler(t *testing.T) {
	renderer, err := views.NewRenderer(web.Templates)
	require.NoError(t, err)
	handler := ErrorHandler(renderer, zap.NewNop())
	e := echo.New()

	tests := []struct {
		name string
		err  error
		code int
		text string
	}{
		{name: "not found", err: echo.ErrNotFound, code: http.StatusNotFound, text: "Page Not Found"},
		{name: "validation", err: apperr.New(apperr.KindValidation, "op", "Bad input here."), code: http.StatusBadRequest, text: "Bad input here."},
		{name: "plain error", err: errors.New("boom"), code: http.StatusInternalServerError, text: "Something went wrong."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(e, http.MethodGet, "/x")
			handler(tt.err, c)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.text)
			assert.Contains(t, rec.Body.String(), `href="/"`)
		})
	}
}
