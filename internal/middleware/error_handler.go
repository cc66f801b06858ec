package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/views"
)

// ErrorHandler renders the error page for errors returned by handlers
func ErrorHandler(renderer *views.Renderer, logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		errorTitle := "Internal Server Error"
		errorMessage := ""

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok && msg != "" {
				errorMessage = msg
			}
		} else if apperr.KindOf(err) != apperr.KindUnknown {
			errorMessage = apperr.UserMessage(err)
			if apperr.IsKind(err, apperr.KindValidation) {
				code = http.StatusBadRequest
			}
		}

		switch code {
		case http.StatusNotFound:
			errorTitle = "Page Not Found"
			errorMessage = "The page you're looking for doesn't exist."
		case http.StatusMethodNotAllowed:
			errorTitle = "Method Not Allowed"
			errorMessage = "The page you're looking for doesn't exist."
		case http.StatusForbidden:
			errorTitle = "Access Denied"
			if errorMessage == "" {
				errorMessage = "You don't have permission to access this resource."
			}
		case http.StatusBadRequest:
			errorTitle = "Bad Request"
			if errorMessage == "" {
				errorMessage = "The request could not be processed."
			}
		default:
			if errorMessage == "" {
				errorMessage = "Something went wrong. Please try again later."
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("Request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
		} else {
			logger.Debug("Request rejected", zap.Int("status", code), zap.String("path", c.Request().URL.Path))
		}

		userEmail, _ := c.Get(ContextUserEmail).(string)
		isAdmin, _ := c.Get(ContextIsAdmin).(bool)

		backLink, backText := routes.LoginPath, "Back to login"
		if userEmail != "" {
			backLink, backText = routes.HomeFor(isAdmin), "Back to home"
		}

		page := views.Page{
			Title:        errorTitle,
			UserEmail:    userEmail,
			UserInitials: views.Initials(userEmail),
			IsAdmin:      isAdmin,
			Data: views.ErrorPageData{
				Code:         code,
				ErrorTitle:   errorTitle,
				ErrorMessage: errorMessage,
				BackLink:     backLink,
				BackText:     backText,
			},
		}

		if c.Request().Method == http.MethodHead {
			if err := c.NoContent(code); err != nil {
				logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().Status = code
		if renderErr := renderer.Render(c.Response(), "error.html", page, c); renderErr != nil {
			logger.Error("Failed to render error page", zap.Error(renderErr))
			_ = c.String(code, errorMessage)
			return
		}
	}
}
