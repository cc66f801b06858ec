package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/compose"
	"snapbox_console/internal/middleware"
	"snapbox_console/internal/services"
	"snapbox_console/internal/views"
)

// MailService sends bulk e-mail and exposes the uploads used as images
type MailService interface {
	ListFiles(ctx context.Context) ([]services.FileRecord, error)
	SendEmail(ctx context.Context, to []string, html string) error
}

type EmailHandler struct {
	api    MailService
	logger *zap.Logger
}

func NewEmailHandler(api MailService, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{api: api, logger: logger}
}

func (h *EmailHandler) Compose(c echo.Context) error {
	return h.render(c, http.StatusOK, EmailData{}, noticeFlash(c))
}

// SwapImages replaces local image references with uploaded file URLs
func (h *EmailHandler) SwapImages(c echo.Context) error {
	data := EmailData{Recipients: c.FormValue("to"), HTML: c.FormValue("html")}

	files, err := h.api.ListFiles(c.Request().Context())
	if err != nil {
		return h.render(c, statusFor(err), data, errorFlash(err))
	}

	html, replaced := compose.SwapImageSources(data.HTML, files)
	data.HTML = html
	data.FileCount = len(files)
	if replaced == 0 {
		return h.render(c, http.StatusOK, data, &views.Flash{Kind: "warning", Message: "No image matched an uploaded file."})
	}
	return h.render(c, http.StatusOK, data, views.SuccessFlash(strconv.Itoa(replaced)+" image(s) replaced."))
}

func (h *EmailHandler) Send(c echo.Context) error {
	data := EmailData{Recipients: c.FormValue("to"), HTML: c.FormValue("html")}

	recipients, err := compose.ParseRecipients(data.Recipients)
	if err != nil {
		return h.render(c, statusFor(err), data, errorFlash(err))
	}
	if err := compose.ValidateBody(data.HTML); err != nil {
		return h.render(c, statusFor(err), data, errorFlash(err))
	}

	if err := h.api.SendEmail(c.Request().Context(), recipients, data.HTML); err != nil {
		h.logger.Warn("Send e-mail failed", zap.Int("recipients", len(recipients)), zap.Error(err))
		return h.render(c, statusFor(err), data, errorFlash(err))
	}

	h.logger.Info("E-mail sent",
		zap.String("sender", getStringFromContext(c, middleware.ContextUserEmail)),
		zap.Int("recipients", len(recipients)))
	return redirectWithNotice(c, "/Email", "email_sent")
}

func (h *EmailHandler) render(c echo.Context, status int, data EmailData, flash *views.Flash) error {
	if data.FileCount == 0 {
		if files, err := h.api.ListFiles(c.Request().Context()); err == nil {
			data.FileCount = len(files)
		} else {
			h.logger.Debug("Failed to count uploads", zap.Error(err))
		}
	}

	page := newPage(c, "Send", "email", data)
	page.Flash = flash
	return c.Render(status, "email.html", page)
}
