package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/routes"
	"snapbox_console/internal/services"
	"snapbox_console/internal/views"
)

// FileService is the part of the API behind the media library
type FileService interface {
	ListFiles(ctx context.Context) ([]services.FileRecord, error)
	UploadFile(ctx context.Context, file services.UploadFile) (services.FileRecord, error)
	DeleteFile(ctx context.Context, id, path string) error
}

type FilesHandler struct {
	api    FileService
	logger *zap.Logger
}

func NewFilesHandler(api FileService, logger *zap.Logger) *FilesHandler {
	return &FilesHandler{api: api, logger: logger}
}

// ListFiles renders the media library
func (h *FilesHandler) ListFiles(c echo.Context) error {
	return h.render(c, http.StatusOK, noticeFlash(c))
}

// Upload sends every selected file, then shows the list as the server has it
func (h *FilesHandler) Upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		return h.render(c, http.StatusBadRequest, views.ErrorFlash("Select at least one file."))
	}

	ctx := c.Request().Context()
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return h.render(c, http.StatusBadRequest, views.ErrorFlash("Could not read "+fh.Filename+"."))
		}
		_, err = h.api.UploadFile(ctx, services.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
		f.Close()
		if err != nil {
			h.logger.Warn("Upload failed", zap.String("file", fh.Filename), zap.Error(err))
			return h.render(c, statusFor(err), errorFlash(err))
		}
	}

	return redirectWithNotice(c, routes.HomePath, "uploaded")
}

func (h *FilesHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.api.DeleteFile(c.Request().Context(), id, c.FormValue("path")); err != nil {
		h.logger.Warn("Delete failed", zap.String("id", id), zap.Error(err))
		return h.render(c, statusFor(err), errorFlash(err))
	}
	return redirectWithNotice(c, routes.HomePath, "file_deleted")
}

func (h *FilesHandler) render(c echo.Context, status int, flash *views.Flash) error {
	files, err := h.api.ListFiles(c.Request().Context())
	if err != nil {
		h.logger.Warn("Failed to list files", zap.Error(err))
		if flash == nil {
			flash = views.ErrorFlash(apperr.UserMessage(err))
		}
	}

	page := newPage(c, "Home", "home", HomeData{Files: files})
	page.Flash = flash
	return c.Render(status, "home.html", page)
}
