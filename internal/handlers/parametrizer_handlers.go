package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"snapbox_console/internal/apperr"
	"snapbox_console/internal/campaign"
	"snapbox_console/internal/services"
	"snapbox_console/internal/views"
)

const parametrizerPath = "/UrlParametrizer"

// URLService stores campaign URLs
type URLService interface {
	ListURLs(ctx context.Context) ([]services.SavedURL, error)
	SaveURL(ctx context.Context, name, rawURL string, image *services.UploadFile) error
	RenameURL(ctx context.Context, id, name string) error
	DeleteURL(ctx context.Context, id string) error
}

type ParametrizerHandler struct {
	api    URLService
	agency string
	logger *zap.Logger
}

func NewParametrizerHandler(api URLService, agency string, logger *zap.Logger) *ParametrizerHandler {
	return &ParametrizerHandler{api: api, agency: agency, logger: logger}
}

func (h *ParametrizerHandler) Index(c echo.Context) error {
	return h.render(c, http.StatusOK, h.newData(), noticeFlash(c))
}

// Build assembles the campaign URL from the submitted parameters
func (h *ParametrizerHandler) Build(c echo.Context) error {
	data := h.newData()
	data.BaseURL = c.FormValue("base_url")
	for _, key := range campaign.ParamsList {
		if v := c.FormValue(key); v != "" {
			data.Values[key] = v
		}
	}

	result, err := campaign.BuildURL(data.BaseURL, h.agency, data.Values)
	if err != nil {
		return h.render(c, statusFor(err), data, errorFlash(err))
	}
	data.ResultURL = result
	return h.render(c, http.StatusOK, data, nil)
}

// Save stores the built URL with a campaign name and an optional thumbnail
func (h *ParametrizerHandler) Save(c echo.Context) error {
	ctx := c.Request().Context()
	data := h.newData()
	data.ResultURL = strings.TrimSpace(c.FormValue("url"))
	if data.ResultURL == "" {
		err := apperr.New(apperr.KindValidation, "campaign.save", "Generate a URL before saving.")
		return h.render(c, statusFor(err), data, errorFlash(err))
	}

	existing, err := h.api.ListURLs(ctx)
	if err != nil {
		return h.render(c, statusFor(err), data, errorFlash(err))
	}
	name := campaign.DefaultName(c.FormValue("name"), len(existing))

	var image *services.UploadFile
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return h.render(c, http.StatusBadRequest, data, views.ErrorFlash("Could not read the image."))
		}
		defer f.Close()
		image = &services.UploadFile{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return h.render(c, http.StatusBadRequest, data, views.ErrorFlash("Could not read the image."))
	}

	if err := h.api.SaveURL(ctx, name, data.ResultURL, image); err != nil {
		h.logger.Warn("Save URL failed", zap.String("name", name), zap.Error(err))
		return h.render(c, statusFor(err), data, errorFlash(err))
	}
	return redirectWithNotice(c, parametrizerPath, "url_saved")
}

func (h *ParametrizerHandler) Rename(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		err := apperr.New(apperr.KindValidation, "campaign.rename", "The name cannot be empty.")
		return h.render(c, statusFor(err), h.newData(), errorFlash(err))
	}
	if err := h.api.RenameURL(c.Request().Context(), c.Param("id"), name); err != nil {
		return h.render(c, statusFor(err), h.newData(), errorFlash(err))
	}
	return redirectWithNotice(c, parametrizerPath, "url_renamed")
}

func (h *ParametrizerHandler) Delete(c echo.Context) error {
	if err := h.api.DeleteURL(c.Request().Context(), c.Param("id")); err != nil {
		return h.render(c, statusFor(err), h.newData(), errorFlash(err))
	}
	return redirectWithNotice(c, parametrizerPath, "url_deleted")
}

func (h *ParametrizerHandler) newData() ParametrizerData {
	return ParametrizerData{
		Agency:     h.agency,
		Params:     campaign.ParamsList,
		UTMOptions: campaign.UTMOptions,
		Values:     make(map[string]string),
	}
}

// render always shows the saved list as the server returns it
func (h *ParametrizerHandler) render(c echo.Context, status int, data ParametrizerData, flash *views.Flash) error {
	saved, err := h.api.ListURLs(c.Request().Context())
	if err != nil {
		h.logger.Warn("Failed to list URLs", zap.Error(err))
		if flash == nil {
			flash = errorFlash(err)
		}
	}
	data.Saved = saved

	page := newPage(c, "Parametrizer", "parametrizer", data)
	page.Flash = flash
	return c.Render(status, "parametrizer.html", page)
}
