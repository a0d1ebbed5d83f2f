package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/storage"
)

// UploadHandler accepts image uploads and forwards them to the image store.
type UploadHandler struct {
	Images   storage.ImageStore // nil when uploads are not configured
	MaxBytes int64
	Allowed  []string
}

// Image: POST /v1/upload/image (multipart: file, folder)
func (h *UploadHandler) Image(c echo.Context) error {
	if h.Images == nil {
		return storage.ErrNotConfigured
	}
	folder := strings.TrimSpace(c.FormValue("folder"))
	if folder == "" {
		folder = storage.FolderProducts
	}
	if !storage.ValidFolder(folder) {
		return badRequest("invalid folder")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("file is required")
	}
	if fh.Size > h.MaxBytes {
		return storage.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	checked, err := storage.Check(f, h.MaxBytes, h.Allowed)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 6*requestTimeout)
	defer cancel()
	res, err := h.Images.Upload(ctx, folder, uuid.NewString(), checked.Reader())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}
