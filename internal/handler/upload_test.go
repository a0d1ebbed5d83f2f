package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-canteen/internal/qrcode"
	"github.com/iliyamo/theater-canteen/internal/storage"
)

var allowedImages = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

func multipartRequest(t *testing.T, folder, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if folder != "" {
		require.NoError(t, w.WriteField("folder", folder))
	}
	if data != nil {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/upload/image", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUploadHandler_Image(t *testing.T) {
	png, err := qrcode.RenderPNG("https://menu.example", 128)
	require.NoError(t, err)

	images := &fakeImages{}
	e := newEcho(theaterAdmin)
	h := &UploadHandler{Images: images, MaxBytes: 64 << 10, Allowed: allowedImages}
	e.POST("/v1/upload/image", h.Image)

	tests := []struct {
		name     string
		folder   string
		filename string
		data     []byte
		wantCode int
	}{
		{"png with misleading name", storage.FolderBanners, "banner.jpg", png, http.StatusCreated},
		{"default folder", "", "a.png", png, http.StatusCreated},
		{"text file", storage.FolderProducts, "a.png", []byte("just some text"), http.StatusUnsupportedMediaType},
		{"too large", storage.FolderProducts, "a.png", append(append([]byte{}, png...), make([]byte, 64<<10)...), http.StatusRequestEntityTooLarge},
		{"unknown folder", "secrets", "a.png", png, http.StatusBadRequest},
		{"missing file", storage.FolderProducts, "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, multipartRequest(t, tt.folder, tt.filename, tt.data))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, storage.FolderProducts, images.folder, "last successful upload used the default folder")
	assert.Equal(t, png, images.data)
}

func TestUploadHandler_NotConfigured(t *testing.T) {
	e := newEcho(theaterAdmin)
	h := &UploadHandler{MaxBytes: 1 << 20, Allowed: allowedImages}
	e.POST("/v1/upload/image", h.Image)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "", "a.png", []byte("x")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
