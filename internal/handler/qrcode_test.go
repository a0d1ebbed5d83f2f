package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/repository"
	"github.com/iliyamo/theater-canteen/internal/storage"
)

type fakeQRNames struct {
	names map[uint64]model.QRCodeName
}

func (f *fakeQRNames) Create(_ context.Context, n *model.QRCodeName) error {
	for _, x := range f.names {
		if x.TheaterID == n.TheaterID && x.Name == n.Name {
			return repository.ErrDuplicate
		}
	}
	n.ID = uint64(len(f.names) + 1)
	f.names[n.ID] = *n
	return nil
}

func (f *fakeQRNames) Get(_ context.Context, theaterID, id uint64) (model.QRCodeName, error) {
	n, ok := f.names[id]
	if !ok || n.TheaterID != theaterID {
		return model.QRCodeName{}, repository.ErrNotFound
	}
	return n, nil
}

func (f *fakeQRNames) List(_ context.Context, theaterID uint64) ([]model.QRCodeName, error) {
	var out []model.QRCodeName
	for _, n := range f.names {
		if n.TheaterID == theaterID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeQRNames) Update(_ context.Context, n *model.QRCodeName) error {
	f.names[n.ID] = *n
	return nil
}

func (f *fakeQRNames) Delete(_ context.Context, theaterID, id uint64) error {
	if _, err := f.Get(context.Background(), theaterID, id); err != nil {
		return err
	}
	delete(f.names, id)
	return nil
}

type fakeQRCodes struct {
	codes []*model.QRCode
}

func (f *fakeQRCodes) add(q *model.QRCode) {
	q.ID = uint64(len(f.codes) + 1)
	f.codes = append(f.codes, q)
}

func (f *fakeQRCodes) Create(_ context.Context, q *model.QRCode) error {
	f.add(q)
	return nil
}

func (f *fakeQRCodes) CreateBatch(_ context.Context, codes []*model.QRCode) error {
	for _, q := range codes {
		f.add(q)
	}
	return nil
}

func (f *fakeQRCodes) Get(_ context.Context, theaterID, id uint64) (model.QRCode, error) {
	for _, q := range f.codes {
		if q.ID == id && q.TheaterID == theaterID {
			return *q, nil
		}
	}
	return model.QRCode{}, repository.ErrNotFound
}

func (f *fakeQRCodes) SeatLabels(_ context.Context, nameID uint64) (map[string]bool, error) {
	out := map[string]bool{}
	for _, q := range f.codes {
		if q.QRCodeNameID != nil && *q.QRCodeNameID == nameID {
			out[q.SeatLabel] = true
		}
	}
	return out, nil
}

func (f *fakeQRCodes) List(_ context.Context, theaterID uint64, flt model.QRCodeFilter) ([]model.QRCode, int, error) {
	var out []model.QRCode
	for _, q := range f.codes {
		if q.TheaterID == theaterID && (flt.QRType == "" || q.QRType == flt.QRType) {
			out = append(out, *q)
		}
	}
	return out, len(out), nil
}

func (f *fakeQRCodes) SetActive(_ context.Context, theaterID, id uint64, active bool) error {
	for _, q := range f.codes {
		if q.ID == id && q.TheaterID == theaterID {
			q.IsActive = active
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeQRCodes) SetImageURL(_ context.Context, theaterID, id uint64, url string) error {
	for _, q := range f.codes {
		if q.ID == id && q.TheaterID == theaterID {
			q.ImageURL = url
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeQRCodes) Delete(_ context.Context, theaterID, id uint64) error {
	for i, q := range f.codes {
		if q.ID == id && q.TheaterID == theaterID {
			f.codes = append(f.codes[:i], f.codes[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeImages struct {
	folder string
	name   string
	data   []byte
}

func (f *fakeImages) Upload(_ context.Context, folder, name string, r io.Reader) (storage.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.UploadResult{}, err
	}
	f.folder, f.name, f.data = folder, name, data
	return storage.UploadResult{URL: "https://img.example/" + folder + "/" + name, PublicID: folder + "/" + name, Bytes: len(data), Format: "png"}, nil
}

func (f *fakeImages) Delete(context.Context, string) error { return nil }

func qrFixture(images storage.ImageStore) (*echo.Echo, *fakeQRNames, *fakeQRCodes) {
	names := &fakeQRNames{names: map[uint64]model.QRCodeName{
		1: {ID: 1, TheaterID: 1, Name: "Screen 1", IsActive: true},
		2: {ID: 2, TheaterID: 2, Name: "Elsewhere", IsActive: true},
	}}
	codes := &fakeQRCodes{}
	h := &QRCodeHandler{
		Names:    names,
		Codes:    codes,
		Theaters: fakeTheaters{1: {ID: 1, Slug: "grand", IsActive: true}},
		Images:   images,
		BaseURL:  "https://menu.example",
	}
	e := newEcho(theaterAdmin)
	g := e.Group("/v1/theaters/:theaterId")
	g.GET("/qr-names", h.ListNames)
	g.POST("/qr-names", h.CreateName)
	g.GET("/qr-names/:id", h.GetName)
	g.POST("/qrcodes/single", h.CreateSingle)
	g.POST("/qrcodes/screen/preview", h.PreviewScreen)
	g.POST("/qrcodes/screen", h.GenerateScreen)
	g.GET("/qrcodes", h.List)
	g.PATCH("/qrcodes/:id/active", h.SetActive)
	g.GET("/qrcodes/:id/image.png", h.Image)
	g.POST("/qrcodes/:id/image", h.UploadImage)
	return e, names, codes
}

func TestQRCodeHandler_Names(t *testing.T) {
	e, _, _ := qrFixture(nil)
	runHTTPTests(t, e, []httpTest{
		{name: "create", method: http.MethodPost, path: "/v1/theaters/1/qr-names",
			body: `{"name":"Screen 2","seat_class":"Premium"}`, wantCode: http.StatusCreated},
		{name: "duplicate", method: http.MethodPost, path: "/v1/theaters/1/qr-names",
			body: `{"name":"Screen 2"}`, wantCode: http.StatusConflict},
		{name: "blank", method: http.MethodPost, path: "/v1/theaters/1/qr-names",
			body: `{"name":"   "}`, wantCode: http.StatusBadRequest},
		{name: "other theater's name", method: http.MethodGet, path: "/v1/theaters/1/qr-names/2", wantCode: http.StatusNotFound},
	})
}

func TestQRCodeHandler_CreateSingle(t *testing.T) {
	e, _, codes := qrFixture(nil)

	rec := serve(e, http.MethodPost, "/v1/theaters/1/qrcodes/single", `{"name":"Counter"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decode[model.QRCode](t, rec)
	assert.Equal(t, model.QRTypeSingle, q.QRType)
	assert.True(t, q.IsActive)
	assert.Equal(t, "https://menu.example/t/grand/menu?qr="+q.Code, q.TargetURL)
	assert.Len(t, codes.codes, 1)
}

func TestQRCodeHandler_ScreenSkipsExistingSeats(t *testing.T) {
	e, _, codes := qrFixture(nil)
	body := `{"qr_code_name_id":1,"rows":"A-B","seats_per_row":3,"skip":["B2"]}`

	rec := serve(e, http.MethodPost, "/v1/theaters/1/qrcodes/screen/preview", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[struct {
		New     []string `json:"new"`
		Skipped []string `json:"skipped"`
	}](t, rec)
	assert.Equal(t, []string{"A1", "A2", "A3", "B1", "B3"}, preview.New)
	assert.Empty(t, preview.Skipped)
	assert.Empty(t, codes.codes, "preview is a dry run")

	rec = serve(e, http.MethodPost, "/v1/theaters/1/qrcodes/screen", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, codes.codes, 5)
	for _, q := range codes.codes {
		assert.Equal(t, model.QRTypeScreen, q.QRType)
		require.NotNil(t, q.QRCodeNameID)
		assert.Equal(t, uint64(1), *q.QRCodeNameID)
		assert.True(t, strings.HasPrefix(q.Name, "Screen 1 "))
	}

	rec = serve(e, http.MethodPost, "/v1/theaters/1/qrcodes/screen",
		`{"qr_code_name_id":1,"rows":"B-C","seats_per_row":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[struct {
		Created int      `json:"created"`
		Skipped []string `json:"skipped"`
	}](t, rec)
	assert.Equal(t, 4, res.Created, "B2 plus row C")
	assert.Equal(t, []string{"B1", "B3"}, res.Skipped)

	runHTTPTests(t, e, []httpTest{
		{name: "descending range", method: http.MethodPost, path: "/v1/theaters/1/qrcodes/screen",
			body: `{"qr_code_name_id":1,"rows":"D-A","seats_per_row":3}`, wantCode: http.StatusBadRequest},
		{name: "no seats", method: http.MethodPost, path: "/v1/theaters/1/qrcodes/screen",
			body: `{"qr_code_name_id":1,"rows":"A","seats_per_row":0}`, wantCode: http.StatusBadRequest},
		{name: "foreign name", method: http.MethodPost, path: "/v1/theaters/1/qrcodes/screen",
			body: `{"qr_code_name_id":2,"rows":"A","seats_per_row":2}`, wantCode: http.StatusNotFound},
		{name: "filter by type", method: http.MethodGet, path: "/v1/theaters/1/qrcodes?qr_type=screen", wantCode: http.StatusOK},
		{name: "bad type", method: http.MethodGet, path: "/v1/theaters/1/qrcodes?qr_type=round", wantCode: http.StatusBadRequest},
		{name: "toggle", method: http.MethodPatch, path: "/v1/theaters/1/qrcodes/1/active",
			body: `{"is_active":false}`, wantCode: http.StatusOK},
		{name: "toggle needs a value", method: http.MethodPatch, path: "/v1/theaters/1/qrcodes/1/active",
			body: `{}`, wantCode: http.StatusBadRequest},
	})
	assert.False(t, codes.codes[0].IsActive)
}

func TestQRCodeHandler_ScreenStartNumberBound(t *testing.T) {
	e, _, codes := qrFixture(nil)
	runHTTPTests(t, e, []httpTest{
		{name: "preview past bound", method: http.MethodPost, path: "/v1/theaters/1/qrcodes/screen/preview",
			body: `{"qr_code_name_id":1,"rows":"A","seats_per_row":2,"start_number":1000000000000}`, wantCode: http.StatusBadRequest},
		{name: "generate past bound", method: http.MethodPost, path: "/v1/theaters/1/qrcodes/screen",
			body: `{"qr_code_name_id":1,"rows":"A","seats_per_row":2,"start_number":10000}`, wantCode: http.StatusBadRequest},
		{name: "negative", method: http.MethodPost, path: "/v1/theaters/1/qrcodes/screen",
			body: `{"qr_code_name_id":1,"rows":"A","seats_per_row":2,"start_number":-1}`, wantCode: http.StatusBadRequest},
	})
	assert.Empty(t, codes.codes)

	rec := serve(e, http.MethodPost, "/v1/theaters/1/qrcodes/screen",
		`{"qr_code_name_id":1,"rows":"ZZ","seats_per_row":200,"start_number":9999}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, codes.codes, 200)
	for _, q := range codes.codes {
		assert.LessOrEqual(t, len(q.SeatLabel), 16, q.SeatLabel)
	}
}

func TestQRCodeHandler_Image(t *testing.T) {
	images := &fakeImages{}
	e, _, codes := qrFixture(images)
	codes.add(&model.QRCode{TheaterID: 1, Code: "abc", TargetURL: "https://menu.example/t/grand/menu?qr=abc", IsActive: true})

	rec := serve(e, http.MethodGet, "/v1/theaters/1/qrcodes/1/image.png?size=256&download=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "qr-abc.png")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = serve(e, http.MethodPost, "/v1/theaters/1/qrcodes/1/image")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, storage.FolderQRCodes, images.folder)
	assert.Equal(t, "qr-abc", images.name)
	assert.Equal(t, "https://img.example/qrcodes/qr-abc", codes.codes[0].ImageURL)

	noStore, _, _ := qrFixture(nil)
	rec = serve(noStore, http.MethodPost, "/v1/theaters/1/qrcodes/1/image")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
