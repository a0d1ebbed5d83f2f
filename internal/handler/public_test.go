package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-canteen/internal/cache"
	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/notify"
	"github.com/iliyamo/theater-canteen/internal/repository"
)

type fakeQRs map[string]model.QRCode

func (f fakeQRs) GetByCode(_ context.Context, code string) (model.QRCode, error) {
	q, ok := f[code]
	if !ok {
		return model.QRCode{}, repository.ErrNotFound
	}
	return q, nil
}

type fakeTheaters map[uint64]model.Theater

func (f fakeTheaters) GetByID(_ context.Context, id uint64) (model.Theater, error) {
	t, ok := f[id]
	if !ok {
		return model.Theater{}, repository.ErrNotFound
	}
	return t, nil
}

type fakeCatalogue struct {
	types    []model.ProductType
	products []model.Product
	loads    int
}

func (f *fakeCatalogue) List(_ context.Context, theaterID uint64, activeOnly bool) ([]model.ProductType, error) {
	f.loads++
	var out []model.ProductType
	for _, t := range f.types {
		if t.TheaterID == theaterID && (!activeOnly || t.IsActive) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeCatalogue) ListActive(_ context.Context, theaterID uint64) ([]model.Product, error) {
	var out []model.Product
	for _, p := range f.products {
		if p.TheaterID == theaterID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOTP struct {
	issued map[string]bool
}

func (f *fakeOTP) Issue(_ context.Context, phone string) error {
	if f.issued[phone] {
		return notify.ErrOTPCooldown
	}
	f.issued[phone] = true
	return nil
}

func (f *fakeOTP) Verify(_ context.Context, phone, code string) error {
	if !f.issued[phone] {
		return notify.ErrOTPExpired
	}
	if code != "123456" {
		return notify.ErrOTPMismatch
	}
	return nil
}

type publicFixture struct {
	e       *echo.Echo
	cat     *fakeCatalogue
	svc     *fakeOrderService
	cache   *cache.Cache
	handler *PublicHandler
}

func newPublicFixture() publicFixture {
	cat := &fakeCatalogue{
		types: []model.ProductType{
			{ID: 1, TheaterID: 1, Name: "Snacks", IsActive: true},
			{ID: 2, TheaterID: 1, Name: "Hidden", IsActive: false},
			{ID: 3, TheaterID: 1, Name: "Empty", IsActive: true},
		},
		products: []model.Product{
			{ID: 10, TheaterID: 1, ProductTypeID: 1, Name: "Popcorn", PriceCents: 25000, IsActive: true},
			{ID: 11, TheaterID: 1, ProductTypeID: 2, Name: "Secret", PriceCents: 100, IsActive: true},
			{ID: 12, TheaterID: 1, ProductTypeID: 1, Name: "Nachos", PriceCents: 30000, IsActive: false},
		},
	}
	svc := &fakeOrderService{}
	c := cache.New(config.CacheConfig{MaxEntries: 100}, nil, nil)
	h := &PublicHandler{
		QRCodes: fakeQRs{
			"seat-a1": {ID: 1, TheaterID: 1, Code: "seat-a1", Name: "Screen 1 A1", QRType: model.QRTypeScreen, SeatLabel: "A1", IsActive: true},
			"off":     {ID: 2, TheaterID: 1, Code: "off", IsActive: false},
			"closed":  {ID: 3, TheaterID: 2, Code: "closed", IsActive: true},
		},
		Theaters: fakeTheaters{
			1: {ID: 1, Name: "Grand", Slug: "grand", IsActive: true},
			2: {ID: 2, Name: "Closed", Slug: "closed", IsActive: false},
		},
		Types:    cat,
		Products: cat,
		Orders:   svc,
		Lookup: &fakeOrderReader{orders: []model.Order{
			{ID: 1, TheaterID: 1, OrderNumber: "ORD-261019-AAAAAA", CustomerPhone: "+15550001111", CreatedBy: ptr(uint64(7))},
		}},
		OTP:   &fakeOTP{issued: map[string]bool{}},
		Cache: c,
	}
	e := newEcho(identity{})
	g := e.Group("/v1/public")
	g.GET("/menu/:code", h.Menu)
	g.POST("/orders", h.PlaceOrder)
	g.GET("/orders/track", h.Track)
	g.POST("/otp/send", h.SendOTP)
	g.POST("/otp/verify", h.VerifyOTP)
	return publicFixture{e: e, cat: cat, svc: svc, cache: c, handler: h}
}

func TestPublicHandler_Menu(t *testing.T) {
	f := newPublicFixture()

	rec := serve(f.e, http.MethodGet, "/v1/public/menu/seat-a1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		QR       menuQR        `json:"qr"`
		Theater  MenuTheater   `json:"theater"`
		Sections []MenuSection `json:"sections"`
	}](t, rec)
	assert.Equal(t, "A1", body.QR.SeatLabel)
	assert.Equal(t, "grand", body.Theater.Slug)
	require.Len(t, body.Sections, 1, "inactive and empty types are left out")
	assert.Equal(t, "Snacks", body.Sections[0].Name)
	require.Len(t, body.Sections[0].Products, 1)
	assert.Equal(t, "Popcorn", body.Sections[0].Products[0].Name)

	// second scan is served from the cache until the namespace is bumped
	serve(f.e, http.MethodGet, "/v1/public/menu/seat-a1")
	assert.Equal(t, 1, f.cat.loads)
	require.NoError(t, f.cache.Invalidate(context.Background(), cache.TheaterNamespace(1)))
	serve(f.e, http.MethodGet, "/v1/public/menu/seat-a1")
	assert.Equal(t, 2, f.cat.loads)

	runHTTPTests(t, f.e, []httpTest{
		{name: "unknown code", method: http.MethodGet, path: "/v1/public/menu/nope", wantCode: http.StatusNotFound},
		{name: "inactive code", method: http.MethodGet, path: "/v1/public/menu/off", wantCode: http.StatusNotFound},
		{name: "inactive theater", method: http.MethodGet, path: "/v1/public/menu/closed", wantCode: http.StatusConflict},
	})
}

func TestPublicHandler_PlaceOrder(t *testing.T) {
	f := newPublicFixture()

	rec := serve(f.e, http.MethodPost, "/v1/public/orders",
		`{"code":"seat-a1","customer_phone":"+15550001111","items":[{"product_id":10,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "seat-a1", f.svc.qrCode)
	require.Len(t, f.svc.placed, 1)
	assert.Nil(t, f.svc.placed[0].CreatedBy)

	runHTTPTests(t, f.e, []httpTest{
		{name: "phone required", method: http.MethodPost, path: "/v1/public/orders",
			body: `{"code":"seat-a1","items":[{"product_id":10,"quantity":1}]}`, wantCode: http.StatusBadRequest},
		{name: "bad phone", method: http.MethodPost, path: "/v1/public/orders",
			body: `{"code":"seat-a1","customer_phone":"12ab","items":[{"product_id":10,"quantity":1}]}`, wantCode: http.StatusBadRequest},
		{name: "no items", method: http.MethodPost, path: "/v1/public/orders",
			body: `{"code":"seat-a1","customer_phone":"+15550001111","items":[]}`, wantCode: http.StatusBadRequest},
	})
}

func TestPublicHandler_Track(t *testing.T) {
	f := newPublicFixture()

	rec := serve(f.e, http.MethodGet, "/v1/public/orders/track?number=ord-261019-aaaaaa&phone=%2B15550001111")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o := decode[model.Order](t, rec)
	assert.Equal(t, "ORD-261019-AAAAAA", o.OrderNumber)
	assert.Nil(t, o.CreatedBy)

	runHTTPTests(t, f.e, []httpTest{
		{name: "wrong phone", method: http.MethodGet, path: "/v1/public/orders/track?number=ORD-261019-AAAAAA&phone=%2B15559999999", wantCode: http.StatusNotFound},
		{name: "missing phone", method: http.MethodGet, path: "/v1/public/orders/track?number=ORD-261019-AAAAAA", wantCode: http.StatusBadRequest},
	})
}

func TestPublicHandler_OTP(t *testing.T) {
	f := newPublicFixture()

	runHTTPTests(t, f.e, []httpTest{
		{name: "verify before send", method: http.MethodPost, path: "/v1/public/otp/verify",
			body: `{"phone":"+15550001111","code":"123456"}`, wantCode: http.StatusBadRequest},
		{name: "send", method: http.MethodPost, path: "/v1/public/otp/send",
			body: `{"phone":"+15550001111"}`, wantCode: http.StatusAccepted},
		{name: "resend too soon", method: http.MethodPost, path: "/v1/public/otp/send",
			body: `{"phone":"+15550001111"}`, wantCode: http.StatusTooManyRequests},
		{name: "wrong code", method: http.MethodPost, path: "/v1/public/otp/verify",
			body: `{"phone":"+15550001111","code":"000000"}`, wantCode: http.StatusBadRequest, wantErr: "does not match"},
		{name: "right code", method: http.MethodPost, path: "/v1/public/otp/verify",
			body: `{"phone":"+15550001111","code":"123456"}`, wantCode: http.StatusOK},
	})
}
