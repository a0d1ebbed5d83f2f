package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/cache"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/repository"
	"github.com/iliyamo/theater-canteen/internal/service"
)

type qrResolver interface {
	GetByCode(ctx context.Context, code string) (model.QRCode, error)
}

type menuTypes interface {
	List(ctx context.Context, theaterID uint64, activeOnly bool) ([]model.ProductType, error)
}

type menuProducts interface {
	ListActive(ctx context.Context, theaterID uint64) ([]model.Product, error)
}

type otpService interface {
	Issue(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) error
}

// PublicHandler serves the unauthenticated QR ordering flow.
type PublicHandler struct {
	QRCodes  qrResolver
	Theaters theaterGetter
	Types    menuTypes
	Products menuProducts
	Orders   orderPlacer
	Lookup   orderReader
	OTP      otpService
	Cache    *cache.Cache // nil disables menu caching
}

// MenuTheater is the public part of a theater.
type MenuTheater struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	LogoURL string `json:"logo_url"`
}

// MenuSection is one product type with its active products.
type MenuSection struct {
	model.ProductType
	Products []model.Product `json:"products"`
}

// Menu is what a scanned QR code shows.
type Menu struct {
	Theater  MenuTheater   `json:"theater"`
	Sections []MenuSection `json:"sections"`
}

type menuQR struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	QRType    string `json:"qr_type"`
	SeatLabel string `json:"seat_label,omitempty"`
}

type publicOrderReq struct {
	Code          string              `json:"code" validate:"required,max=64"`
	CustomerName  string              `json:"customer_name" validate:"max=100"`
	CustomerPhone string              `json:"customer_phone" validate:"required,phone"`
	CustomerEmail string              `json:"customer_email" validate:"omitempty,email,max=150"`
	Notes         string              `json:"notes" validate:"max=500"`
	PaymentMethod string              `json:"payment_method" validate:"omitempty,oneof=CASH CARD UPI"`
	Items         []service.LineInput `json:"items" validate:"required,min=1,max=50,dive"`
}

type otpSendReq struct {
	Phone string `json:"phone" validate:"required,phone"`
}

type otpVerifyReq struct {
	Phone string `json:"phone" validate:"required,phone"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10"`
}

// activeQR resolves a code and checks both the code and its theater are
// active. Unknown and inactive codes are indistinguishable to callers.
func (h *PublicHandler) activeQR(ctx context.Context, code string) (model.QRCode, model.Theater, error) {
	qr, err := h.QRCodes.GetByCode(ctx, code)
	if err != nil {
		return model.QRCode{}, model.Theater{}, err
	}
	if !qr.IsActive {
		return model.QRCode{}, model.Theater{}, repository.ErrNotFound
	}
	t, err := h.Theaters.GetByID(ctx, qr.TheaterID)
	if err != nil {
		return model.QRCode{}, model.Theater{}, err
	}
	if !t.IsActive {
		return model.QRCode{}, model.Theater{}, service.ErrUnavailable
	}
	return qr, t, nil
}

func (h *PublicHandler) loadMenu(t model.Theater) func(ctx context.Context) (Menu, error) {
	return func(ctx context.Context) (Menu, error) {
		types, err := h.Types.List(ctx, t.ID, true)
		if err != nil {
			return Menu{}, err
		}
		products, err := h.Products.ListActive(ctx, t.ID)
		if err != nil {
			return Menu{}, err
		}
		byType := make(map[uint64][]model.Product, len(types))
		for _, p := range products {
			byType[p.ProductTypeID] = append(byType[p.ProductTypeID], p)
		}
		m := Menu{
			Theater:  MenuTheater{ID: t.ID, Name: t.Name, Slug: t.Slug, LogoURL: t.LogoURL},
			Sections: make([]MenuSection, 0, len(types)),
		}
		for _, pt := range types {
			ps := byType[pt.ID]
			if len(ps) == 0 {
				continue
			}
			m.Sections = append(m.Sections, MenuSection{ProductType: pt, Products: ps})
		}
		return m, nil
	}
}

// Menu: GET /v1/public/menu/:code. The QR lookup is never cached so that
// disabling a code takes effect at once; the catalogue part is cached in
// the theater namespace.
func (h *PublicHandler) Menu(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return badRequest("invalid code")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	qr, t, err := h.activeQR(ctx, code)
	if err != nil {
		return err
	}
	var menu Menu
	if h.Cache != nil {
		menu, err = cache.GetOrLoadJSON(ctx, h.Cache, cache.TheaterNamespace(t.ID), "menu", h.loadMenu(t))
	} else {
		menu, err = h.loadMenu(t)(ctx)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"qr":       menuQR{Code: qr.Code, Name: qr.Name, QRType: qr.QRType, SeatLabel: qr.SeatLabel},
		"theater":  menu.Theater,
		"sections": menu.Sections,
	})
}

// PlaceOrder: POST /v1/public/orders
func (h *PublicHandler) PlaceOrder(c echo.Context) error {
	var req publicOrderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.PlaceQR(ctx, req.Code, service.PlaceOrderInput{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Notes:         strings.TrimSpace(req.Notes),
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
	})
	if err != nil {
		return err
	}
	// stock changed; the route has no :theaterId for InvalidateOnWrite
	if h.Cache != nil {
		_ = h.Cache.Invalidate(ctx, cache.TheaterNamespace(o.TheaterID))
	}
	return c.JSON(http.StatusCreated, o)
}

// Track: GET /v1/public/orders/track?number=&phone=. A phone that does not
// match answers 404 like an unknown number.
func (h *PublicHandler) Track(c echo.Context) error {
	number := strings.ToUpper(strings.TrimSpace(c.QueryParam("number")))
	phone := strings.TrimSpace(c.QueryParam("phone"))
	if number == "" || phone == "" {
		return badRequest("number and phone are required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Lookup.GetByNumber(ctx, number)
	if err != nil {
		return err
	}
	if o.CustomerPhone != phone {
		return repository.ErrNotFound
	}
	o.CreatedBy = nil
	return c.JSON(http.StatusOK, o)
}

// SendOTP: POST /v1/public/otp/send
func (h *PublicHandler) SendOTP(c echo.Context) error {
	var req otpSendReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.OTP.Issue(ctx, req.Phone); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, echo.Map{"sent": true})
}

// VerifyOTP: POST /v1/public/otp/verify
func (h *PublicHandler) VerifyOTP(c echo.Context) error {
	var req otpVerifyReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.OTP.Verify(ctx, req.Phone, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}
