package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/service"
)

type orderPlacer interface {
	Place(ctx context.Context, in service.PlaceOrderInput) (model.Order, error)
	PlaceQR(ctx context.Context, code string, in service.PlaceOrderInput) (model.Order, error)
	UpdateStatus(ctx context.Context, theaterID, id uint64, to string) (model.Order, error)
}

type orderReader interface {
	Get(ctx context.Context, theaterID, id uint64) (model.Order, error)
	GetByNumber(ctx context.Context, number string) (model.Order, error)
	List(ctx context.Context, theaterID uint64, f model.OrderFilter) ([]model.Order, int, error)
}

// OrderHandler serves POS ordering and order management.
type OrderHandler struct {
	Service orderPlacer
	Orders  orderReader
}

type posOrderReq struct {
	CustomerName  string              `json:"customer_name" validate:"max=100"`
	CustomerPhone string              `json:"customer_phone" validate:"omitempty,phone"`
	CustomerEmail string              `json:"customer_email" validate:"omitempty,email,max=150"`
	SeatLabel     string              `json:"seat_label" validate:"max=10"`
	Notes         string              `json:"notes" validate:"max=500"`
	PaymentMethod string              `json:"payment_method" validate:"omitempty,oneof=CASH CARD UPI"`
	Items         []service.LineInput `json:"items" validate:"required,min=1,max=50,dive"`
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED PREPARING READY COMPLETED CANCELLED"`
}

// Create: POST /v1/theaters/:theaterId/orders
func (h *OrderHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req posOrderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Service.Place(ctx, service.PlaceOrderInput{
		TheaterID:     theaterParam(c),
		Source:        model.SourcePOS,
		SeatLabel:     strings.ToUpper(strings.TrimSpace(req.SeatLabel)),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Notes:         strings.TrimSpace(req.Notes),
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     &uid,
		Items:         req.Items,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func parseDay(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// List: GET /v1/theaters/:theaterId/orders?status=&source=&from=&to=&q=&page=&size=
// from/to accept RFC 3339 or YYYY-MM-DD; a bare date for "to" includes
// that whole day.
func (h *OrderHandler) List(c echo.Context) error {
	f := model.OrderFilter{
		Status: strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		Source: strings.ToUpper(strings.TrimSpace(c.QueryParam("source"))),
		Search: strings.TrimSpace(c.QueryParam("q")),
		Page:   pageFrom(c),
	}
	if f.Status != "" && !model.ValidOrderStatus(f.Status) {
		return badRequest("invalid status")
	}
	if f.Source != "" && f.Source != model.SourcePOS && f.Source != model.SourceQR {
		return badRequest("invalid source")
	}
	var err error
	if f.From, err = parseDay(c.QueryParam("from"), false); err != nil {
		return badRequest("invalid from")
	}
	if f.To, err = parseDay(c.QueryParam("to"), true); err != nil {
		return badRequest("invalid to")
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return badRequest("to must be after from")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, total, err := h.Orders.List(ctx, theaterParam(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.NewPageResult(items, total, f.Page))
}

// Get: GET /v1/theaters/:theaterId/orders/:id
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.Get(ctx, theaterParam(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// UpdateStatus: PATCH /v1/theaters/:theaterId/orders/:id/status
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Service.UpdateStatus(ctx, theaterParam(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}
