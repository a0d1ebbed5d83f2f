// Package service holds order placement and the order status workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/cache"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/queue"
	"github.com/iliyamo/theater-canteen/internal/repository"
)

var (
	// ErrInvalidOrder wraps every input problem found while placing an order.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrUnavailable is returned when the theater or QR code is inactive.
	ErrUnavailable = errors.New("ordering unavailable")
)

// StaleBatch bounds how many stale orders one sweep cancels.
const StaleBatch = 200

// CacheInvalidator drops cached reads of a namespace after a write made
// outside an HTTP request.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ns string) error
}

type TheaterLookup interface {
	GetByID(ctx context.Context, id uint64) (model.Theater, error)
}

type ProductLookup interface {
	GetMany(ctx context.Context, theaterID uint64, ids []uint64) (map[uint64]model.Product, error)
}

type QRLookup interface {
	GetByCode(ctx context.Context, code string) (model.QRCode, error)
}

type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, theaterID, id uint64) (model.Order, error)
	UpdateStatus(ctx context.Context, theaterID, id uint64, to string) (string, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev queue.OrderEvent) error
}

// LineInput is one requested order line.
type LineInput struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=20"`
}

// PlaceOrderInput describes an order before pricing.
type PlaceOrderInput struct {
	TheaterID     uint64
	Source        string
	QRCodeID      *uint64
	SeatLabel     string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
	PaymentMethod string
	CreatedBy     *uint64
	Items         []LineInput
}

// OrderService prices, stores and advances orders and emits order events.
type OrderService struct {
	theaters TheaterLookup
	products ProductLookup
	qrcodes  QRLookup
	orders   OrderStore
	events   EventPublisher
	cache    CacheInvalidator
	taxBPS   int
	log      *zap.Logger

	now       func() time.Time
	newNumber func(time.Time) string
}

// NewOrderService wires the service. events and cache may be nil.
func NewOrderService(theaters TheaterLookup, products ProductLookup, qrcodes QRLookup, orders OrderStore,
	events EventPublisher, inv CacheInvalidator, taxBasisPoints int, log *zap.Logger) *OrderService {
	return &OrderService{
		theaters:  theaters,
		products:  products,
		qrcodes:   qrcodes,
		orders:    orders,
		events:    events,
		cache:     inv,
		taxBPS:    taxBasisPoints,
		log:       log,
		now:       time.Now,
		newNumber: OrderNumber,
	}
}

// OrderNumber returns ORD-YYMMDD-XXXXXX with a random upper-case suffix.
func OrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "ORD-" + at.UTC().Format("060102") + "-" + suffix
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, fmt.Sprintf(format, args...))
}

// mergeLines validates the requested lines and folds repeated products
// into one line, keeping first-seen order.
func mergeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, invalid("at least one item is required")
	}
	if len(lines) > model.MaxOrderLines {
		return nil, invalid("at most %d items are allowed", model.MaxOrderLines)
	}
	idx := make(map[uint64]int, len(lines))
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == 0 {
			return nil, invalid("product_id is required")
		}
		if l.Quantity < 1 || l.Quantity > model.MaxLineQuantity {
			return nil, invalid("quantity must be between 1 and %d", model.MaxLineQuantity)
		}
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			if out[i].Quantity > model.MaxLineQuantity {
				return nil, invalid("quantity for product %d exceeds %d", l.ProductID, model.MaxLineQuantity)
			}
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

// Place validates and prices the input, stores the order as PENDING and
// publishes order.placed.
func (s *OrderService) Place(ctx context.Context, in PlaceOrderInput) (model.Order, error) {
	if in.Source != model.SourcePOS && in.Source != model.SourceQR {
		return model.Order{}, invalid("unknown source %q", in.Source)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentCash
	}
	if !model.ValidPaymentMethod(in.PaymentMethod) {
		return model.Order{}, invalid("unknown payment method %q", in.PaymentMethod)
	}
	lines, err := mergeLines(in.Items)
	if err != nil {
		return model.Order{}, err
	}

	theater, err := s.theaters.GetByID(ctx, in.TheaterID)
	if err != nil {
		return model.Order{}, err
	}
	if !theater.IsActive {
		return model.Order{}, ErrUnavailable
	}

	ids := make([]uint64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.products.GetMany(ctx, in.TheaterID, ids)
	if err != nil {
		return model.Order{}, err
	}

	o := model.Order{
		TheaterID:     in.TheaterID,
		Source:        in.Source,
		QRCodeID:      in.QRCodeID,
		SeatLabel:     in.SeatLabel,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Notes:         strings.TrimSpace(in.Notes),
		Status:        model.OrderPending,
		PaymentMethod: in.PaymentMethod,
		CreatedBy:     in.CreatedBy,
		Items:         make([]model.OrderItem, 0, len(lines)),
	}
	var subtotal uint64
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return model.Order{}, invalid("product %d not found", l.ProductID)
		}
		if !p.Available(l.Quantity) {
			if !p.IsActive {
				return model.Order{}, invalid("product %q is not available", p.Name)
			}
			return model.Order{}, fmt.Errorf("%w: %s", repository.ErrInsufficientStock, p.Name)
		}
		line := uint64(p.PriceCents) * uint64(l.Quantity)
		subtotal += line
		o.Items = append(o.Items, model.OrderItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			UnitPriceCents: p.PriceCents,
			Quantity:       l.Quantity,
			LineTotalCents: uint32(line),
		})
	}
	if subtotal > 1<<31 {
		return model.Order{}, invalid("order total too large")
	}
	o.SubtotalCents = uint32(subtotal)
	o.TaxCents = model.TaxCents(o.SubtotalCents, s.taxBPS)
	o.TotalCents = o.SubtotalCents + o.TaxCents

	for attempt := 0; attempt < 2; attempt++ {
		o.OrderNumber = s.newNumber(s.now())
		err = s.orders.Create(ctx, &o)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return model.Order{}, err
	}

	s.publish(ctx, queue.Placed(theater.Name, o, s.now()))
	return o, nil
}

// PlaceQR places a customer order through the QR code identified by code.
// The theater comes from the code and a screen code fixes the seat label.
func (s *OrderService) PlaceQR(ctx context.Context, code string, in PlaceOrderInput) (model.Order, error) {
	qr, err := s.qrcodes.GetByCode(ctx, code)
	if err != nil {
		return model.Order{}, err
	}
	if !qr.IsActive {
		return model.Order{}, ErrUnavailable
	}
	in.TheaterID = qr.TheaterID
	in.Source = model.SourceQR
	in.QRCodeID = &qr.ID
	in.CreatedBy = nil
	if qr.QRType == model.QRTypeScreen && qr.SeatLabel != "" {
		in.SeatLabel = qr.SeatLabel
	}
	if in.CustomerPhone == "" {
		return model.Order{}, invalid("customer_phone is required")
	}
	return s.Place(ctx, in)
}

// UpdateStatus advances or cancels an order and publishes
// order.status_changed.
func (s *OrderService) UpdateStatus(ctx context.Context, theaterID, id uint64, to string) (model.Order, error) {
	if !model.ValidOrderStatus(to) {
		return model.Order{}, model.ErrInvalidTransition
	}
	from, err := s.orders.UpdateStatus(ctx, theaterID, id, to)
	if err != nil {
		return model.Order{}, err
	}
	o, err := s.orders.Get(ctx, theaterID, id)
	if err != nil {
		return model.Order{}, err
	}
	s.publishStatus(ctx, from, o)
	return o, nil
}

func (s *OrderService) publishStatus(ctx context.Context, from string, o model.Order) {
	name := ""
	if t, err := s.theaters.GetByID(ctx, o.TheaterID); err == nil {
		name = t.Name
	}
	s.publish(ctx, queue.StatusChanged(name, from, o, s.now()))
}

// CancelStale cancels PENDING orders created more than olderThan ago and
// returns how many were cancelled. Cancelling restores stock, so every
// touched theater's cache namespace is invalidated.
func (s *OrderService) CancelStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.orders.ListStale(ctx, s.now().Add(-olderThan), StaleBatch)
	if err != nil {
		return 0, err
	}
	touched := map[uint64]bool{}
	defer func() {
		for tid := range touched {
			s.invalidate(ctx, tid)
		}
	}()
	n := 0
	for _, o := range stale {
		from, err := s.orders.UpdateStatus(ctx, o.TheaterID, o.ID, model.OrderCancelled)
		if errors.Is(err, model.ErrInvalidTransition) || errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		touched[o.TheaterID] = true
		o.Status = model.OrderCancelled
		s.publishStatus(ctx, from, o)
	}
	return n, nil
}

func (s *OrderService) invalidate(ctx context.Context, theaterID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.TheaterNamespace(theaterID)); err != nil {
		s.log.Warn("cache invalidation failed", zap.Uint64("theater_id", theaterID), zap.Error(err))
	}
}

func (s *OrderService) publish(ctx context.Context, ev queue.OrderEvent) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		s.log.Warn("order event not published",
			zap.String("event", ev.Type), zap.String("order_number", ev.Order.OrderNumber), zap.Error(err))
	}
}
