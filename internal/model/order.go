package model

import (
	"errors"
	"time"
)

// Order statuses.
const (
	OrderPending   = "PENDING"
	OrderConfirmed = "CONFIRMED"
	OrderPreparing = "PREPARING"
	OrderReady     = "READY"
	OrderCompleted = "COMPLETED"
	OrderCancelled = "CANCELLED"
)

// Order sources.
const (
	SourcePOS = "POS"
	SourceQR  = "QR"
)

// Payment methods.
const (
	PaymentCash = "CASH"
	PaymentCard = "CARD"
	PaymentUPI  = "UPI"
)

// Order line limits.
const (
	MaxOrderLines   = 50
	MaxLineQuantity = 20
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

var nextStatus = map[string]string{
	OrderPending:   OrderConfirmed,
	OrderConfirmed: OrderPreparing,
	OrderPreparing: OrderReady,
	OrderReady:     OrderCompleted,
}

// ValidOrderStatus reports whether s is a known status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentCard || m == PaymentUPI
}

// IsTerminal reports whether no further transitions leave status s.
func IsTerminal(s string) bool {
	return s == OrderCompleted || s == OrderCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Orders advance one step at a time and may be cancelled until completed.
func CanTransition(from, to string) bool {
	if to == OrderCancelled {
		return ValidOrderStatus(from) && !IsTerminal(from)
	}
	return nextStatus[from] == to
}

// Order is a canteen order placed at the counter (POS) or through a QR code.
type Order struct {
	ID            uint64      `json:"id"`
	TheaterID     uint64      `json:"theater_id"`
	OrderNumber   string      `json:"order_number"`
	Source        string      `json:"source"`
	QRCodeID      *uint64     `json:"qr_code_id,omitempty"`
	SeatLabel     string      `json:"seat_label,omitempty"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	SubtotalCents uint32      `json:"subtotal_cents"`
	TaxCents      uint32      `json:"tax_cents"`
	TotalCents    uint32      `json:"total_cents"`
	CreatedBy     *uint64     `json:"created_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem is one line of an order. Name and price are copied from the
// product at placement time.
type OrderItem struct {
	ID             uint64 `json:"id"`
	OrderID        uint64 `json:"order_id"`
	ProductID      uint64 `json:"product_id"`
	ProductName    string `json:"product_name"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	LineTotalCents uint32 `json:"line_total_cents"`
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status string
	Source string
	From   *time.Time
	To     *time.Time
	Search string // matches order number or customer phone prefix
	Page   Page
}

// TaxCents returns basis-point tax on subtotal, rounded half up.
func TaxCents(subtotal uint32, basisPoints int) uint32 {
	if basisPoints <= 0 {
		return 0
	}
	return uint32((uint64(subtotal)*uint64(basisPoints) + 5000) / 10000)
}
