// Package queue carries order events over RabbitMQ: a publisher used by the
// order service and a consumer that sends receipts and pickup notices.
package queue

import (
	"time"

	"github.com/iliyamo/theater-canteen/internal/model"
)

// OrdersQueue is the durable queue holding every order event.
const OrdersQueue = "orders.events"

// Event types.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is published when an order is placed or changes status. It
// carries the order with its items so consumers do not query the database.
type OrderEvent struct {
	Type        string      `json:"type"`
	TheaterID   uint64      `json:"theater_id"`
	TheaterName string      `json:"theater_name"`
	FromStatus  string      `json:"from_status,omitempty"`
	Order       model.Order `json:"order"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Placed builds an order.placed event.
func Placed(theaterName string, o model.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:        EventOrderPlaced,
		TheaterID:   o.TheaterID,
		TheaterName: theaterName,
		Order:       o,
		OccurredAt:  at.UTC(),
	}
}

// StatusChanged builds an order.status_changed event; o.Status holds the
// new status.
func StatusChanged(theaterName, from string, o model.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:        EventOrderStatusChanged,
		TheaterID:   o.TheaterID,
		TheaterName: theaterName,
		FromStatus:  from,
		Order:       o,
		OccurredAt:  at.UTC(),
	}
}
