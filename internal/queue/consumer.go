package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/notify"
)

// ErrMalformed is returned for messages that cannot be decoded.
var ErrMalformed = errors.New("malformed order event")

// Handler reacts to order events. Mailer and SMS may be nil.
type Handler struct {
	Mailer notify.Mailer
	SMS    notify.SMSSender
	Log    *zap.Logger
}

// Handle processes one message body.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var ev OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch ev.Type {
	case EventOrderPlaced:
		h.Log.Info("order placed",
			zap.Uint64("theater_id", ev.TheaterID),
			zap.String("order_number", ev.Order.OrderNumber),
			zap.String("source", ev.Order.Source),
			zap.Uint32("total_cents", ev.Order.TotalCents))
		if ev.Order.CustomerEmail == "" || h.Mailer == nil {
			return nil
		}
		if err := h.Mailer.SendReceipt(ctx, ev.Order.CustomerEmail, ev.TheaterName, ev.Order); err != nil {
			return fmt.Errorf("send receipt: %w", err)
		}
	case EventOrderStatusChanged:
		h.Log.Info("order status changed",
			zap.Uint64("theater_id", ev.TheaterID),
			zap.String("order_number", ev.Order.OrderNumber),
			zap.String("from", ev.FromStatus),
			zap.String("to", ev.Order.Status))
		if ev.Order.Status != model.OrderReady || ev.Order.CustomerPhone == "" || h.SMS == nil {
			return nil
		}
		msg := fmt.Sprintf("%s: your order %s is ready for pickup.", ev.TheaterName, ev.Order.OrderNumber)
		if err := h.SMS.Send(ctx, ev.Order.CustomerPhone, msg); err != nil {
			return fmt.Errorf("send ready sms: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, ev.Type)
	}
	return nil
}

// Consumer reads OrdersQueue and hands every message to a Handler.
type Consumer struct {
	url     string
	handler *Handler
	log     *zap.Logger
}

// NewConsumer returns a consumer for the broker at url.
func NewConsumer(url string, h *Handler, log *zap.Logger) *Consumer {
	return &Consumer{url: url, handler: h, log: log}
}

// Run consumes until ctx is cancelled, redialling the broker with
// exponential backoff whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("order consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("order consumer: loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("order consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(OrdersQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OrdersQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handler.Handle(ctx, d.Body); err != nil {
				c.log.Error("order consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
