package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/model"
)

type fakeMailer struct {
	to  []string
	err error
}

func (f *fakeMailer) SendReceipt(_ context.Context, to, _ string, _ model.Order) error {
	f.to = append(f.to, to)
	return f.err
}

type fakeSMS struct{ to, msg []string }

func (f *fakeSMS) Send(_ context.Context, to, message string) error {
	f.to = append(f.to, to)
	f.msg = append(f.msg, message)
	return nil
}

func newHandler() (*Handler, *fakeMailer, *fakeSMS) {
	m, s := &fakeMailer{}, &fakeSMS{}
	return &Handler{Mailer: m, SMS: s, Log: zap.NewNop()}, m, s
}

func body(t *testing.T, ev OrderEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestHandle_PlacedSendsReceipt(t *testing.T) {
	h, m, s := newHandler()
	o := model.Order{ID: 1, TheaterID: 3, OrderNumber: "ORD-1", CustomerEmail: "a@b.co", Status: model.OrderPending}
	require.NoError(t, h.Handle(context.Background(), body(t, Placed("Grand", o, time.Now()))))
	assert.Equal(t, []string{"a@b.co"}, m.to)
	assert.Empty(t, s.to)
}

func TestHandle_PlacedWithoutEmail(t *testing.T) {
	h, m, _ := newHandler()
	o := model.Order{OrderNumber: "ORD-1"}
	require.NoError(t, h.Handle(context.Background(), body(t, Placed("Grand", o, time.Now()))))
	assert.Empty(t, m.to)
}

func TestHandle_ReceiptFailure(t *testing.T) {
	h, m, _ := newHandler()
	m.err = errors.New("smtp down")
	o := model.Order{OrderNumber: "ORD-1", CustomerEmail: "a@b.co"}
	assert.Error(t, h.Handle(context.Background(), body(t, Placed("Grand", o, time.Now()))))
}

func TestHandle_ReadySendsSMS(t *testing.T) {
	h, _, s := newHandler()
	o := model.Order{OrderNumber: "ORD-9", CustomerPhone: "+919800000001", Status: model.OrderReady}
	require.NoError(t, h.Handle(context.Background(), body(t, StatusChanged("Grand", model.OrderPreparing, o, time.Now()))))
	require.Len(t, s.msg, 1)
	assert.Equal(t, "+919800000001", s.to[0])
	assert.Contains(t, s.msg[0], "ORD-9")
}

func TestHandle_OtherStatusNoSMS(t *testing.T) {
	h, _, s := newHandler()
	o := model.Order{OrderNumber: "ORD-9", CustomerPhone: "+919800000001", Status: model.OrderConfirmed}
	require.NoError(t, h.Handle(context.Background(), body(t, StatusChanged("Grand", model.OrderPending, o, time.Now()))))
	assert.Empty(t, s.msg)
}

func TestHandle_Malformed(t *testing.T) {
	h, _, _ := newHandler()
	assert.ErrorIs(t, h.Handle(context.Background(), []byte("{not json")), ErrMalformed)
	assert.ErrorIs(t, h.Handle(context.Background(), []byte(`{"type":"order.deleted"}`)), ErrMalformed)
}

func TestEventConstructors(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.FixedZone("IST", 19800))
	o := model.Order{TheaterID: 7, Status: model.OrderCancelled}
	ev := StatusChanged("Grand", model.OrderPending, o, at)
	assert.Equal(t, EventOrderStatusChanged, ev.Type)
	assert.Equal(t, uint64(7), ev.TheaterID)
	assert.Equal(t, model.OrderPending, ev.FromStatus)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
