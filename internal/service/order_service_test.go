package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/cache"
	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/queue"
	"github.com/iliyamo/theater-canteen/internal/repository"
)

type fakeTheaters map[uint64]model.Theater

func (f fakeTheaters) GetByID(_ context.Context, id uint64) (model.Theater, error) {
	t, ok := f[id]
	if !ok {
		return model.Theater{}, repository.ErrNotFound
	}
	return t, nil
}

type fakeProducts map[uint64]model.Product

func (f fakeProducts) GetMany(_ context.Context, theaterID uint64, ids []uint64) (map[uint64]model.Product, error) {
	out := map[uint64]model.Product{}
	for _, id := range ids {
		if p, ok := f[id]; ok && p.TheaterID == theaterID {
			out[id] = p
		}
	}
	return out, nil
}

type fakeQR map[string]model.QRCode

func (f fakeQR) GetByCode(_ context.Context, code string) (model.QRCode, error) {
	q, ok := f[code]
	if !ok {
		return model.QRCode{}, repository.ErrNotFound
	}
	return q, nil
}

type fakeOrders struct {
	created  []model.Order
	dupTimes int
	orders   map[uint64]model.Order
	stale    []model.Order
	nextID   uint64
}

func (f *fakeOrders) Create(_ context.Context, o *model.Order) error {
	if f.dupTimes > 0 {
		f.dupTimes--
		return repository.ErrDuplicate
	}
	f.nextID++
	o.ID = f.nextID
	f.created = append(f.created, *o)
	if f.orders == nil {
		f.orders = map[uint64]model.Order{}
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrders) Get(_ context.Context, theaterID, id uint64) (model.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.TheaterID != theaterID {
		return model.Order{}, repository.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, theaterID, id uint64, to string) (string, error) {
	o, ok := f.orders[id]
	if !ok || o.TheaterID != theaterID {
		return "", repository.ErrNotFound
	}
	if !model.CanTransition(o.Status, to) {
		return "", model.ErrInvalidTransition
	}
	from := o.Status
	o.Status = to
	f.orders[id] = o
	return from, nil
}

func (f *fakeOrders) ListStale(_ context.Context, cutoff time.Time, _ int) ([]model.Order, error) {
	var out []model.Order
	for _, o := range f.stale {
		if o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeEvents struct {
	events []queue.OrderEvent
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, ev queue.OrderEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func intp(n int) *int { return &n }

type fixture struct {
	svc    *OrderService
	orders *fakeOrders
	events *fakeEvents
	cache  *cache.Cache
}

func newFixture() fixture {
	theaters := fakeTheaters{
		1: {ID: 1, Name: "Grand", IsActive: true},
		2: {ID: 2, Name: "Closed", IsActive: false},
	}
	products := fakeProducts{
		10: {ID: 10, TheaterID: 1, Name: "Popcorn", PriceCents: 15000, IsActive: true},
		11: {ID: 11, TheaterID: 1, Name: "Cola", PriceCents: 6050, Stock: intp(3), IsActive: true},
		12: {ID: 12, TheaterID: 1, Name: "Nachos", PriceCents: 9000, IsActive: false},
		20: {ID: 20, TheaterID: 2, Name: "Other", PriceCents: 100, IsActive: true},
	}
	qrs := fakeQR{
		"seat-b7": {ID: 5, TheaterID: 1, QRType: model.QRTypeScreen, SeatLabel: "B7", IsActive: true},
		"single":  {ID: 6, TheaterID: 1, QRType: model.QRTypeSingle, IsActive: true},
		"off":     {ID: 7, TheaterID: 1, QRType: model.QRTypeSingle, IsActive: false},
	}
	orders := &fakeOrders{}
	events := &fakeEvents{}
	c := cache.New(config.CacheConfig{MaxEntries: 50}, nil, nil)
	svc := NewOrderService(theaters, products, qrs, orders, events, c, 500, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 18, 30, 0, 0, time.UTC) }
	return fixture{svc: svc, orders: orders, events: events, cache: c}
}

func TestPlace_PricesAndPublishes(t *testing.T) {
	f := newFixture()
	staff := uint64(99)
	o, err := f.svc.Place(context.Background(), PlaceOrderInput{
		TheaterID: 1, Source: model.SourcePOS, CreatedBy: &staff, PaymentMethod: model.PaymentCard,
		Items: []LineInput{{ProductID: 10, Quantity: 2}, {ProductID: 11, Quantity: 1}, {ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, uint32(45000), o.Items[0].LineTotalCents)
	assert.Equal(t, uint32(51050), o.SubtotalCents)
	assert.Equal(t, uint32(2553), o.TaxCents)
	assert.Equal(t, uint32(53603), o.TotalCents)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Regexp(t, regexp.MustCompile(`^ORD-261019-[0-9A-F]{6}$`), o.OrderNumber)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, queue.EventOrderPlaced, f.events.events[0].Type)
	assert.Equal(t, "Grand", f.events.events[0].TheaterName)
}

func TestPlace_Invalid(t *testing.T) {
	tooMany := make([]LineInput, model.MaxOrderLines+1)
	for i := range tooMany {
		tooMany[i] = LineInput{ProductID: uint64(i + 1), Quantity: 1}
	}
	cases := []struct {
		name string
		in   PlaceOrderInput
		want error
	}{
		{"no items", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS}, ErrInvalidOrder},
		{"too many lines", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, Items: tooMany}, ErrInvalidOrder},
		{"zero quantity", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, Items: []LineInput{{ProductID: 10}}}, ErrInvalidOrder},
		{"quantity over limit", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, Items: []LineInput{{ProductID: 10, Quantity: 21}}}, ErrInvalidOrder},
		{"merged over limit", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, Items: []LineInput{{ProductID: 10, Quantity: 15}, {ProductID: 10, Quantity: 6}}}, ErrInvalidOrder},
		{"bad payment", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, PaymentMethod: "BTC", Items: []LineInput{{ProductID: 10, Quantity: 1}}}, ErrInvalidOrder},
		{"bad source", PlaceOrderInput{TheaterID: 1, Source: "WEB", Items: []LineInput{{ProductID: 10, Quantity: 1}}}, ErrInvalidOrder},
		{"other theater product", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, Items: []LineInput{{ProductID: 20, Quantity: 1}}}, ErrInvalidOrder},
		{"inactive product", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, Items: []LineInput{{ProductID: 12, Quantity: 1}}}, ErrInvalidOrder},
		{"not enough stock", PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS, Items: []LineInput{{ProductID: 11, Quantity: 4}}}, repository.ErrInsufficientStock},
		{"inactive theater", PlaceOrderInput{TheaterID: 2, Source: model.SourcePOS, Items: []LineInput{{ProductID: 20, Quantity: 1}}}, ErrUnavailable},
		{"unknown theater", PlaceOrderInput{TheaterID: 3, Source: model.SourcePOS, Items: []LineInput{{ProductID: 20, Quantity: 1}}}, repository.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Place(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, f.orders.created)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestPlace_RetriesDuplicateNumberOnce(t *testing.T) {
	f := newFixture()
	f.orders.dupTimes = 1
	_, err := f.svc.Place(context.Background(), PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS,
		Items: []LineInput{{ProductID: 10, Quantity: 1}}})
	require.NoError(t, err)
	assert.Len(t, f.orders.created, 1)

	f = newFixture()
	f.orders.dupTimes = 2
	_, err = f.svc.Place(context.Background(), PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS,
		Items: []LineInput{{ProductID: 10, Quantity: 1}}})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestPlace_PublishFailureIgnored(t *testing.T) {
	f := newFixture()
	f.events.err = errors.New("broker down")
	_, err := f.svc.Place(context.Background(), PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS,
		Items: []LineInput{{ProductID: 10, Quantity: 1}}})
	assert.NoError(t, err)
}

func TestPlaceQR(t *testing.T) {
	f := newFixture()
	o, err := f.svc.PlaceQR(context.Background(), "seat-b7", PlaceOrderInput{
		TheaterID: 2, SeatLabel: "Z1", CustomerPhone: "+919800000001",
		Items: []LineInput{{ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), o.TheaterID)
	assert.Equal(t, model.SourceQR, o.Source)
	assert.Equal(t, "B7", o.SeatLabel)
	require.NotNil(t, o.QRCodeID)
	assert.Equal(t, uint64(5), *o.QRCodeID)
	assert.Nil(t, o.CreatedBy)

	o, err = f.svc.PlaceQR(context.Background(), "single", PlaceOrderInput{
		SeatLabel: "C3", CustomerPhone: "+919800000001", Items: []LineInput{{ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "C3", o.SeatLabel)

	_, err = f.svc.PlaceQR(context.Background(), "off", PlaceOrderInput{CustomerPhone: "+919800000001",
		Items: []LineInput{{ProductID: 10, Quantity: 1}}})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.svc.PlaceQR(context.Background(), "missing", PlaceOrderInput{})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.svc.PlaceQR(context.Background(), "single", PlaceOrderInput{Items: []LineInput{{ProductID: 10, Quantity: 1}}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	o, err := f.svc.Place(context.Background(), PlaceOrderInput{TheaterID: 1, Source: model.SourcePOS,
		Items: []LineInput{{ProductID: 10, Quantity: 1}}})
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(context.Background(), 1, o.ID, model.OrderConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, got.Status)
	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, queue.EventOrderStatusChanged, last.Type)
	assert.Equal(t, model.OrderPending, last.FromStatus)

	_, err = f.svc.UpdateStatus(context.Background(), 1, o.ID, model.OrderCompleted)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = f.svc.UpdateStatus(context.Background(), 1, o.ID, "SHIPPED")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = f.svc.UpdateStatus(context.Background(), 2, o.ID, model.OrderPreparing)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCancelStale(t *testing.T) {
	f := newFixture()
	now := f.svc.now()
	f.orders.orders = map[uint64]model.Order{
		1: {ID: 1, TheaterID: 1, Status: model.OrderPending, CreatedAt: now.Add(-2 * time.Hour)},
		2: {ID: 2, TheaterID: 1, Status: model.OrderPending, CreatedAt: now.Add(-2 * time.Hour)},
		3: {ID: 3, TheaterID: 1, Status: model.OrderPending, CreatedAt: now.Add(-time.Minute)},
	}
	for _, id := range []uint64{1, 2, 3} {
		f.orders.stale = append(f.orders.stale, f.orders.orders[id])
	}
	// completed by staff after the sweep listed it
	done := f.orders.orders[2]
	done.Status = model.OrderCompleted
	f.orders.orders[2] = done

	ctx := context.Background()
	f.cache.Set(ctx, cache.TheaterNamespace(1), "menu", []byte(`{"stock":0}`))
	f.cache.Set(ctx, cache.TheaterNamespace(2), "menu", []byte(`{}`))

	n, err := f.svc.CancelStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, hit := f.cache.Get(ctx, cache.TheaterNamespace(1), "menu")
	assert.False(t, hit, "restored stock must not be served from cache")
	_, hit = f.cache.Get(ctx, cache.TheaterNamespace(2), "menu")
	assert.True(t, hit)
	assert.Equal(t, model.OrderCancelled, f.orders.orders[1].Status)
	assert.Equal(t, model.OrderCompleted, f.orders.orders[2].Status)
	assert.Equal(t, model.OrderPending, f.orders.orders[3].Status)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.OrderCancelled, f.events.events[0].Order.Status)
}
