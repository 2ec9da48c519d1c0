package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-barter-market/internal/apperr"
	"github.com/ariefcatur/go-barter-market/internal/events"
	"github.com/ariefcatur/go-barter-market/internal/market"
	"github.com/ariefcatur/go-barter-market/internal/memstore"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (r *recorder) Emit(env events.Envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return true
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.envs {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	store *memstore.Store
	clock *clock
	rec   *recorder
	svc   *Service
}

func newFixture() *fixture {
	c := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := memstore.New(memstore.WithClock(c.Now))
	r := &recorder{}
	return &fixture{
		store: s,
		clock: c,
		rec:   r,
		svc: &Service{
			Store:       s,
			TTL:         120 * time.Minute,
			MaxAttempts: 10,
			Events:      r,
			ServiceName: "test",
		},
	}
}

func (f *fixture) listing(status market.ListingStatus, reservedAgo time.Duration) string {
	price := decimal.RequireFromString("150000.00")
	l := market.Listing{
		SellerID: "seller",
		Title:    "Road bike",
		ImageURL: "https://img/bike.jpg",
		Mode:     market.ModeBoth,
		Price:    &price,
		Status:   status,
	}
	if reservedAgo > 0 {
		at := f.clock.Now().Add(-reservedAgo)
		l.ReservedAt = &at
	}
	return f.store.PutListing(l)
}

func (f *fixture) getListing(t *testing.T, id string) *market.Listing {
	l, err := f.store.GetListing(context.Background(), id)
	require.NoError(t, err)
	return l
}

func (f *fixture) getOrder(t *testing.T, id string) *market.Order {
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestCreateOrder_ReservesActiveListing(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)

	res, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	require.NoError(t, err)
	assert.Equal(t, market.OrderPending, res.Status)

	o := f.getOrder(t, res.OrderID)
	assert.Equal(t, "buyer", o.BuyerID)
	assert.Equal(t, "seller", o.SellerID)
	assert.Equal(t, id, o.ProductID)
	assert.Equal(t, "Road bike", o.Title)
	assert.Equal(t, "https://img/bike.jpg", o.ImageURL)
	assert.True(t, decimal.RequireFromString("150000").Equal(*o.Price))
	assert.True(t, f.clock.Now().Equal(o.CreatedAt))

	l := f.getListing(t, id)
	assert.Equal(t, market.ListingReserved, l.Status)
	require.NotNil(t, l.ReservedAt)
	assert.True(t, f.clock.Now().Equal(*l.ReservedAt))

	assert.Equal(t, []string{events.EventOrderCreated}, f.rec.types())
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		status      market.ListingStatus
		reservedAgo time.Duration
		buyer       string
		want        error
	}{
		{"self purchase", market.ListingActive, 0, "seller", apperr.ErrSelfPurchase},
		{"sold", market.ListingSold, 0, "buyer", apperr.ErrAlreadySold},
		{"deleted", market.ListingDeleted, 0, "buyer", apperr.ErrNotActive},
		{"reserved 10 minutes ago", market.ListingReserved, 10 * time.Minute, "buyer", apperr.ErrCurrentlyReserved},
		{"reserved exactly one ttl ago", market.ListingReserved, 120 * time.Minute, "buyer", apperr.ErrCurrentlyReserved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			id := f.listing(tt.status, tt.reservedAgo)
			before, _ := f.store.Document(memstore.Listings, id)

			_, err := f.svc.CreateOrder(context.Background(), tt.buyer, id)
			assert.ErrorIs(t, err, tt.want)

			after, _ := f.store.Document(memstore.Listings, id)
			assert.Equal(t, before, after, "listing must not be written")
			_, err = f.store.OpenOrderForListing(context.Background(), id)
			assert.ErrorIs(t, err, market.ErrNoDocument)
			assert.Empty(t, f.rec.types())
		})
	}
}

func TestCreateOrder_CurrentlyReservedCarriesExpiry(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingReserved, 10*time.Minute)

	_, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, f.clock.Now().Add(110*time.Minute).Format(time.RFC3339), e.Metadata["expires_at"])
}

func TestCreateOrder_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateOrder(context.Background(), "buyer", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateOrder_ReclaimsExpiredReservation(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)
	first, err := f.svc.CreateOrder(context.Background(), "first-buyer", id)
	require.NoError(t, err)

	f.clock.Advance(130 * time.Minute)
	second, err := f.svc.CreateOrder(context.Background(), "second-buyer", id)
	require.NoError(t, err)
	assert.Equal(t, market.OrderPending, second.Status)
	assert.NotEqual(t, first.OrderID, second.OrderID)

	l := f.getListing(t, id)
	assert.Equal(t, market.ListingReserved, l.Status)
	assert.True(t, f.clock.Now().Equal(*l.ReservedAt), "reservedAt moves to the new reservation")

	assert.Equal(t, market.OrderCancelled, f.getOrder(t, first.OrderID).Status)
	open, err := f.store.OpenOrderForListing(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, second.OrderID, open.ID)

	assert.Equal(t, []string{
		events.EventOrderCreated,
		events.EventOrderExpired,
		events.EventOrderCreated,
	}, f.rec.types())

	// the stale order can no longer be confirmed
	err = f.svc.ConfirmOrder(context.Background(), "seller", first.OrderID)
	assert.ErrorIs(t, err, apperr.ErrNotPending)
}

func TestCreateOrder_ReclaimsRawDocumentTimestamps(t *testing.T) {
	tests := []struct {
		name       string
		reservedAt func(now time.Time) any
		wantErr    error
	}{
		{"iso string expired", func(now time.Time) any { return now.Add(-130 * time.Minute).Format(time.RFC3339) }, nil},
		{"epoch millis expired", func(now time.Time) any { return now.Add(-130 * time.Minute).UnixMilli() }, nil},
		{"seconds map fresh", func(now time.Time) any {
			return map[string]any{"_seconds": now.Add(-10 * time.Minute).Unix(), "_nanoseconds": 0}
		}, apperr.ErrCurrentlyReserved},
		{"unsigned epoch fresh", func(now time.Time) any { return uint(now.Add(-10 * time.Minute).UnixMilli()) }, apperr.ErrCurrentlyReserved},
		{"uint64 epoch fresh", func(now time.Time) any { return uint64(now.Add(-10 * time.Minute).UnixMilli()) }, apperr.ErrCurrentlyReserved},
		{"missing timestamp", func(time.Time) any { return nil }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.Put(memstore.Listings, "l-raw", memstore.Document{
				"sellerId":   "seller",
				"title":      "Guitar",
				"status":     "reserved",
				"reservedAt": tt.reservedAt(f.clock.Now()),
			})

			_, err := f.svc.CreateOrder(context.Background(), "buyer", "l-raw")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, f.clock.Now().Equal(*f.getListing(t, "l-raw").ReservedAt))
		})
	}
}

func TestCreateOrder_ConcurrentBuyersExactlyOneWins(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)

	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		reserved int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateOrder(context.Background(), "buyer-"+string(rune('a'+i)), id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.CodeOf(err) == apperr.CodeCurrentlyReserved:
				reserved++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, reserved)
	assert.Equal(t, market.ListingReserved, f.getListing(t, id).Status)
}

func TestCreateOrder_ConflictWhenRetriesExhausted(t *testing.T) {
	f := newFixture()
	f.svc.MaxAttempts = 3
	id := f.listing(market.ListingActive, 0)
	f.store.FailNextCommits(3)

	_, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, market.ListingActive, f.getListing(t, id).Status)
	assert.Empty(t, f.rec.types())
}

func TestCreateOrder_TransientConflictIsRetried(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)
	f.store.FailNextCommits(2)

	res, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	require.NoError(t, err)
	assert.Equal(t, market.OrderPending, f.getOrder(t, res.OrderID).Status)
	assert.Equal(t, []string{events.EventOrderCreated}, f.rec.types())
}

func TestConfirmOrder(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)
	res, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)

	require.NoError(t, f.svc.ConfirmOrder(context.Background(), "seller", res.OrderID))

	assert.Equal(t, market.OrderCompleted, f.getOrder(t, res.OrderID).Status)
	l := f.getListing(t, id)
	assert.Equal(t, market.ListingSold, l.Status)
	require.NotNil(t, l.SoldAt)
	assert.True(t, f.clock.Now().Equal(*l.SoldAt))
	soldAt := *l.SoldAt

	// a retried confirm is a silent no-op
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.ConfirmOrder(context.Background(), "seller", res.OrderID))
	assert.True(t, soldAt.Equal(*f.getListing(t, id).SoldAt))
	assert.Equal(t, []string{events.EventOrderCreated, events.EventOrderConfirmed}, f.rec.types())

	err = f.svc.RejectOrder(context.Background(), "seller", res.OrderID)
	assert.ErrorIs(t, err, apperr.ErrNotPending)
}

func TestRejectOrder(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)
	res, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	require.NoError(t, err)

	require.NoError(t, f.svc.RejectOrder(context.Background(), "seller", res.OrderID))
	require.NoError(t, f.svc.RejectOrder(context.Background(), "seller", res.OrderID))

	assert.Equal(t, market.OrderCancelled, f.getOrder(t, res.OrderID).Status)
	assert.Equal(t, market.ListingActive, f.getListing(t, id).Status)
	assert.Equal(t, []string{events.EventOrderCreated, events.EventOrderRejected}, f.rec.types())

	err = f.svc.ConfirmOrder(context.Background(), "seller", res.OrderID)
	assert.ErrorIs(t, err, apperr.ErrNotPending)

	// released listing can be reserved again straight away
	_, err = f.svc.CreateOrder(context.Background(), "other-buyer", id)
	assert.NoError(t, err)
}

func TestConfirmOrder_ListingNoLongerReserved(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)
	res, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	require.NoError(t, err)

	// the listing is withdrawn outside the order flow
	l := f.getListing(t, id)
	l.Status = market.ListingDeleted
	f.store.PutListing(*l)

	err = f.svc.ConfirmOrder(context.Background(), "seller", res.OrderID)
	assert.ErrorIs(t, err, apperr.ErrNotActive)
	assert.Equal(t, market.OrderPending, f.getOrder(t, res.OrderID).Status)
	assert.Equal(t, market.ListingDeleted, f.getListing(t, id).Status)

	require.NoError(t, f.svc.RejectOrder(context.Background(), "seller", res.OrderID))
	assert.Equal(t, market.OrderCancelled, f.getOrder(t, res.OrderID).Status)
	assert.Equal(t, market.ListingDeleted, f.getListing(t, id).Status)
}

func TestSettle_Guards(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)
	res, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ConfirmOrder(context.Background(), "buyer", res.OrderID), apperr.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.RejectOrder(context.Background(), "stranger", res.OrderID), apperr.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.ConfirmOrder(context.Background(), "seller", "missing"), apperr.ErrNotFound)
	assert.Equal(t, market.OrderPending, f.getOrder(t, res.OrderID).Status)
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	id := f.listing(market.ListingActive, 0)
	res, err := f.svc.CreateOrder(context.Background(), "buyer", id)
	require.NoError(t, err)

	for _, caller := range []string{"buyer", "seller"} {
		o, err := f.svc.GetOrder(context.Background(), caller, res.OrderID)
		require.NoError(t, err)
		assert.Equal(t, res.OrderID, o.ID)
	}
	_, err = f.svc.GetOrder(context.Background(), "stranger", res.OrderID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.svc.GetOrder(context.Background(), "buyer", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
