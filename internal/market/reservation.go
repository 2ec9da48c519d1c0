package market

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-barter-market/internal/timestamp"
)

const DefaultReservationTTL = 120 * time.Minute

// ReservationHeld reports whether l is reserved by a reservation that has
// not yet expired at now. Expiry is only ever discovered here, lazily, by
// the next operation that touches the listing. A reserved listing without
// a usable reservedAt counts as expired.
func ReservationHeld(l *Listing, now time.Time, ttl time.Duration) bool {
	if l.Status != ListingReserved || l.ReservedAt == nil {
		return false
	}
	return !timestamp.Expired(*l.ReservedAt, now, ttl)
}

// ReservationExpiresAt is reservedAt + ttl, or the zero time when l holds
// no reservation.
func ReservationExpiresAt(l *Listing, ttl time.Duration) time.Time {
	if l.Status != ListingReserved || l.ReservedAt == nil {
		return time.Time{}
	}
	return l.ReservedAt.Add(ttl)
}

// CancelStaleOrder cancels the pending order left behind by an expired
// reservation on listingID, if there is one, and returns it.
func CancelStaleOrder(ctx context.Context, tx Tx, listingID string) (*Order, error) {
	stale, err := tx.OpenOrderForListing(ctx, listingID)
	if errors.Is(err, ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.UpdateOrderStatus(ctx, stale.ID, OrderCancelled); err != nil {
		return nil, err
	}
	stale.Status = OrderCancelled
	stale.UpdatedAt = tx.Now()
	return stale, nil
}
