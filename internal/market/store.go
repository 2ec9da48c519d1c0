package market

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoDocument is returned by reads of a missing listing or order.
	ErrNoDocument = errors.New("market: no such document")
	// ErrTxConflict marks a transaction attempt that lost a write race and
	// may be re-run from scratch.
	ErrTxConflict = errors.New("market: transaction conflict")
	// ErrPreconditionFailed is returned when a single-document write finds
	// the document in a state that forbids it.
	ErrPreconditionFailed = errors.New("market: write precondition failed")
)

// TxFunc is a transaction body. It may run more than once, so it performs
// only store reads and writes, never external side effects.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the transactional document store the lifecycle runs against.
type Store interface {
	// WithTransaction runs fn in a single attempt. Writes made through tx
	// are committed together when fn returns nil, and discarded otherwise.
	// A lost race is reported as ErrTxConflict.
	WithTransaction(ctx context.Context, fn TxFunc) error

	GetListing(ctx context.Context, id string) (*Listing, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	// OpenOrderForListing returns the pending order on a listing, or
	// ErrNoDocument when there is none.
	OpenOrderForListing(ctx context.Context, listingID string) (*Order, error)
	// PatchListing applies p to a listing that is neither sold nor deleted
	// and returns the status the listing had at the write. A sold or
	// deleted listing yields ErrPreconditionFailed along with that status.
	PatchListing(ctx context.Context, id string, p ListingPatch) (ListingStatus, error)
}

// Tx is the view of the store inside one transaction attempt. Reads see
// the attempt's own writes.
type Tx interface {
	// Now is the store's server clock, fixed for the attempt.
	Now() time.Time

	GetListing(ctx context.Context, id string) (*Listing, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	OpenOrderForListing(ctx context.Context, listingID string) (*Order, error)

	// CreateOrder stores o and returns its server-generated id.
	CreateOrder(ctx context.Context, o *Order) (string, error)
	UpdateListing(ctx context.Context, id string, u ListingUpdate) error
	UpdateOrderStatus(ctx context.Context, id string, s OrderStatus) error
}
