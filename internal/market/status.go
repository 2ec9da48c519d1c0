package market

import (
	"context"

	"github.com/ariefcatur/go-barter-market/internal/apperr"
)

type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingReserved ListingStatus = "reserved"
	ListingSold     ListingStatus = "sold"
	ListingDeleted  ListingStatus = "deleted"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

type ListingMode string

const (
	ModeSale   ListingMode = "sale"
	ModeBarter ListingMode = "barter"
	ModeBoth   ListingMode = "both"
)

var validListingNext = map[ListingStatus]map[ListingStatus]bool{
	ListingActive:   {ListingReserved: true, ListingDeleted: true},
	ListingReserved: {ListingSold: true, ListingActive: true, ListingReserved: true, ListingDeleted: true},
	ListingSold:     {},
	ListingDeleted:  {},
}

var validOrderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderCompleted: true, OrderCancelled: true},
	OrderCompleted: {},
	OrderCancelled: {},
}

// CanTransitionListing reports whether the lifecycle may move a listing
// from one status to another. reserved → reserved is a reclaim.
func CanTransitionListing(from, to ListingStatus) bool {
	return validListingNext[from][to]
}

func CanTransitionOrder(from, to OrderStatus) bool {
	return validOrderNext[from][to]
}

func (s ListingStatus) Valid() bool {
	_, ok := validListingNext[s]
	return ok
}

func (s OrderStatus) Valid() bool {
	_, ok := validOrderNext[s]
	return ok
}

// Terminal reports whether the order can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

func (m ListingMode) Valid() bool {
	switch m {
	case ModeSale, ModeBarter, ModeBoth:
		return true
	}
	return false
}

// MoveListing writes u to l after checking the transition against the
// table. A sold listing refuses with Immutable, anything else with
// NotActive.
func MoveListing(ctx context.Context, tx Tx, l *Listing, u ListingUpdate) error {
	if !CanTransitionListing(l.Status, u.Status) {
		code := apperr.CodeNotActive
		if l.Status == ListingSold {
			code = apperr.CodeImmutable
		}
		return apperr.Newf(code, "listing cannot go from %s to %s", l.Status, u.Status).
			WithMetadata("listing_id", l.ID)
	}
	return tx.UpdateListing(ctx, l.ID, u)
}
