// Package listings guards listing edits and deletion against the listing's
// lifecycle phase.
package listings

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-barter-market/internal/apperr"
	"github.com/ariefcatur/go-barter-market/internal/market"
)

// Notifier tells whoever holds the current reservation on a listing that
// the listing changed. Implementations must return promptly and handle
// their own failures.
type Notifier interface {
	NotifyReservationHolder(ctx context.Context, listingID string)
}

type Service struct {
	Store       market.Store
	Notifier    Notifier      // optional
	TTL         time.Duration // reservation TTL; zero means market.DefaultReservationTTL
	MaxAttempts int
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return market.DefaultReservationTTL
	}
	return s.TTL
}

func (s *Service) GetListing(ctx context.Context, id string) (*market.Listing, error) {
	l, err := s.Store.GetListing(ctx, id)
	if err != nil {
		return nil, apperr.Classify(notFound(err, id), "get listing")
	}
	return l, nil
}

// UpdateListing applies patch to l. The caller has already checked that
// sellerID owns l. Editing a listing that is reserved at the moment of the
// write notifies the reservation holder once the write has gone through.
func (s *Service) UpdateListing(ctx context.Context, sellerID string, l *market.Listing, patch market.ListingPatch) error {
	switch l.Status {
	case market.ListingSold:
		return immutable(l.ID, sellerID)
	case market.ListingDeleted:
		return notActive(l.ID)
	}

	status, err := s.Store.PatchListing(ctx, l.ID, patch)
	if errors.Is(err, market.ErrPreconditionFailed) {
		// status moved after the caller's read
		if status == market.ListingDeleted {
			return notActive(l.ID)
		}
		return immutable(l.ID, sellerID)
	}
	if err != nil {
		return apperr.Classify(notFound(err, l.ID), "update listing")
	}

	if status == market.ListingReserved && s.Notifier != nil {
		s.Notifier.NotifyReservationHolder(context.WithoutCancel(ctx), l.ID)
	}
	return nil
}

// DeleteListing moves a listing to the terminal deleted status. A listing
// under an unexpired reservation cannot be deleted; an expired one is
// released along with its stale order.
func (s *Service) DeleteListing(ctx context.Context, sellerID, listingID string) error {
	err := market.RunInTx(ctx, s.Store, s.MaxAttempts, func(ctx context.Context, tx market.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return notFound(err, listingID)
		}
		if l.SellerID != sellerID {
			return apperr.New(apperr.CodeUnauthorized, "only the seller can delete this listing").
				WithMetadata("listing_id", l.ID)
		}

		switch l.Status {
		case market.ListingDeleted:
			return nil
		case market.ListingSold:
			return immutable(l.ID, sellerID)
		case market.ListingReserved:
			if market.ReservationHeld(l, tx.Now(), s.ttl()) {
				return apperr.New(apperr.CodeCurrentlyReserved, "listing is currently reserved").
					WithMetadata("listing_id", l.ID)
			}
			if _, err := market.CancelStaleOrder(ctx, tx, l.ID); err != nil {
				return err
			}
		}
		return market.MoveListing(ctx, tx, l, market.ListingUpdate{Status: market.ListingDeleted})
	})
	return apperr.Classify(err, "delete listing")
}

func immutable(listingID, sellerID string) error {
	return apperr.New(apperr.CodeImmutable, "cannot edit a sold listing").
		WithMetadata("listing_id", listingID).
		WithMetadata("seller_id", sellerID)
}

func notActive(listingID string) error {
	return apperr.New(apperr.CodeNotActive, "cannot edit a deleted listing").
		WithMetadata("listing_id", listingID)
}

func notFound(err error, id string) error {
	if errors.Is(err, market.ErrNoDocument) {
		return apperr.Wrap(apperr.CodeNotFound, "listing not found", err).WithMetadata("listing_id", id)
	}
	return err
}
