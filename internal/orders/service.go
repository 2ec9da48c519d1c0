// Package orders is the order lifecycle: buyers create purchase requests
// against a listing, sellers confirm or reject them. Every transition runs
// in one store transaction together with the listing status it drives.
package orders

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ariefcatur/go-barter-market/internal/apperr"
	"github.com/ariefcatur/go-barter-market/internal/events"
	"github.com/ariefcatur/go-barter-market/internal/market"
)

// Emitter publishes lifecycle events. It must not block.
type Emitter interface {
	Emit(env events.Envelope) bool
}

type Service struct {
	Store       market.Store
	TTL         time.Duration // reservation TTL; zero means market.DefaultReservationTTL
	MaxAttempts int           // transaction attempts; zero means market.DefaultTxAttempts
	Events      Emitter       // optional
	ServiceName string
}

type CreateResult struct {
	OrderID string             `json:"order_id"`
	Status  market.OrderStatus `json:"status"`
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return market.DefaultReservationTTL
	}
	return s.TTL
}

// CreateOrder reserves productID for buyerID. An expired reservation on the
// listing is reclaimed: its stale order is cancelled and the listing is
// reserved again for the new buyer.
func (s *Service) CreateOrder(ctx context.Context, buyerID, productID string) (CreateResult, error) {
	var created, expired *market.Order

	err := market.RunInTx(ctx, s.Store, s.MaxAttempts, func(ctx context.Context, tx market.Tx) error {
		created, expired = nil, nil

		l, err := tx.GetListing(ctx, productID)
		if err != nil {
			return notFound(err, "listing", productID)
		}
		if l.SellerID == buyerID {
			return apperr.New(apperr.CodeSelfPurchase, "cannot buy your own listing").
				WithMetadata("listing_id", l.ID)
		}

		now := tx.Now()
		switch l.Status {
		case market.ListingSold:
			return apperr.New(apperr.CodeAlreadySold, "listing already sold").
				WithMetadata("listing_id", l.ID)
		case market.ListingReserved:
			if market.ReservationHeld(l, now, s.ttl()) {
				return apperr.New(apperr.CodeCurrentlyReserved, "listing is currently reserved").
					WithMetadata("listing_id", l.ID).
					WithMetadata("expires_at", market.ReservationExpiresAt(l, s.ttl()).Format(time.RFC3339))
			}
			if expired, err = market.CancelStaleOrder(ctx, tx, l.ID); err != nil {
				return err
			}
		case market.ListingActive:
		default:
			return apperr.Newf(apperr.CodeNotActive, "listing is %s", l.Status).
				WithMetadata("listing_id", l.ID)
		}

		o := l.Snapshot(buyerID, now)
		if o.ID, err = tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		if err := market.MoveListing(ctx, tx, l, market.ListingUpdate{
			Status:     market.ListingReserved,
			ReservedAt: &now,
		}); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return CreateResult{}, apperr.Classify(err, "create order")
	}

	if expired != nil {
		s.emit(events.EventOrderExpired, expired)
	}
	s.emit(events.EventOrderCreated, created)
	return CreateResult{OrderID: created.ID, Status: created.Status}, nil
}

// ConfirmOrder completes a pending order and marks its listing sold.
// Confirming an already completed order succeeds without effect.
func (s *Service) ConfirmOrder(ctx context.Context, sellerID, orderID string) error {
	return s.settle(ctx, sellerID, orderID, market.OrderCompleted)
}

// RejectOrder cancels a pending order and releases its listing.
// Rejecting an already cancelled order succeeds without effect.
func (s *Service) RejectOrder(ctx context.Context, sellerID, orderID string) error {
	return s.settle(ctx, sellerID, orderID, market.OrderCancelled)
}

func (s *Service) settle(ctx context.Context, sellerID, orderID string, target market.OrderStatus) error {
	var settled *market.Order

	err := market.RunInTx(ctx, s.Store, s.MaxAttempts, func(ctx context.Context, tx market.Tx) error {
		settled = nil

		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if o.SellerID != sellerID {
			return apperr.New(apperr.CodeUnauthorized, "only the seller can settle this order").
				WithMetadata("order_id", o.ID)
		}
		if o.Status == target {
			return nil
		}
		if !market.CanTransitionOrder(o.Status, target) {
			return apperr.Newf(apperr.CodeNotPending, "order is %s", o.Status).
				WithMetadata("order_id", o.ID)
		}

		l, err := tx.GetListing(ctx, o.ProductID)
		if err != nil {
			return notFound(err, "listing", o.ProductID)
		}

		if target == market.OrderCompleted && l.Status == market.ListingSold {
			return apperr.New(apperr.CodeAlreadySold, "listing already sold").
				WithMetadata("listing_id", l.ID)
		}

		now := tx.Now()
		if err := tx.UpdateOrderStatus(ctx, o.ID, target); err != nil {
			return err
		}
		switch target {
		case market.OrderCompleted:
			if err := market.MoveListing(ctx, tx, l, market.ListingUpdate{
				Status: market.ListingSold,
				SoldAt: &now,
			}); err != nil {
				return err
			}
		case market.OrderCancelled:
			// reservedAt is left as is; it means nothing once the listing is active
			if l.Status == market.ListingReserved {
				if err := market.MoveListing(ctx, tx, l, market.ListingUpdate{Status: market.ListingActive}); err != nil {
					return err
				}
			}
		}

		o.Status, o.UpdatedAt = target, now
		settled = o
		return nil
	})
	if err != nil {
		return apperr.Classify(err, "settle order")
	}

	if settled != nil {
		eventType := events.EventOrderConfirmed
		if target == market.OrderCancelled {
			eventType = events.EventOrderRejected
		}
		s.emit(eventType, settled)
	}
	return nil
}

// GetOrder returns an order to its buyer or seller.
func (s *Service) GetOrder(ctx context.Context, callerID, orderID string) (*market.Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Classify(notFound(err, "order", orderID), "get order")
	}
	if callerID != o.BuyerID && callerID != o.SellerID {
		return nil, apperr.New(apperr.CodeUnauthorized, "not a party to this order").
			WithMetadata("order_id", o.ID)
	}
	return o, nil
}

func (s *Service) emit(eventType string, o *market.Order) {
	if s.Events == nil || o == nil {
		return
	}
	p := events.OrderPayload{
		OrderID:   o.ID,
		ListingID: o.ProductID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		Status:    string(o.Status),
	}
	if o.Price != nil {
		p.Price = o.Price.String()
	}
	env, err := events.New(eventType, s.ServiceName, o.ID, o.UpdatedAt, p)
	if err != nil {
		log.Printf("orders: build %s event: %v", eventType, err)
		return
	}
	s.Events.Emit(env)
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, market.ErrNoDocument) {
		return apperr.Wrap(apperr.CodeNotFound, kind+" not found", err).WithMetadata(kind+"_id", id)
	}
	return err
}
