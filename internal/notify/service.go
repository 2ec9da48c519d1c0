package notify

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-barter-market/internal/events"
	kafkax "github.com/ariefcatur/go-barter-market/internal/kafka"
	"github.com/ariefcatur/go-barter-market/internal/market"
)

// Dedup marks event ids as processed. redisx.Deduper satisfies it.
type Dedup interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// HolderLookup finds the pending order on a listing. market.Store
// satisfies it.
type HolderLookup interface {
	OpenOrderForListing(ctx context.Context, listingID string) (*market.Order, error)
}

// Notice is what gets delivered to a reservation holder.
type Notice struct {
	EventID    string
	ListingID  string
	OrderID    string
	BuyerID    string
	OccurredAt time.Time
}

type Deliverer interface {
	Deliver(ctx context.Context, n Notice) error
}

// LogDeliverer writes notices to the process log.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(_ context.Context, n Notice) error {
	log.Printf("notify: buyer=%s order=%s listing=%s changed at %s",
		n.BuyerID, n.OrderID, n.ListingID, n.OccurredAt.Format(time.RFC3339))
	return nil
}

type Service struct {
	Holders   HolderLookup
	Dedup     Dedup // optional
	Deliverer Deliverer
}

// HandleListingChanged is installed as the consumer handler. Returning nil
// lets the consumer commit the message.
func (s *Service) HandleListingChanged(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// pesan rusak tidak akan pernah sukses, commit saja
		log.Printf("notify: skip offset=%d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != events.EventListingChangedWhileReserved {
		return nil
	}
	p, err := kafkax.UnwrapPayload[events.ListingChangedPayload](env.Payload)
	if err != nil {
		log.Printf("notify: skip event=%s: %v", env.EventID, err)
		return nil
	}

	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
	}

	if err := s.deliver(ctx, env, p.ListingID); err != nil {
		if s.Dedup != nil {
			if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
				log.Printf("notify: forget event=%s: %v", env.EventID, ferr)
			}
		}
		return err
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, env events.Envelope, listingID string) error {
	o, err := s.Holders.OpenOrderForListing(ctx, listingID)
	if errors.Is(err, market.ErrNoDocument) {
		// reservation sudah lepas, tidak ada yang perlu dikabari
		return nil
	}
	if err != nil {
		return err
	}
	return s.Deliverer.Deliver(ctx, Notice{
		EventID:    env.EventID,
		ListingID:  listingID,
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		OccurredAt: env.OccurredAt,
	})
}
