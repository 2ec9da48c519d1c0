// Package notify tells the holder of a listing's reservation that the
// listing changed underneath them. The API side enqueues a notice on Kafka;
// the notifier process consumes it, resolves the current holder and
// delivers.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/ariefcatur/go-barter-market/internal/events"
)

// Emitter publishes an envelope without blocking.
type Emitter interface {
	Emit(env events.Envelope) bool
}

// Publisher implements listings.Notifier on top of the event producer.
type Publisher struct {
	Events      Emitter
	ServiceName string
	Now         func() time.Time // optional
}

func (p *Publisher) NotifyReservationHolder(_ context.Context, listingID string) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	env, err := events.New(events.EventListingChangedWhileReserved, p.ServiceName, listingID, now(),
		events.ListingChangedPayload{ListingID: listingID})
	if err != nil {
		log.Printf("notify: build notice listing=%s: %v", listingID, err)
		return
	}
	if !p.Events.Emit(env) {
		log.Printf("notify: notice dropped listing=%s", listingID)
	}
}
