package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated                = "OrderCreated"
	EventOrderConfirmed              = "OrderConfirmed"
	EventOrderRejected               = "OrderRejected"
	EventOrderExpired                = "OrderExpired"
	EventListingChangedWhileReserved = "ListingChangedWhileReserved"
)

const Version = 1

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "market-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or listing_id
	Payload       json.RawMessage `json:"payload"`
}

// New builds an envelope around payload, stamped with a fresh event id.
func New(eventType, producer, correlationID string, occurredAt time.Time, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    occurredAt.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- Payload tipe per event ----

type OrderPayload struct {
	OrderID   string `json:"order_id"`
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	Status    string `json:"status"`
	Price     string `json:"price,omitempty"` // decimal string; empty for barter
}

type ListingChangedPayload struct {
	ListingID string `json:"listing_id"`
}
