package events

const (
	TopicOrderCreated   = "market.order.created"
	TopicOrderConfirmed = "market.order.confirmed"
	TopicOrderRejected  = "market.order.rejected"
	TopicOrderExpired   = "market.order.expired"
	TopicListingChanged = "market.listing.changed"
)

// TopicFor maps an event type to the topic it is published on.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderConfirmed:
		return TopicOrderConfirmed
	case EventOrderRejected:
		return TopicOrderRejected
	case EventOrderExpired:
		return TopicOrderExpired
	case EventListingChangedWhileReserved:
		return TopicListingChanged
	}
	return ""
}

// PartitionKey keeps every event of one order (or listing) in order.
func PartitionKey(id string) []byte { return []byte(id) }
