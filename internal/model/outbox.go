package model

import "time"

// OutboxMessage is a domain event written in the same transaction as the
// state change it describes. The relay publishes pending rows to the broker
// and stamps PublishedAt; delivery is at least once.
type OutboxMessage struct {
	ID          uint64     // outbox_events.id
	EventID     string     // outbox_events.event_id (uuid, used as AMQP MessageId)
	RoutingKey  string     // outbox_events.routing_key
	Payload     []byte     // outbox_events.payload (JSON)
	Attempts    int        // outbox_events.attempts
	LastError   *string    // outbox_events.last_error (nullable)
	CreatedAt   time.Time  // outbox_events.created_at
	PublishedAt *time.Time // outbox_events.published_at (nullable)
}
