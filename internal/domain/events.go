package domain

import "time"

// Transaction lifecycle actions published to the event bus.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TransactionEvent is published after a transaction change was accepted by the store.
type TransactionEvent struct {
	ID          string      `json:"id"`
	Action      string      `json:"action"`
	UserID      string      `json:"userId"`
	Transaction Transaction `json:"transaction"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

// RoutingKey is the routing key the event is published under.
func (e TransactionEvent) RoutingKey() string {
	return "transaction." + e.Action
}
