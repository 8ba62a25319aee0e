package models

import "time"

// Event types
const (
	EventTypeEmailReceived     = "EMAIL_RECEIVED"
	EventTypeEmailParsed       = "EMAIL_PARSED"
	EventTypeEmailParseFailed  = "EMAIL_PARSE_FAILED"
	EventTypeOrderAssembled    = "ORDER_ASSEMBLED"
	EventTypeItemsConfirmed    = "ITEMS_CONFIRMED"
	EventTypeItemStatusChanged = "ITEM_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// EmailReceivedEvent published when the webhook persists an inbound email.
// The intake worker consumes it and runs the pipeline.
type EmailReceivedEvent struct {
	BaseEvent
	EmailID   int64  `json:"email_id"`
	Sender    string `json:"sender"`
	AccountID string `json:"account_id"`
}

// EmailParsedEvent published after a successful (or partial) parse
type EmailParsedEvent struct {
	BaseEvent
	EmailID   int64  `json:"email_id"`
	Vendor    string `json:"vendor"`
	ItemCount int    `json:"item_count"`
	Partial   bool   `json:"partial"`
}

// EmailParseFailedEvent published when detection or parsing gives up;
// the email stays persisted for manual review.
type EmailParseFailedEvent struct {
	BaseEvent
	EmailID int64  `json:"email_id"`
	Vendor  string `json:"vendor,omitempty"`
	Reason  string `json:"reason"`
}

// OrderAssembledEvent published once an order and its items are persisted
type OrderAssembledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	EmailID     int64  `json:"email_id"`
	Vendor      string `json:"vendor"`
	OrderNumber string `json:"order_number"`
	ItemCount   int    `json:"item_count"`
	Merged      bool   `json:"merged"`
}

// ItemsConfirmedEvent published when pending items are promoted to current
type ItemsConfirmedEvent struct {
	BaseEvent
	OrderID      int64   `json:"order_id"`
	ConfirmedIDs []int64 `json:"confirmed_ids"`
	ConflictIDs  []int64 `json:"conflict_ids,omitempty"`
}

// ItemStatusChangedEvent published on sold/archive/restore/delete transitions
type ItemStatusChangedEvent struct {
	BaseEvent
	ItemID     int64  `json:"item_id"`
	OrderID    int64  `json:"order_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}
