package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InboundEmail is the immutable record of a vendor email received on the
// webhook. The parser mutates it exactly once to attach parse results.
type InboundEmail struct {
	ID          int64     `db:"id" json:"id"`
	Vendor      string    `db:"vendor" json:"vendor,omitempty"`
	Sender      string    `db:"sender" json:"sender"`
	Subject     string    `db:"subject" json:"subject"`
	HTMLBody    string    `db:"html_body" json:"html_body,omitempty"`
	PlainBody   string    `db:"plain_body" json:"plain_body,omitempty"`
	ContentHash string    `db:"content_hash" json:"content_hash"`
	AccountID   string    `db:"account_id" json:"account_id"`
	ParseStatus string    `db:"parse_status" json:"parse_status"`
	ParseError  string    `db:"parse_error" json:"parse_error,omitempty"`
	ReceivedAt  time.Time `db:"received_at" json:"received_at"`
	ParsedAt    *time.Time `db:"parsed_at" json:"parsed_at,omitempty"`
}

// Order groups inventory items under a vendor order number.
// (vendor, order_number) is the natural key; reprocessing the same order
// updates this row rather than creating a second one.
type Order struct {
	ID            int64      `db:"id" json:"id"`
	Vendor        string     `db:"vendor" json:"vendor"`
	OrderNumber   string     `db:"order_number" json:"order_number"`
	CustomerName  string     `db:"customer_name" json:"customer_name,omitempty"`
	AccountNumber string     `db:"account_number" json:"account_number,omitempty"`
	OrderDate     *time.Time `db:"order_date" json:"order_date,omitempty"`
	RepName       string     `db:"rep_name" json:"rep_name,omitempty"`
	EmailID       int64      `db:"email_id" json:"email_id"`
	Archived      bool       `db:"archived" json:"archived"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// InventoryItem is one frame line within an order, tracked through the
// pending → current → sold lifecycle.
type InventoryItem struct {
	ID             int64            `db:"id" json:"id"`
	OrderID        int64            `db:"order_id" json:"order_id"`
	EmailID        int64            `db:"email_id" json:"email_id"`
	Vendor         string           `db:"vendor" json:"vendor"`
	Brand          string           `db:"brand" json:"brand"`
	Model          string           `db:"model" json:"model"`
	Color          string           `db:"color" json:"color"`
	Eye            int              `db:"eye" json:"eye,omitempty"`
	Bridge         int              `db:"bridge" json:"bridge,omitempty"`
	Temple         int              `db:"temple" json:"temple,omitempty"`
	FullSize       string           `db:"full_size" json:"full_size,omitempty"`
	Quantity       int              `db:"quantity" json:"quantity"`
	UPC            string           `db:"upc" json:"upc,omitempty"`
	WholesalePrice *decimal.Decimal `db:"wholesale_price" json:"wholesale_price,omitempty"`
	A              *decimal.Decimal `db:"a" json:"a,omitempty"`
	B              *decimal.Decimal `db:"b" json:"b,omitempty"`
	DBL            *decimal.Decimal `db:"dbl" json:"dbl,omitempty"`
	ED             *decimal.Decimal `db:"ed" json:"ed,omitempty"`
	Enriched       bool             `db:"enriched" json:"enriched"`
	NeedsReview    bool             `db:"needs_review" json:"needs_review"`
	Status         string           `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// CatalogEntry is an authoritative measurement record fetched from a vendor
// catalog API, persisted so a frame is looked up at most once.
type CatalogEntry struct {
	ID             int64            `db:"id" json:"id"`
	Vendor         string           `db:"vendor" json:"vendor"`
	Brand          string           `db:"brand" json:"brand"`
	Model          string           `db:"model" json:"model"`
	Color          string           `db:"color" json:"color"`
	SizeKey        string           `db:"size_key" json:"size_key,omitempty"`
	Eye            int              `db:"eye" json:"eye,omitempty"`
	Bridge         int              `db:"bridge" json:"bridge,omitempty"`
	Temple         int              `db:"temple" json:"temple,omitempty"`
	FullSize       string           `db:"full_size" json:"full_size,omitempty"`
	A              *decimal.Decimal `db:"a" json:"a,omitempty"`
	B              *decimal.Decimal `db:"b" json:"b,omitempty"`
	DBL            *decimal.Decimal `db:"dbl" json:"dbl,omitempty"`
	ED             *decimal.Decimal `db:"ed" json:"ed,omitempty"`
	UPC            string           `db:"upc" json:"upc,omitempty"`
	WholesalePrice *decimal.Decimal `db:"wholesale_price" json:"wholesale_price,omitempty"`
	Confidence     float64          `db:"confidence" json:"confidence"`
	FetchedAt      time.Time        `db:"fetched_at" json:"fetched_at"`
}

// Inventory item statuses
const (
	ItemStatusPending  = "pending"
	ItemStatusCurrent  = "current"
	ItemStatusSold     = "sold"
	ItemStatusArchived = "archived"
)

// Email parse statuses
const (
	ParseStatusPending       = "pending"
	ParseStatusParsed        = "parsed"
	ParseStatusPartial       = "partial"
	ParseStatusFailed        = "failed"
	ParseStatusUnknownVendor = "unknown_vendor"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
