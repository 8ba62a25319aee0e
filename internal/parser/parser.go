// Package parser turns raw vendor order-confirmation emails into an order
// header plus line items. Each vendor format has its own implementation
// behind the Parser interface; the vendor registry selects one by key, so
// the pipeline never branches on a vendor name.
package parser

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrParseFailure reports a document whose structure is entirely
// unrecognized (empty body, wrong layout). The caller keeps the email
// around for manual handling instead of dropping it.
var ErrParseFailure = errors.New("document structure not recognized")

// Content is the raw material extracted from an inbound email. PDF
// attachments arrive here as already-extracted text.
type Content struct {
	HTML string
	Text string
}

// Empty reports whether there is nothing to parse at all.
func (c Content) Empty() bool {
	return c.HTML == "" && c.Text == ""
}

// OrderHeader is the vendor-reported order metadata.
type OrderHeader struct {
	OrderNumber   string
	CustomerName  string
	AccountNumber string
	OrderDate     *time.Time
	RepName       string
}

// RawLineItem is one vendor-reported frame row, unvalidated and not yet
// enriched. It exists only between parsing and assembly.
type RawLineItem struct {
	Brand       string
	Model       string
	Color       string
	Size        FrameSize
	Quantity    int
	UnitCost    *decimal.Decimal
	NeedsReview bool
}

// Key identifies a line item within an order for merging and enrichment.
func (r RawLineItem) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.Brand, r.Model, r.Color, r.Size.String())
}

// Result is the outcome of parsing one email.
type Result struct {
	Header     OrderHeader
	Items      []RawLineItem
	Confidence float64
	// Partial is set when the document was recognized but some rows were
	// malformed or no rows could be extracted.
	Partial bool
}

// Parser extracts an order from one vendor's email format.
type Parser interface {
	Parse(content Content) (*Result, error)
}

// Registry maps parser keys (from the vendor registry) to implementations.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds the registry with every known format parser.
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{
		"modernoptical": &ModernOpticalParser{},
		"safilo":        &SafiloParser{},
		"luxottica":     &LuxotticaParser{},
		"marchon":       &MarchonParser{},
		"europa":        &EuropaParser{},
		"kenmark":       &KenmarkParser{},
		"clearvision":   &ClearVisionParser{},
	}}
}

// Get returns the parser registered under key.
func (r *Registry) Get(key string) (Parser, error) {
	p, ok := r.parsers[key]
	if !ok {
		return nil, fmt.Errorf("no parser registered for key %q", key)
	}
	return p, nil
}
