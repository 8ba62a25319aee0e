// Package catalog enriches parsed line items with authoritative frame
// measurements from per-vendor catalog APIs. Lookups are cache-first
// (Redis in front of Postgres), coalesced per key, and bounded in
// concurrency; a failed lookup degrades the item instead of dropping it.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"intake-service/internal/models"

	"github.com/shopspring/decimal"
)

// Client performs the external catalog API lookup for one vendor request.
// The catalog is an unreliable, rate-limited dependency: every call carries
// the caller's context and the configured timeout.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a catalog API client.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// productResponse is the catalog API response shape: a list of variants
// for the requested model.
type productResponse struct {
	Products []productVariant `json:"products"`
}

type productVariant struct {
	Model          string  `json:"model"`
	Color          string  `json:"color"`
	Eye            int     `json:"eye"`
	Bridge         int     `json:"bridge"`
	Temple         int     `json:"temple"`
	A              string  `json:"a,omitempty"`
	B              string  `json:"b,omitempty"`
	DBL            string  `json:"dbl,omitempty"`
	ED             string  `json:"ed,omitempty"`
	UPC            string  `json:"upc,omitempty"`
	WholesalePrice string  `json:"wholesale_price,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// Lookup queries the vendor catalog for a frame and picks the variant best
// matching the reported color and size. A response with no usable variant
// is a miss, not an error.
func (c *Client) Lookup(ctx context.Context, baseURL, vendor, brand, model, color, size string) (*models.CatalogEntry, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("vendor %s has no catalog endpoint", vendor)
	}

	q := url.Values{}
	q.Set("brand", brand)
	q.Set("model", model)
	if color != "" {
		q.Set("color", color)
	}
	if size != "" {
		q.Set("size", size)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(baseURL, "/")+"/products?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var payload productResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed catalog response: %w", err)
	}

	variant := pickVariant(payload.Products, color, size)
	if variant == nil {
		return nil, nil
	}

	entry := &models.CatalogEntry{
		Vendor:     vendor,
		Brand:      brand,
		Model:      model,
		Color:      variant.Color,
		Eye:        variant.Eye,
		Bridge:     variant.Bridge,
		Temple:     variant.Temple,
		UPC:        variant.UPC,
		Confidence: variant.Confidence,
	}
	if entry.Confidence == 0 {
		entry.Confidence = 1
	}
	if entry.Eye != 0 && entry.Bridge != 0 {
		entry.FullSize = fmt.Sprintf("%d/%d", entry.Eye, entry.Bridge)
		if entry.Temple != 0 {
			entry.FullSize = fmt.Sprintf("%s/%d", entry.FullSize, entry.Temple)
		}
	}
	entry.A = parseDecimal(variant.A)
	entry.B = parseDecimal(variant.B)
	entry.DBL = parseDecimal(variant.DBL)
	entry.ED = parseDecimal(variant.ED)
	entry.WholesalePrice = parseDecimal(variant.WholesalePrice)
	return entry, nil
}

// pickVariant prefers an exact color match, then a size match within that
// color, then the first variant as a low-confidence fallback.
func pickVariant(variants []productVariant, color, size string) *productVariant {
	if len(variants) == 0 {
		return nil
	}

	var colorMatches []productVariant
	for _, v := range variants {
		if strings.EqualFold(strings.TrimSpace(v.Color), strings.TrimSpace(color)) {
			colorMatches = append(colorMatches, v)
		}
	}
	pool := colorMatches
	if len(pool) == 0 {
		pool = variants
	}

	if size != "" {
		for i, v := range pool {
			variantSize := fmt.Sprintf("%d/%d/%d", v.Eye, v.Bridge, v.Temple)
			if variantSize == size || strings.HasPrefix(size, fmt.Sprintf("%d/%d", v.Eye, v.Bridge)) {
				return &pool[i]
			}
		}
	}
	return &pool[0]
}

func parseDecimal(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}
