package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Shared text helpers for the plain-text vendor formats.

var (
	// The captured token must contain a digit so prose like
	// "ORDER CONFIRMATION" is never mistaken for an order number.
	orderNumberPattern = regexp.MustCompile(`(?i)order\s*(?:number|no\.?|#)?\s*[:#]?\s*([A-Z0-9-]*\d[A-Z0-9-]*)`)
	moneyPattern       = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d{1,2})?`)
)

// findOrderNumber scans text for the first thing that looks like an order
// number reference.
func findOrderNumber(text string) string {
	m := orderNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseMoney extracts a decimal amount from strings like "$47.50" or
// "1,234.00". Returns nil when nothing parseable is present.
func parseMoney(raw string) *decimal.Decimal {
	m := moneyPattern.FindString(raw)
	if m == "" {
		return nil
	}
	m = strings.ReplaceAll(m, ",", "")
	d, err := decimal.NewFromString(m)
	if err != nil {
		return nil
	}
	return &d
}

// parseQuantity reads an integer quantity, tolerating surrounding noise.
// Returns 0 when the field is not a number.
func parseQuantity(raw string) int {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || q < 0 {
		return 0
	}
	return q
}

// nonEmptyLines splits text into trimmed lines, dropping blanks.
func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(strings.TrimSuffix(line, "\r"), " \t")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// collapseSpaces reduces internal whitespace runs to single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// confidenceFor scores a parse from its row outcomes: clean rows raise it,
// review-flagged rows drag it down.
func confidenceFor(clean, flagged int) float64 {
	total := clean + flagged
	if total == 0 {
		return 0
	}
	return float64(clean) / float64(total)
}
