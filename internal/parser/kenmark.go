package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// KenmarkParser handles Kenmark confirmations, which arrive as text
// extracted from a PDF attachment. Extraction leaves ragged whitespace
// columns, so rows are matched structurally instead of positionally:
//
//	ORDER CONFIRMATION                    ORDER NO: K-20451
//	KENSIE   BLISSFUL    TEAL SPARKLE   54/16/140    2    $28.50
type KenmarkParser struct{}

// kenmarkRow anchors on the size column: everything before it is
// brand/model/color, the numbers after it are quantity and price.
var (
	kenmarkRow  = regexp.MustCompile(`^(.*?)\s{2,}(\d{2}[/\-]\d{2}(?:[/\-]\d{3})?)\s+(\d+)(?:\s+\$?([\d.,]+))?\s*$`)
	columnSplit = regexp.MustCompile(`\s{2,}`)
)

func (p *KenmarkParser) Parse(content Content) (*Result, error) {
	if content.Text == "" {
		return nil, fmt.Errorf("%w: no extracted PDF text", ErrParseFailure)
	}

	result := &Result{}
	result.Header.OrderNumber = findOrderNumber(content.Text)
	clean, flagged := 0, 0

	for _, line := range nonEmptyLines(content.Text) {
		upper := strings.ToUpper(line)
		if strings.Contains(upper, "SHIP TO:") {
			result.Header.CustomerName = collapseSpaces(line[strings.Index(upper, "SHIP TO:")+len("SHIP TO:"):])
			continue
		}
		if strings.Contains(upper, "ACCOUNT:") {
			rest := strings.Fields(line[strings.Index(upper, "ACCOUNT:")+len("ACCOUNT:"):])
			if len(rest) > 0 {
				result.Header.AccountNumber = rest[0]
			}
			continue
		}

		m := kenmarkRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		item := RawLineItem{
			Size:     ParseFrameSize(m[2]),
			Quantity: parseQuantity(m[3]),
		}
		if m[4] != "" {
			item.UnitCost = parseMoney(m[4])
		}

		// The descriptive prefix splits on 2+ space runs into
		// brand / model / color columns.
		desc := columnSplit.Split(strings.TrimSpace(m[1]), -1)
		switch len(desc) {
		case 0:
		case 1:
			item.Model = desc[0]
			item.NeedsReview = true
		case 2:
			item.Brand, item.Model = desc[0], desc[1]
		default:
			item.Brand, item.Model = desc[0], desc[1]
			item.Color = strings.Join(desc[2:], " ")
		}

		if item.Model == "" || item.Quantity == 0 {
			item.NeedsReview = true
			if item.Quantity == 0 {
				item.Quantity = 1
			}
		}
		if item.NeedsReview {
			flagged++
		} else {
			clean++
		}
		result.Items = append(result.Items, item)
	}

	if result.Header.OrderNumber == "" && len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: no order number or item rows in extracted text", ErrParseFailure)
	}

	result.Confidence = confidenceFor(clean, flagged)
	result.Partial = flagged > 0 || len(result.Items) == 0
	return result, nil
}
