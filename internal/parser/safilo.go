package parser

import (
	"fmt"
	"strings"
)

// SafiloParser handles Safilo's plain-text acknowledgements. The body is a
// header block followed by one line per frame:
//
//	ORDER # 7700123
//	ACCOUNT: 44512  REP: J. DOE
//	CARRERA 1010/S BLK 54/19/145 QTY 2 $84.00
//	POLAROID PLD2130 HAVANA 56/17/140 QTY 1 $31.50
type SafiloParser struct{}

func (p *SafiloParser) Parse(content Content) (*Result, error) {
	if content.Text == "" {
		return nil, fmt.Errorf("%w: no plain-text body", ErrParseFailure)
	}

	lines := nonEmptyLines(content.Text)
	result := &Result{}
	clean, flagged := 0, 0

	for _, line := range lines {
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "ORDER"):
			if n := findOrderNumber(line); n != "" {
				result.Header.OrderNumber = n
			}
			continue
		case strings.HasPrefix(upper, "ACCOUNT"):
			p.parseAccountLine(line, &result.Header)
			continue
		case strings.HasPrefix(upper, "SHIP TO"):
			if len(line) > len("SHIP TO:") {
				result.Header.CustomerName = strings.TrimSpace(line[len("SHIP TO:"):])
			}
			continue
		}

		item, ok := p.parseItemLine(line)
		if !ok {
			continue
		}
		if item.NeedsReview {
			flagged++
		} else {
			clean++
		}
		result.Items = append(result.Items, item)
	}

	if result.Header.OrderNumber == "" && len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: no order header or item rows", ErrParseFailure)
	}

	result.Confidence = confidenceFor(clean, flagged)
	result.Partial = flagged > 0 || len(result.Items) == 0
	return result, nil
}

// parseAccountLine splits "ACCOUNT: 44512  REP: J. DOE".
func (p *SafiloParser) parseAccountLine(line string, header *OrderHeader) {
	upper := strings.ToUpper(line)
	if idx := strings.Index(upper, "REP:"); idx != -1 {
		header.RepName = strings.TrimSpace(line[idx+len("REP:"):])
		line = line[:idx]
		upper = upper[:idx]
	}
	if idx := strings.Index(upper, "ACCOUNT:"); idx != -1 {
		header.AccountNumber = strings.TrimSpace(line[idx+len("ACCOUNT:"):])
	}
}

// parseItemLine reads "BRAND MODEL COLOR eye/bridge/temple QTY n [$price]".
// The brand is the leading token, the model the second; color may span
// several tokens up to the size.
func (p *SafiloParser) parseItemLine(line string) (RawLineItem, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return RawLineItem{}, false
	}

	qtyIdx := -1
	for i, f := range fields {
		if strings.EqualFold(f, "QTY") && i+1 < len(fields) {
			qtyIdx = i
			break
		}
	}
	if qtyIdx == -1 {
		return RawLineItem{}, false
	}

	item := RawLineItem{
		Brand:    fields[0],
		Quantity: parseQuantity(fields[qtyIdx+1]),
	}
	if qtyIdx+2 < len(fields) {
		item.UnitCost = parseMoney(strings.Join(fields[qtyIdx+2:], " "))
	}

	// Walk back from QTY: the token before it is the size when it parses,
	// otherwise the row is degraded rather than dropped.
	body := fields[1:qtyIdx]
	if len(body) == 0 {
		item.NeedsReview = true
		return item, true
	}

	size := ParseFrameSize(body[len(body)-1])
	if size.Eye != 0 {
		item.Size = size
		body = body[:len(body)-1]
	}
	if len(body) > 0 {
		item.Model = body[0]
		item.Color = strings.Join(body[1:], " ")
	}

	if item.Model == "" || item.Quantity == 0 {
		item.NeedsReview = true
		if item.Quantity == 0 {
			item.Quantity = 1
		}
	}
	return item, true
}
