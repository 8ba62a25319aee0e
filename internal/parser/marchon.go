package parser

import (
	"fmt"
	"strings"
	"time"
)

// MarchonParser handles Marchon's plain-text format: a "Label: value"
// header block, a separator, then tab-separated item rows
// Brand<TAB>Model<TAB>Color<TAB>Eye<TAB>Bridge<TAB>Temple<TAB>Qty.
type MarchonParser struct{}

func (p *MarchonParser) Parse(content Content) (*Result, error) {
	if content.Text == "" {
		return nil, fmt.Errorf("%w: no plain-text body", ErrParseFailure)
	}

	result := &Result{}
	clean, flagged := 0, 0
	inItems := false

	for _, line := range nonEmptyLines(content.Text) {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "===") {
			inItems = true
			continue
		}

		if !inItems {
			p.parseHeaderLine(line, &result.Header)
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if strings.EqualFold(fields[0], "brand") {
			// Column header row.
			continue
		}

		item := RawLineItem{
			Brand: fields[0],
			Model: fields[1],
			Color: fields[2],
		}
		if len(fields) >= 6 {
			eye := parseQuantity(fields[3])
			bridge := parseQuantity(fields[4])
			temple := parseQuantity(fields[5])
			if eye != 0 && bridge != 0 {
				item.Size = MakeFrameSize(eye, bridge, temple)
			}
		}
		if len(fields) >= 7 {
			item.Quantity = parseQuantity(fields[6])
		}
		if len(fields) >= 8 {
			item.UnitCost = parseMoney(fields[7])
		}

		if item.Model == "" || item.Quantity == 0 {
			item.NeedsReview = true
			if item.Quantity == 0 {
				item.Quantity = 1
			}
			flagged++
		} else {
			clean++
		}
		result.Items = append(result.Items, item)
	}

	if result.Header.OrderNumber == "" && len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: no recognizable header or rows", ErrParseFailure)
	}

	result.Confidence = confidenceFor(clean, flagged)
	result.Partial = flagged > 0 || len(result.Items) == 0
	return result, nil
}

func (p *MarchonParser) parseHeaderLine(line string, header *OrderHeader) {
	label, value, found := strings.Cut(line, ":")
	if !found {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(collapseSpaces(label)) {
	case "order number", "order #", "order":
		header.OrderNumber = strings.TrimPrefix(value, "#")
	case "customer", "ship to":
		header.CustomerName = value
	case "account", "account number":
		header.AccountNumber = value
	case "sales rep", "rep":
		header.RepName = value
	case "order date", "date":
		if t, err := time.Parse("01/02/2006", value); err == nil {
			header.OrderDate = &t
		}
	}
}
