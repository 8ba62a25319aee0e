package parser

import (
	"fmt"
	"strings"
)

// EuropaParser handles Europa's pipe-delimited plain-text rows:
//
//	ORDER|E-55821|SMITH OPTICAL|8841
//	ITEM|SCOTT HARRIS|SH-500|BLACK FADE|52/18/140|2|42.00
type EuropaParser struct{}

func (p *EuropaParser) Parse(content Content) (*Result, error) {
	if content.Text == "" {
		return nil, fmt.Errorf("%w: no plain-text body", ErrParseFailure)
	}

	result := &Result{}
	clean, flagged := 0, 0
	sawRecord := false

	for _, line := range nonEmptyLines(content.Text) {
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		switch strings.ToUpper(fields[0]) {
		case "ORDER":
			sawRecord = true
			result.Header.OrderNumber = fields[1]
			if len(fields) > 2 {
				result.Header.CustomerName = fields[2]
			}
			if len(fields) > 3 {
				result.Header.AccountNumber = fields[3]
			}

		case "REP":
			result.Header.RepName = fields[1]

		case "ITEM":
			sawRecord = true
			item := RawLineItem{Quantity: 1, NeedsReview: true}
			if len(fields) >= 6 {
				item = RawLineItem{
					Brand:    fields[1],
					Model:    fields[2],
					Color:    fields[3],
					Size:     ParseFrameSize(fields[4]),
					Quantity: parseQuantity(fields[5]),
				}
			}
			if len(fields) >= 7 {
				item.UnitCost = parseMoney(fields[6])
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
	}

	if !sawRecord {
		return nil, fmt.Errorf("%w: no ORDER or ITEM records", ErrParseFailure)
	}

	result.Confidence = confidenceFor(clean, flagged)
	result.Partial = flagged > 0 || len(result.Items) == 0
	return result, nil
}
