package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LuxotticaParser handles Luxottica's HTML emails: the order metadata sits
// in a small two-column table, the line items in a nested inner table, and
// sizes are written "54□19 145".
type LuxotticaParser struct{}

func (p *LuxotticaParser) Parse(content Content) (*Result, error) {
	if content.HTML == "" {
		return nil, fmt.Errorf("%w: no HTML body", ErrParseFailure)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	result := &Result{}
	p.parseHeaderTable(doc, &result.Header)
	if result.Header.OrderNumber == "" {
		result.Header.OrderNumber = findOrderNumber(doc.Text())
	}

	// Line items live in the innermost table mentioning a model column.
	var itemTable *goquery.Selection
	doc.Find("table table").Each(func(_ int, table *goquery.Selection) {
		header := strings.ToLower(table.Find("tr").First().Text())
		if strings.Contains(header, "model") {
			itemTable = table
		}
	})
	if itemTable == nil {
		itemTable = findTableWithHeader(doc, "model", "qty")
	}
	if itemTable == nil {
		return nil, fmt.Errorf("%w: no line item table", ErrParseFailure)
	}

	cols := headerIndex(itemTable)
	clean, flagged := 0, 0
	itemTable.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := cellText(row)
		if len(cells) == 0 {
			return
		}

		item := RawLineItem{
			Brand:    cellAt(cells, colIndex(cols, "brand")),
			Model:    cellAt(cells, colIndex(cols, "model")),
			Color:    cellAt(cells, colIndex(cols, "color")),
			Size:     ParseFrameSize(cellAt(cells, colIndex(cols, "size"))),
			Quantity: parseQuantity(cellAt(cells, colIndex(cols, "qty"))),
			UnitCost: parseMoney(cellAt(cells, colIndex(cols, "price"))),
		}
		if item.Brand == "" && item.Model == "" {
			return
		}
		// Model cells sometimes carry the size suffix ("RB5154 2000 52□21").
		if item.Size.IsZero() {
			if size := trailingSize(item.Model); !size.IsZero() {
				item.Size = size
				item.Model = strings.TrimSpace(strings.TrimSuffix(item.Model, size.Raw))
			}
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
	})

	result.Confidence = confidenceFor(clean, flagged)
	result.Partial = flagged > 0 || len(result.Items) == 0
	return result, nil
}

// parseHeaderTable reads the two-column metadata table rows
// ("Order Number" | "123456").
func (p *LuxotticaParser) parseHeaderTable(doc *goquery.Document, header *OrderHeader) {
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := cellText(row)
		if len(cells) != 2 {
			return
		}
		label := strings.ToLower(cells[0])
		value := strings.TrimSpace(cells[1])
		switch {
		case strings.Contains(label, "order"):
			if header.OrderNumber == "" {
				header.OrderNumber = strings.TrimPrefix(value, "#")
			}
		case strings.Contains(label, "customer") || strings.Contains(label, "ship to"):
			header.CustomerName = value
		case strings.Contains(label, "account"):
			header.AccountNumber = value
		case strings.Contains(label, "rep"):
			header.RepName = value
		}
	})
}

// trailingSize extracts a size written at the end of a model cell.
func trailingSize(model string) FrameSize {
	fields := strings.Fields(model)
	if len(fields) < 2 {
		return FrameSize{}
	}
	tail := strings.Join(fields[len(fields)-2:], " ")
	if size := ParseFrameSize(tail); size.Eye != 0 {
		size.Raw = tail
		return size
	}
	tail = fields[len(fields)-1]
	if size := ParseFrameSize(tail); size.Eye != 0 {
		size.Raw = tail
		return size
	}
	return FrameSize{}
}
