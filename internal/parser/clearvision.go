package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ClearVisionParser handles ClearVision's HTML emails: order metadata in a
// definition list (<dt>/<dd> pairs), line items in a table whose size is
// split into separate Eye/Bridge/Temple columns.
type ClearVisionParser struct{}

func (p *ClearVisionParser) Parse(content Content) (*Result, error) {
	if content.HTML == "" {
		return nil, fmt.Errorf("%w: no HTML body", ErrParseFailure)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	result := &Result{}
	p.parseDefinitionList(doc, &result.Header)
	if result.Header.OrderNumber == "" {
		result.Header.OrderNumber = findOrderNumber(doc.Text())
	}

	table := findTableWithHeader(doc, "model", "eye")
	if table == nil {
		table = findTableWithHeader(doc, "brand", "model")
	}
	if table == nil {
		return nil, fmt.Errorf("%w: no line item table", ErrParseFailure)
	}

	cols := p.headerIndex(table)
	clean, flagged := 0, 0
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
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
			Quantity: parseQuantity(cellAt(cells, colIndex(cols, "qty"))),
			UnitCost: parseMoney(cellAt(cells, colIndex(cols, "price"))),
		}
		if item.Brand == "" && item.Model == "" {
			return
		}

		eye := parseQuantity(cellAt(cells, colIndex(cols, "eye")))
		bridge := parseQuantity(cellAt(cells, colIndex(cols, "bridge")))
		temple := parseQuantity(cellAt(cells, colIndex(cols, "temple")))
		if eye != 0 && bridge != 0 {
			item.Size = MakeFrameSize(eye, bridge, temple)
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

func (p *ClearVisionParser) parseDefinitionList(doc *goquery.Document, header *OrderHeader) {
	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.ToLower(collapseSpaces(dt.Text()))
		value := collapseSpaces(dt.NextFiltered("dd").Text())
		if value == "" {
			return
		}
		switch {
		case strings.Contains(label, "order number") || label == "order":
			header.OrderNumber = strings.TrimPrefix(value, "#")
		case strings.Contains(label, "customer") || strings.Contains(label, "ship to"):
			header.CustomerName = value
		case strings.Contains(label, "account"):
			header.AccountNumber = value
		case strings.Contains(label, "rep"):
			header.RepName = value
		case strings.Contains(label, "date"):
			if t, err := time.Parse("January 2, 2006", value); err == nil {
				header.OrderDate = &t
			}
		}
	})
}

// headerIndex extends the shared column map with the split size columns.
func (p *ClearVisionParser) headerIndex(table *goquery.Selection) map[string]int {
	cols := headerIndex(table)
	table.Find("tr").First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
		switch strings.ToLower(collapseSpaces(cell.Text())) {
		case "eye", "eye size":
			cols["eye"] = i
		case "bridge", "dbl":
			cols["bridge"] = i
		case "temple":
			cols["temple"] = i
		}
	})
	return cols
}
