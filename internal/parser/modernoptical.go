package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ModernOpticalParser handles Modern Optical's HTML confirmation emails:
// a header paragraph with the order number and account fields, followed by
// a single flat table with Brand/Model/Color/Size/Qty/Price columns.
type ModernOpticalParser struct{}

func (p *ModernOpticalParser) Parse(content Content) (*Result, error) {
	if content.HTML == "" {
		return nil, fmt.Errorf("%w: no HTML body", ErrParseFailure)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	result := &Result{}
	text := doc.Text()
	result.Header.OrderNumber = findOrderNumber(text)
	result.Header.CustomerName = textAfterLabel(doc, "Ship To")
	result.Header.AccountNumber = textAfterLabel(doc, "Account")
	result.Header.RepName = textAfterLabel(doc, "Sales Rep")

	table := findTableWithHeader(doc, "brand", "model")
	if table == nil {
		return nil, fmt.Errorf("%w: no line item table", ErrParseFailure)
	}

	cols := headerIndex(table)
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
			Size:     ParseFrameSize(cellAt(cells, colIndex(cols, "size"))),
			Quantity: parseQuantity(cellAt(cells, colIndex(cols, "qty"))),
			UnitCost: parseMoney(cellAt(cells, colIndex(cols, "price"))),
		}
		if item.Brand == "" && item.Model == "" {
			return
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

	if len(result.Items) == 0 {
		result.Partial = true
	}
	result.Confidence = confidenceFor(clean, flagged)
	result.Partial = result.Partial || flagged > 0
	return result, nil
}

// findTableWithHeader locates the first table whose header row mentions all
// of the given column names.
func findTableWithHeader(doc *goquery.Document, names ...string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		header := strings.ToLower(collapseSpaces(table.Find("tr").First().Text()))
		for _, name := range names {
			if !strings.Contains(header, name) {
				return true
			}
		}
		found = table
		return false
	})
	return found
}

// headerIndex maps known column names to their position in the header row.
func headerIndex(table *goquery.Selection) map[string]int {
	cols := map[string]int{}
	table.Find("tr").First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
		name := strings.ToLower(collapseSpaces(cell.Text()))
		switch {
		case strings.Contains(name, "brand") || strings.Contains(name, "collection"):
			cols["brand"] = i
		case strings.Contains(name, "model") || strings.Contains(name, "style"):
			cols["model"] = i
		case strings.Contains(name, "color"):
			cols["color"] = i
		case strings.Contains(name, "size"):
			cols["size"] = i
		case strings.Contains(name, "qty") || strings.Contains(name, "quantity"):
			cols["qty"] = i
		case strings.Contains(name, "price") || strings.Contains(name, "cost"):
			cols["price"] = i
		}
	})
	return cols
}

func cellText(row *goquery.Selection) []string {
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, collapseSpaces(cell.Text()))
	})
	return cells
}

// colIndex returns the position of a named column, -1 when the header
// never declared it.
func colIndex(cols map[string]int, name string) int {
	if i, ok := cols[name]; ok {
		return i
	}
	return -1
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// textAfterLabel finds "Label: value" pairs anywhere in the document text.
func textAfterLabel(doc *goquery.Document, label string) string {
	for _, line := range nonEmptyLines(doc.Text()) {
		line = collapseSpaces(line)
		lower := strings.ToLower(line)
		prefix := strings.ToLower(label) + ":"
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}
