package service

import (
	"context"
	"fmt"

	"intake-service/internal/catalog"
	"intake-service/internal/models"
	"intake-service/internal/parser"
	"intake-service/internal/util"
	"intake-service/internal/vendor"

	"go.uber.org/zap"
)

// orderStore is the slice of the store the assembler writes through.
type orderStore interface {
	UpsertOrder(ctx context.Context, order *models.Order) (bool, error)
	UpsertInventoryItem(ctx context.Context, item *models.InventoryItem) error
}

// Assembler turns enriched line items into a persisted Order plus its
// InventoryItems. Assembly is idempotent: the order upserts on its
// (vendor, order_number) natural key and items on their
// (order, brand, model, color, size) key, so reprocessing the same email
// never duplicates rows.
type Assembler struct {
	store  orderStore
	logger *zap.Logger
}

// NewAssembler creates an assembler over the shared store.
func NewAssembler(store orderStore) *Assembler {
	return &Assembler{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Assemble persists the order and one inventory item per distinct line.
// Fully identical rows within one parse fold into a single item with their
// quantities summed. All fresh items start at pending; items that already
// exist keep whatever lifecycle status the user put them in.
func (a *Assembler) Assemble(ctx context.Context, v vendor.Vendor, emailID int64, header parser.OrderHeader, enriched []catalog.Enriched) (*models.Order, []models.InventoryItem, bool, error) {
	ctx, span := util.StartSpan(ctx, "Assembler.Assemble")
	defer span.End()

	orderNumber := header.OrderNumber
	if orderNumber == "" {
		// Vendors occasionally omit the order number; a synthetic key
		// scoped to the email keeps reprocessing idempotent.
		orderNumber = fmt.Sprintf("email-%d", emailID)
	}

	order := &models.Order{
		Vendor:        v.Key,
		OrderNumber:   orderNumber,
		CustomerName:  header.CustomerName,
		AccountNumber: header.AccountNumber,
		OrderDate:     header.OrderDate,
		RepName:       header.RepName,
		EmailID:       emailID,
	}

	merged, err := a.store.UpsertOrder(ctx, order)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to assemble order: %w", err)
	}

	util.OrdersAssembledTotal.WithLabelValues(v.Key).Inc()
	if merged {
		util.OrdersMergedTotal.Inc()
		a.logger.Info("Merged into existing order",
			zap.String("vendor", v.Key),
			zap.String("order_number", order.OrderNumber),
			zap.Int64("order_id", order.ID))
	}

	items := make([]models.InventoryItem, 0, len(enriched))
	for _, e := range foldDuplicates(enriched) {
		item := buildItem(v.Key, order.ID, emailID, e)

		if err := a.store.UpsertInventoryItem(ctx, &item); err != nil {
			return nil, nil, false, fmt.Errorf("failed to persist line item %s: %w", e.Item.Key(), err)
		}
		util.ItemsCreatedTotal.WithLabelValues(v.Key).Inc()
		items = append(items, item)
	}

	return order, items, merged, nil
}

// foldDuplicates merges fully identical rows (same brand/model/color/size)
// by summing quantities, preserving first-appearance order.
func foldDuplicates(enriched []catalog.Enriched) []catalog.Enriched {
	byKey := make(map[string]int, len(enriched))
	folded := make([]catalog.Enriched, 0, len(enriched))

	for _, e := range enriched {
		key := e.Item.Key()
		if idx, seen := byKey[key]; seen {
			folded[idx].Item.Quantity += e.Item.Quantity
			if folded[idx].Entry == nil {
				folded[idx].Entry = e.Entry
			}
			continue
		}
		byKey[key] = len(folded)
		folded = append(folded, e)
	}
	return folded
}

// buildItem maps a parsed line plus its optional catalog entry onto the
// stored item shape. Vendor-reported fields always survive; catalog data
// fills the gaps and flips the enriched flag.
func buildItem(vendorKey string, orderID, emailID int64, e catalog.Enriched) models.InventoryItem {
	item := models.InventoryItem{
		OrderID:     orderID,
		EmailID:     emailID,
		Vendor:      vendorKey,
		Brand:       e.Item.Brand,
		Model:       e.Item.Model,
		Color:       e.Item.Color,
		Eye:         e.Item.Size.Eye,
		Bridge:      e.Item.Size.Bridge,
		Temple:      e.Item.Size.Temple,
		FullSize:    e.Item.Size.String(),
		Quantity:    e.Item.Quantity,
		NeedsReview: e.Item.NeedsReview,
		Status:      models.ItemStatusPending,
	}
	if e.Item.UnitCost != nil {
		item.WholesalePrice = e.Item.UnitCost
	}

	entry := e.Entry
	if entry == nil {
		return item
	}

	item.Enriched = true
	item.UPC = entry.UPC
	if item.Eye == 0 && entry.Eye != 0 {
		item.Eye = entry.Eye
		item.Bridge = entry.Bridge
		item.Temple = entry.Temple
		item.FullSize = entry.FullSize
	}
	item.A = entry.A
	item.B = entry.B
	item.DBL = entry.DBL
	item.ED = entry.ED
	if entry.WholesalePrice != nil {
		item.WholesalePrice = entry.WholesalePrice
	}
	return item
}
