package service

import (
	"context"
	"fmt"
	"time"

	"intake-service/internal/broker"
	"intake-service/internal/models"
	"intake-service/internal/redisclient"
	"intake-service/internal/util"

	"go.uber.org/zap"
)

const orderLockTTL = 30 * time.Second

// inventoryStore is the slice of the store the lifecycle operations need.
type inventoryStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetItemsByOrderID(ctx context.Context, orderID int64) ([]models.InventoryItem, error)
	GetItemByID(ctx context.Context, id int64) (*models.InventoryItem, error)
	TransitionItems(ctx context.Context, orderID int64, itemIDs []int64, fromStatus, toStatus string) ([]int64, error)
	TransitionItem(ctx context.Context, itemID int64, fromStatuses []string, toStatus string) (string, bool, error)
	DeleteItemIfArchived(ctx context.Context, itemID int64) (bool, error)
	SetOrderArchived(ctx context.Context, orderID int64, archived bool) error
	ArchiveOrderItems(ctx context.Context, orderID int64) (int64, error)
	CountItemsByStatus(ctx context.Context, orderID int64, status string) (int, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	GetEmailByID(ctx context.Context, id int64) (*models.InboundEmail, error)
	CountEmailItemsByStatus(ctx context.Context, emailID int64, status string) (int, error)
	DeleteEmail(ctx context.Context, id int64) error
	DeleteCatalogEntry(ctx context.Context, vendor, brand, model, color string) error
}

// lifecycleCache is the Redis surface for locks and invalidation.
type lifecycleCache interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
	ForgetEmail(ctx context.Context, contentHash string) error
	InvalidateCatalogPrefix(ctx context.Context, key string) error
}

// lifecyclePublisher emits the events lifecycle operations produce.
type lifecyclePublisher interface {
	PublishItemsConfirmed(ctx context.Context, event *models.ItemsConfirmedEvent) error
	PublishItemStatusChanged(ctx context.Context, event *models.ItemStatusChangedEvent) error
}

// ConfirmResult reports which items a confirmation actually promoted.
// Conflicts are items that were requested but no longer pending, usually
// because a concurrent confirmation got there first.
type ConfirmResult struct {
	Confirmed []int64 `json:"confirmed"`
	Conflicts []int64 `json:"conflicts,omitempty"`
}

// OrderDetail bundles an order with its items for the read API.
type OrderDetail struct {
	Order models.Order           `json:"order"`
	Items []models.InventoryItem `json:"items"`
}

// InventoryService drives the item lifecycle (pending, current, sold,
// archived) and the destructive order and email operations.
type InventoryService struct {
	store     inventoryStore
	redis     lifecycleCache
	publisher lifecyclePublisher
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(store inventoryStore, redis lifecycleCache, publisher lifecyclePublisher) *InventoryService {
	return &InventoryService{
		store:     store,
		redis:     redis,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// GetOrder returns an order with all of its items.
func (s *InventoryService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Items: items}, nil
}

// ConfirmOrder promotes the given pending items of an order to current.
// Confirming a subset is fine; items are independent. Items that are not
// pending anymore come back as conflicts rather than failing the whole
// request, so the caller can retry or refresh.
func (s *InventoryService) ConfirmOrder(ctx context.Context, orderID int64, itemIDs []int64) (*ConfirmResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ConfirmOrder")
	defer span.End()

	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}

	if len(itemIDs) == 0 {
		// No explicit selection confirms everything still pending.
		items, err := s.store.GetItemsByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.Status == models.ItemStatusPending {
				itemIDs = append(itemIDs, item.ID)
			}
		}
	}

	confirmed, err := s.store.TransitionItems(ctx, orderID, itemIDs, models.ItemStatusPending, models.ItemStatusCurrent)
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{Confirmed: confirmed}
	moved := make(map[int64]bool, len(confirmed))
	for _, id := range confirmed {
		moved[id] = true
	}
	for _, id := range itemIDs {
		if !moved[id] {
			result.Conflicts = append(result.Conflicts, id)
		}
	}

	util.ItemTransitionsTotal.WithLabelValues("pending_to_current").Add(float64(len(confirmed)))
	if len(result.Conflicts) > 0 {
		util.TransitionConflictsTotal.WithLabelValues("concurrent_confirmation").Add(float64(len(result.Conflicts)))
		s.logger.Warn("Confirmation lost a race on some items",
			zap.Int64("order_id", orderID),
			zap.Int64s("conflicts", result.Conflicts))
	}

	event := &models.ItemsConfirmedEvent{
		BaseEvent:    broker.NewBaseEvent(models.EventTypeItemsConfirmed),
		OrderID:      orderID,
		ConfirmedIDs: result.Confirmed,
		ConflictIDs:  result.Conflicts,
	}
	if err := s.publisher.PublishItemsConfirmed(ctx, event); err != nil {
		s.logger.Warn("Failed to publish items confirmed event", zap.Int64("order_id", orderID), zap.Error(err))
	}

	return result, nil
}

// MarkItemSold moves a current item to sold.
func (s *InventoryService) MarkItemSold(ctx context.Context, itemID int64) (*models.InventoryItem, error) {
	return s.transition(ctx, itemID, []string{models.ItemStatusCurrent}, models.ItemStatusSold)
}

// ArchiveItem archives a pending or current item. Sold items stay sold;
// they are the sales record.
func (s *InventoryService) ArchiveItem(ctx context.Context, itemID int64) (*models.InventoryItem, error) {
	return s.transition(ctx, itemID, []string{models.ItemStatusPending, models.ItemStatusCurrent}, models.ItemStatusArchived)
}

// RestoreItem brings an archived item back into current stock.
func (s *InventoryService) RestoreItem(ctx context.Context, itemID int64) (*models.InventoryItem, error) {
	return s.transition(ctx, itemID, []string{models.ItemStatusArchived}, models.ItemStatusCurrent)
}

func (s *InventoryService) transition(ctx context.Context, itemID int64, from []string, to string) (*models.InventoryItem, error) {
	previous, ok, err := s.store.TransitionItem(ctx, itemID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		util.TransitionConflictsTotal.WithLabelValues("invalid_transition").Inc()
		return nil, transitionError(itemID, previous, to)
	}

	util.ItemTransitionsTotal.WithLabelValues(previous + "_to_" + to).Inc()

	item, err := s.store.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	event := &models.ItemStatusChangedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeItemStatusChanged),
		ItemID:     itemID,
		OrderID:    item.OrderID,
		FromStatus: previous,
		ToStatus:   to,
	}
	if err := s.publisher.PublishItemStatusChanged(ctx, event); err != nil {
		s.logger.Warn("Failed to publish item status event", zap.Int64("item_id", itemID), zap.Error(err))
	}

	return item, nil
}

// DeleteArchivedItem permanently removes an item. Only archived items may
// be deleted; everything else must be archived first.
func (s *InventoryService) DeleteArchivedItem(ctx context.Context, itemID int64) error {
	deleted, err := s.store.DeleteItemIfArchived(ctx, itemID)
	if err != nil {
		return err
	}
	if !deleted {
		item, err := s.store.GetItemByID(ctx, itemID)
		if err != nil {
			return err
		}
		util.TransitionConflictsTotal.WithLabelValues("invalid_transition").Inc()
		return transitionError(itemID, item.Status, "deleted")
	}
	util.ItemTransitionsTotal.WithLabelValues("archived_to_deleted").Inc()
	return nil
}

// ArchiveOrder archives an order along with its pending and current items.
// Sold items keep their status.
func (s *InventoryService) ArchiveOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.ArchiveOrder")
	defer span.End()

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return err
	}

	if err := s.store.SetOrderArchived(ctx, orderID, true); err != nil {
		return err
	}
	archived, err := s.store.ArchiveOrderItems(ctx, orderID)
	if err != nil {
		return err
	}

	util.ItemTransitionsTotal.WithLabelValues("order_archived").Add(float64(archived))
	s.logger.Info("Order archived",
		zap.Int64("order_id", orderID),
		zap.Int64("items_archived", archived))
	return nil
}

// RestoreOrder clears the archived flag; item statuses are left alone and
// are restored individually.
func (s *InventoryService) RestoreOrder(ctx context.Context, orderID int64) error {
	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return err
	}
	return s.store.SetOrderArchived(ctx, orderID, false)
}

// DeleteOrder permanently removes an order and its items. Orders holding
// current stock cannot be deleted.
func (s *InventoryService) DeleteOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.DeleteOrder")
	defer span.End()

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return err
	}

	current, err := s.store.CountItemsByStatus(ctx, orderID, models.ItemStatusCurrent)
	if err != nil {
		return err
	}
	if current > 0 {
		return fmt.Errorf("order %d has %d current items: %w", orderID, current, ErrOrderHasCurrentItems)
	}

	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.Int64("order_id", orderID))
	return nil
}

// DeleteEmail removes a stored email and clears its dedup hash so a
// re-forwarded copy is accepted again. Emails whose items are in current
// stock are protected.
func (s *InventoryService) DeleteEmail(ctx context.Context, emailID int64) error {
	email, err := s.store.GetEmailByID(ctx, emailID)
	if err != nil {
		return err
	}

	current, err := s.store.CountEmailItemsByStatus(ctx, emailID, models.ItemStatusCurrent)
	if err != nil {
		return err
	}
	if current > 0 {
		return fmt.Errorf("email %d has %d current items: %w", emailID, current, ErrEmailHasCurrentItems)
	}

	if err := s.store.DeleteEmail(ctx, emailID); err != nil {
		return err
	}
	if err := s.redis.ForgetEmail(ctx, email.ContentHash); err != nil {
		s.logger.Warn("Failed to clear email dedup hash", zap.Int64("email_id", emailID), zap.Error(err))
	}
	return nil
}

// InvalidateCatalogEntry drops a cached catalog record from both Redis and
// Postgres so the next lookup refetches from the vendor API.
func (s *InventoryService) InvalidateCatalogEntry(ctx context.Context, vendorKey, brand, model, color string) error {
	if err := s.store.DeleteCatalogEntry(ctx, vendorKey, brand, model, color); err != nil {
		return err
	}
	key := redisclient.CatalogKey(vendorKey, brand, model, color, "")
	if err := s.redis.InvalidateCatalogPrefix(ctx, key); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache key", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// lockOrder takes the distributed order lock used to serialize destructive
// order operations across instances.
func (s *InventoryService) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	lockKey := fmt.Sprintf("order:%d", orderID)
	acquired, err := s.redis.AcquireLock(ctx, lockKey, orderLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire order lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderBusy)
	}
	return func() {
		if err := s.redis.ReleaseLock(context.Background(), lockKey); err != nil {
			s.logger.Warn("Failed to release order lock", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}, nil
}
