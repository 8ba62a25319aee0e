package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"intake-service/internal/models"
	"intake-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLifecycleStore holds orders and items in maps and applies the same
// conditional-transition rules as the SQL store.
type fakeLifecycleStore struct {
	orders        map[int64]*models.Order
	items         map[int64]*models.InventoryItem
	emails        map[int64]*models.InboundEmail
	deletedOrders []int64
	deletedEmails []int64
}

func newFakeLifecycleStore() *fakeLifecycleStore {
	return &fakeLifecycleStore{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64]*models.InventoryItem),
		emails: make(map[int64]*models.InboundEmail),
	}
}

func (f *fakeLifecycleStore) addItem(id, orderID int64, status string) {
	f.items[id] = &models.InventoryItem{ID: id, OrderID: orderID, Status: status}
}

func (f *fakeLifecycleStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return order, nil
}

func (f *fakeLifecycleStore) GetItemsByOrderID(_ context.Context, orderID int64) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	for _, item := range f.items {
		if item.OrderID == orderID {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (f *fakeLifecycleStore) GetItemByID(_ context.Context, id int64) (*models.InventoryItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("inventory item %d: %w", id, store.ErrNotFound)
	}
	return item, nil
}

func (f *fakeLifecycleStore) TransitionItems(_ context.Context, orderID int64, itemIDs []int64, fromStatus, toStatus string) ([]int64, error) {
	var moved []int64
	for _, id := range itemIDs {
		item, ok := f.items[id]
		if !ok || item.OrderID != orderID || item.Status != fromStatus {
			continue
		}
		item.Status = toStatus
		moved = append(moved, id)
	}
	return moved, nil
}

func (f *fakeLifecycleStore) TransitionItem(_ context.Context, itemID int64, fromStatuses []string, toStatus string) (string, bool, error) {
	item, ok := f.items[itemID]
	if !ok {
		return "", false, fmt.Errorf("inventory item %d: %w", itemID, store.ErrNotFound)
	}
	for _, from := range fromStatuses {
		if item.Status == from {
			item.Status = toStatus
			return from, true, nil
		}
	}
	return item.Status, false, nil
}

func (f *fakeLifecycleStore) DeleteItemIfArchived(_ context.Context, itemID int64) (bool, error) {
	item, ok := f.items[itemID]
	if !ok || item.Status != models.ItemStatusArchived {
		return false, nil
	}
	delete(f.items, itemID)
	return true, nil
}

func (f *fakeLifecycleStore) SetOrderArchived(_ context.Context, orderID int64, archived bool) error {
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	order.Archived = archived
	return nil
}

func (f *fakeLifecycleStore) ArchiveOrderItems(_ context.Context, orderID int64) (int64, error) {
	var n int64
	for _, item := range f.items {
		if item.OrderID != orderID {
			continue
		}
		if item.Status == models.ItemStatusPending || item.Status == models.ItemStatusCurrent {
			item.Status = models.ItemStatusArchived
			n++
		}
	}
	return n, nil
}

func (f *fakeLifecycleStore) CountItemsByStatus(_ context.Context, orderID int64, status string) (int, error) {
	n := 0
	for _, item := range f.items {
		if item.OrderID == orderID && item.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeLifecycleStore) DeleteOrder(_ context.Context, orderID int64) error {
	for id, item := range f.items {
		if item.OrderID == orderID {
			delete(f.items, id)
		}
	}
	delete(f.orders, orderID)
	f.deletedOrders = append(f.deletedOrders, orderID)
	return nil
}

func (f *fakeLifecycleStore) GetEmailByID(_ context.Context, id int64) (*models.InboundEmail, error) {
	email, ok := f.emails[id]
	if !ok {
		return nil, fmt.Errorf("email %d: %w", id, store.ErrNotFound)
	}
	return email, nil
}

func (f *fakeLifecycleStore) CountEmailItemsByStatus(_ context.Context, emailID int64, status string) (int, error) {
	n := 0
	for _, item := range f.items {
		if item.EmailID == emailID && item.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeLifecycleStore) DeleteEmail(_ context.Context, id int64) error {
	delete(f.emails, id)
	f.deletedEmails = append(f.deletedEmails, id)
	return nil
}

func (f *fakeLifecycleStore) DeleteCatalogEntry(_ context.Context, _, _, _, _ string) error {
	return nil
}

// fakeCache implements the dedup and lock surface in memory.
type fakeCache struct {
	locks     map[string]bool
	fresh     bool
	forgotten []string
	cleared   []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{locks: make(map[string]bool), fresh: true}
}

func (f *fakeCache) AcquireLock(_ context.Context, lockKey string, _ time.Duration) (bool, error) {
	if f.locks[lockKey] {
		return false, nil
	}
	f.locks[lockKey] = true
	return true, nil
}

func (f *fakeCache) ReleaseLock(_ context.Context, lockKey string) error {
	delete(f.locks, lockKey)
	return nil
}

func (f *fakeCache) ForgetEmail(_ context.Context, contentHash string) error {
	f.forgotten = append(f.forgotten, contentHash)
	return nil
}

func (f *fakeCache) InvalidateCatalogPrefix(_ context.Context, key string) error {
	f.cleared = append(f.cleared, key)
	return nil
}

func (f *fakeCache) IsNewEmail(_ context.Context, _ string) (bool, error) {
	return f.fresh, nil
}

// fakePublisher records every event instead of writing to Kafka.
type fakePublisher struct {
	emailReceived  []*models.EmailReceivedEvent
	emailParsed    []*models.EmailParsedEvent
	parseFailed    []*models.EmailParseFailedEvent
	orderAssembled []*models.OrderAssembledEvent
	itemsConfirmed []*models.ItemsConfirmedEvent
	statusChanged  []*models.ItemStatusChangedEvent
	failPublish    bool
}

var errPublish = fmt.Errorf("broker unavailable")

func (f *fakePublisher) PublishEmailReceived(_ context.Context, e *models.EmailReceivedEvent) error {
	if f.failPublish {
		return errPublish
	}
	f.emailReceived = append(f.emailReceived, e)
	return nil
}

func (f *fakePublisher) PublishEmailParsed(_ context.Context, e *models.EmailParsedEvent) error {
	f.emailParsed = append(f.emailParsed, e)
	return nil
}

func (f *fakePublisher) PublishEmailParseFailed(_ context.Context, e *models.EmailParseFailedEvent) error {
	f.parseFailed = append(f.parseFailed, e)
	return nil
}

func (f *fakePublisher) PublishOrderAssembled(_ context.Context, e *models.OrderAssembledEvent) error {
	f.orderAssembled = append(f.orderAssembled, e)
	return nil
}

func (f *fakePublisher) PublishItemsConfirmed(_ context.Context, e *models.ItemsConfirmedEvent) error {
	f.itemsConfirmed = append(f.itemsConfirmed, e)
	return nil
}

func (f *fakePublisher) PublishItemStatusChanged(_ context.Context, e *models.ItemStatusChangedEvent) error {
	f.statusChanged = append(f.statusChanged, e)
	return nil
}

func lifecycleFixture() (*fakeLifecycleStore, *fakeCache, *fakePublisher, *InventoryService) {
	st := newFakeLifecycleStore()
	cache := newFakeCache()
	pub := &fakePublisher{}
	return st, cache, pub, NewInventoryService(st, cache, pub)
}

func TestConfirmOrderPartialSubset(t *testing.T) {
	st, _, pub, svc := lifecycleFixture()
	st.orders[1] = &models.Order{ID: 1}
	st.addItem(10, 1, models.ItemStatusPending)
	st.addItem(11, 1, models.ItemStatusPending)
	st.addItem(12, 1, models.ItemStatusCurrent)
	st.addItem(13, 1, models.ItemStatusSold)

	result, err := svc.ConfirmOrder(context.Background(), 1, []int64{10, 12, 13})
	require.NoError(t, err)

	assert.Equal(t, []int64{10}, result.Confirmed)
	assert.ElementsMatch(t, []int64{12, 13}, result.Conflicts)

	// The unselected pending item is untouched; the winner moved.
	assert.Equal(t, models.ItemStatusPending, st.items[11].Status)
	assert.Equal(t, models.ItemStatusCurrent, st.items[10].Status)

	require.Len(t, pub.itemsConfirmed, 1)
	assert.Equal(t, []int64{10}, pub.itemsConfirmed[0].ConfirmedIDs)
}

func TestConfirmOrderRacingConfirmations(t *testing.T) {
	st, _, _, svc := lifecycleFixture()
	st.orders[1] = &models.Order{ID: 1}
	st.addItem(10, 1, models.ItemStatusPending)
	st.addItem(11, 1, models.ItemStatusPending)

	first, err := svc.ConfirmOrder(context.Background(), 1, []int64{10})
	require.NoError(t, err)
	require.Equal(t, []int64{10}, first.Confirmed)

	// Second confirmation overlaps the first: only the still-pending item
	// moves, the claimed one comes back as a conflict.
	second, err := svc.ConfirmOrder(context.Background(), 1, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, second.Confirmed)
	assert.Equal(t, []int64{10}, second.Conflicts)
}

func TestConfirmOrderEmptySelectionConfirmsAllPending(t *testing.T) {
	st, _, _, svc := lifecycleFixture()
	st.orders[1] = &models.Order{ID: 1}
	st.addItem(10, 1, models.ItemStatusPending)
	st.addItem(11, 1, models.ItemStatusPending)
	st.addItem(12, 1, models.ItemStatusSold)

	result, err := svc.ConfirmOrder(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{10, 11}, result.Confirmed)
	assert.Empty(t, result.Conflicts)
}

func TestConfirmOrderUnknownOrder(t *testing.T) {
	_, _, _, svc := lifecycleFixture()

	_, err := svc.ConfirmOrder(context.Background(), 99, []int64{1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkItemSoldRequiresCurrent(t *testing.T) {
	st, _, _, svc := lifecycleFixture()
	st.addItem(10, 1, models.ItemStatusPending)

	_, err := svc.MarkItemSold(context.Background(), 10)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.ItemStatusPending, st.items[10].Status)
}

func TestItemLifecycleRoundTrip(t *testing.T) {
	st, _, pub, svc := lifecycleFixture()
	st.addItem(10, 1, models.ItemStatusCurrent)

	item, err := svc.ArchiveItem(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusArchived, item.Status)

	item, err = svc.RestoreItem(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusCurrent, item.Status)

	item, err = svc.MarkItemSold(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusSold, item.Status)

	// Sold is terminal except for archive paths at the order level.
	_, err = svc.RestoreItem(context.Background(), 10)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Len(t, pub.statusChanged, 3)
}

func TestDeleteItemRequiresArchived(t *testing.T) {
	st, _, _, svc := lifecycleFixture()
	st.addItem(10, 1, models.ItemStatusCurrent)

	err := svc.DeleteArchivedItem(context.Background(), 10)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	st.items[10].Status = models.ItemStatusArchived
	require.NoError(t, svc.DeleteArchivedItem(context.Background(), 10))
	assert.NotContains(t, st.items, int64(10))
}

func TestArchiveOrderSparesSoldItems(t *testing.T) {
	st, _, _, svc := lifecycleFixture()
	st.orders[1] = &models.Order{ID: 1}
	st.addItem(10, 1, models.ItemStatusPending)
	st.addItem(11, 1, models.ItemStatusCurrent)
	st.addItem(12, 1, models.ItemStatusSold)

	require.NoError(t, svc.ArchiveOrder(context.Background(), 1))

	assert.True(t, st.orders[1].Archived)
	assert.Equal(t, models.ItemStatusArchived, st.items[10].Status)
	assert.Equal(t, models.ItemStatusArchived, st.items[11].Status)
	assert.Equal(t, models.ItemStatusSold, st.items[12].Status)
}

func TestArchiveOrderLockedOut(t *testing.T) {
	st, cache, _, svc := lifecycleFixture()
	st.orders[1] = &models.Order{ID: 1}
	cache.locks["order:1"] = true

	err := svc.ArchiveOrder(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOrderBusy)
}

func TestDeleteOrderGuardsCurrentItems(t *testing.T) {
	st, _, _, svc := lifecycleFixture()
	st.orders[1] = &models.Order{ID: 1}
	st.addItem(10, 1, models.ItemStatusCurrent)

	err := svc.DeleteOrder(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOrderHasCurrentItems)
	assert.Empty(t, st.deletedOrders)

	st.items[10].Status = models.ItemStatusArchived
	require.NoError(t, svc.DeleteOrder(context.Background(), 1))
	assert.Equal(t, []int64{1}, st.deletedOrders)
}

func TestDeleteEmailGuardsCurrentItems(t *testing.T) {
	st, cache, _, svc := lifecycleFixture()
	st.emails[5] = &models.InboundEmail{ID: 5, ContentHash: "abc"}
	st.items[10] = &models.InventoryItem{ID: 10, EmailID: 5, Status: models.ItemStatusCurrent}

	err := svc.DeleteEmail(context.Background(), 5)
	assert.ErrorIs(t, err, ErrEmailHasCurrentItems)

	st.items[10].Status = models.ItemStatusArchived
	require.NoError(t, svc.DeleteEmail(context.Background(), 5))
	assert.Equal(t, []int64{5}, st.deletedEmails)
	assert.Equal(t, []string{"abc"}, cache.forgotten)
}
