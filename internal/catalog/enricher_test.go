package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"intake-service/internal/models"
	"intake-service/internal/parser"
	"intake-service/internal/vendor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.CatalogEntry
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*models.CatalogEntry{}}
}

func (f *fakeCache) GetCatalogEntry(_ context.Context, key string) (*models.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[key], nil
}

func (f *fakeCache) SetCatalogEntry(_ context.Context, key string, entry *models.CatalogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = entry
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*models.CatalogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]*models.CatalogEntry{}}
}

func (f *fakeStore) storeKey(vendor, brand, model, color, sizeKey string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", vendor, brand, model, color, sizeKey)
}

func (f *fakeStore) GetCatalogEntry(_ context.Context, vendor, brand, model, color, sizeKey string) (*models.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[f.storeKey(vendor, brand, model, color, sizeKey)], nil
}

func (f *fakeStore) UpsertCatalogEntry(_ context.Context, entry *models.CatalogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[f.storeKey(entry.Vendor, entry.Brand, entry.Model, entry.Color, entry.SizeKey)] = entry
	return nil
}

type fakeLookup struct {
	calls int64
	delay time.Duration
	fail  bool
	miss  bool
}

func (f *fakeLookup) Lookup(ctx context.Context, _, vendorKey, brand, model, color, size string) (*models.CatalogEntry, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail {
		return nil, fmt.Errorf("catalog unavailable")
	}
	if f.miss {
		return nil, nil
	}
	return &models.CatalogEntry{
		Vendor: vendorKey,
		Brand:  brand,
		Model:  model,
		Color:  color,
		Eye:    54, Bridge: 19, Temple: 145,
		FullSize:   "54/19/145",
		UPC:        "00112",
		Confidence: 1,
	}, nil
}

var testVendor = vendor.Vendor{
	Key:                "modernoptical",
	Name:               "Modern Optical",
	EnrichmentRequired: true,
	CatalogBaseURL:     "http://catalog.test",
}

func testItem(color string) parser.RawLineItem {
	return parser.RawLineItem{
		Brand:    "MODERN TIMES",
		Model:    "MT100",
		Color:    color,
		Size:     parser.ParseFrameSize("54/19/145"),
		Quantity: 2,
	}
}

func TestEnrichCoalescesIdenticalKeys(t *testing.T) {
	lookup := &fakeLookup{delay: 50 * time.Millisecond}
	e := NewEnricher(newFakeCache(), newFakeStore(), lookup, 8, time.Second)

	items := make([]parser.RawLineItem, 6)
	for i := range items {
		items[i] = testItem("Black")
	}

	results := e.Enrich(context.Background(), testVendor, items)

	require.Len(t, results, 6)
	for _, r := range results {
		require.NotNil(t, r.Entry)
		assert.Equal(t, "00112", r.Entry.UPC)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&lookup.calls))
}

func TestEnrichDistinctKeysRunInParallel(t *testing.T) {
	lookup := &fakeLookup{delay: 40 * time.Millisecond}
	e := NewEnricher(newFakeCache(), newFakeStore(), lookup, 4, time.Second)

	items := []parser.RawLineItem{testItem("Black"), testItem("Blue"), testItem("Tortoise"), testItem("Crystal")}

	start := time.Now()
	results := e.Enrich(context.Background(), testVendor, items)
	elapsed := time.Since(start)

	require.Len(t, results, 4)
	assert.Equal(t, int64(4), atomic.LoadInt64(&lookup.calls))
	// Four 40ms lookups at concurrency 4 should not take 160ms.
	assert.Less(t, elapsed, 120*time.Millisecond)
}

func TestEnrichCacheHitSkipsLookup(t *testing.T) {
	cache := newFakeCache()
	lookup := &fakeLookup{}
	e := NewEnricher(cache, newFakeStore(), lookup, 4, time.Second)

	item := testItem("Black")
	first := e.Enrich(context.Background(), testVendor, []parser.RawLineItem{item})
	require.NotNil(t, first[0].Entry)
	assert.Equal(t, int64(1), atomic.LoadInt64(&lookup.calls))

	second := e.Enrich(context.Background(), testVendor, []parser.RawLineItem{item})
	require.NotNil(t, second[0].Entry)
	assert.Equal(t, int64(1), atomic.LoadInt64(&lookup.calls), "second pass must be served from cache")
}

func TestEnrichStoreBackfillsCache(t *testing.T) {
	cache := newFakeCache()
	store := newFakeStore()
	lookup := &fakeLookup{}
	e := NewEnricher(cache, store, lookup, 4, time.Second)

	item := testItem("Black")
	entry := &models.CatalogEntry{
		Vendor: testVendor.Key, Brand: item.Brand, Model: item.Model,
		Color: item.Color, SizeKey: item.Size.String(), UPC: "99999",
	}
	require.NoError(t, store.UpsertCatalogEntry(context.Background(), entry))

	results := e.Enrich(context.Background(), testVendor, []parser.RawLineItem{item})
	require.NotNil(t, results[0].Entry)
	assert.Equal(t, "99999", results[0].Entry.UPC)
	assert.Zero(t, atomic.LoadInt64(&lookup.calls))
	assert.NotEmpty(t, cache.entries, "persistent hit should land in the cache")
}

func TestEnrichFailureDegradesItemOnly(t *testing.T) {
	lookup := &fakeLookup{fail: true}
	e := NewEnricher(newFakeCache(), newFakeStore(), lookup, 4, time.Second)

	results := e.Enrich(context.Background(), testVendor, []parser.RawLineItem{testItem("Black")})

	require.Len(t, results, 1)
	assert.Nil(t, results[0].Entry)
	assert.Equal(t, "MT100", results[0].Item.Model, "vendor-reported fields survive the miss")
}

func TestEnrichTimeoutIsAMiss(t *testing.T) {
	lookup := &fakeLookup{delay: 500 * time.Millisecond}
	e := NewEnricher(newFakeCache(), newFakeStore(), lookup, 4, 30*time.Millisecond)

	results := e.Enrich(context.Background(), testVendor, []parser.RawLineItem{testItem("Black")})

	require.Len(t, results, 1)
	assert.Nil(t, results[0].Entry)
}

func TestEnrichSkipsVendorsWithoutEnrichment(t *testing.T) {
	lookup := &fakeLookup{}
	e := NewEnricher(newFakeCache(), newFakeStore(), lookup, 4, time.Second)

	v := vendor.Vendor{Key: "europa", EnrichmentRequired: false}
	results := e.Enrich(context.Background(), v, []parser.RawLineItem{testItem("Black")})

	require.Len(t, results, 1)
	assert.Nil(t, results[0].Entry)
	assert.Zero(t, atomic.LoadInt64(&lookup.calls))
}

func TestEnrichPreservesInputOrder(t *testing.T) {
	lookup := &fakeLookup{delay: 10 * time.Millisecond}
	e := NewEnricher(newFakeCache(), newFakeStore(), lookup, 8, time.Second)

	colors := []string{"Black", "Blue", "Tortoise", "Crystal", "Rose"}
	items := make([]parser.RawLineItem, len(colors))
	for i, c := range colors {
		items[i] = testItem(c)
	}

	results := e.Enrich(context.Background(), testVendor, items)

	require.Len(t, results, len(colors))
	for i, c := range colors {
		assert.Equal(t, c, results[i].Item.Color)
		require.NotNil(t, results[i].Entry)
		assert.Equal(t, c, results[i].Entry.Color)
	}
}
