package catalog

import (
	"context"
	"time"

	"intake-service/internal/models"
	"intake-service/internal/parser"
	"intake-service/internal/redisclient"
	"intake-service/internal/util"
	"intake-service/internal/vendor"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// entryCache is the Redis-backed read-through layer.
type entryCache interface {
	GetCatalogEntry(ctx context.Context, key string) (*models.CatalogEntry, error)
	SetCatalogEntry(ctx context.Context, key string, entry *models.CatalogEntry) error
}

// entryStore is the persistent catalog record store.
type entryStore interface {
	GetCatalogEntry(ctx context.Context, vendor, brand, model, color, sizeKey string) (*models.CatalogEntry, error)
	UpsertCatalogEntry(ctx context.Context, entry *models.CatalogEntry) error
}

// lookupFunc performs the external catalog call.
type lookupFunc interface {
	Lookup(ctx context.Context, baseURL, vendor, brand, model, color, size string) (*models.CatalogEntry, error)
}

// Enriched pairs a parsed line item with its catalog entry, nil when the
// lookup missed. Order matches the input items regardless of which lookup
// finished first.
type Enriched struct {
	Item  parser.RawLineItem
	Entry *models.CatalogEntry
}

// Enricher coordinates cache-first, coalesced, bounded-concurrency catalog
// lookups for the line items of one email.
type Enricher struct {
	cache       entryCache
	store       entryStore
	client      lookupFunc
	flight      singleflight.Group
	concurrency int64
	itemTimeout time.Duration
	logger      *zap.Logger
}

// NewEnricher creates an enricher over the shared cache and store.
func NewEnricher(cache entryCache, store entryStore, client lookupFunc, concurrency int, itemTimeout time.Duration) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{
		cache:       cache,
		store:       store,
		client:      client,
		concurrency: int64(concurrency),
		itemTimeout: itemTimeout,
		logger:      util.GetLogger(),
	}
}

// Enrich looks up catalog data for every item in parallel, up to the
// configured concurrency ceiling. Failures and misses degrade the affected
// item only; the result slice always has one element per input item, in
// input order.
func (e *Enricher) Enrich(ctx context.Context, v vendor.Vendor, items []parser.RawLineItem) []Enriched {
	ctx, span := util.StartSpan(ctx, "Enricher.Enrich")
	defer span.End()

	results := make([]Enriched, len(items))
	for i := range items {
		results[i].Item = items[i]
	}
	if !v.EnrichmentRequired || len(items) == 0 {
		return results
	}

	sem := semaphore.NewWeighted(e.concurrency)
	done := make(chan int, len(items))

	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Email deadline hit; remaining items stay unenriched.
			done <- i
			continue
		}
		go func(i int) {
			defer sem.Release(1)
			defer func() { done <- i }()
			results[i].Entry = e.lookupOne(ctx, v, items[i])
		}(i)
	}

	for range items {
		<-done
	}
	return results
}

// lookupOne resolves a single item: Redis, then Postgres, then one
// coalesced external call. Every failure path returns nil so the caller
// keeps the vendor-reported fields.
func (e *Enricher) lookupOne(ctx context.Context, v vendor.Vendor, item parser.RawLineItem) *models.CatalogEntry {
	start := time.Now()
	defer func() {
		util.EnrichmentLatency.Observe(time.Since(start).Seconds())
	}()

	sizeKey := item.Size.String()
	key := redisclient.CatalogKey(v.Key, item.Brand, item.Model, item.Color, sizeKey)

	ctx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	if entry, err := e.cache.GetCatalogEntry(ctx, key); err == nil && entry != nil {
		util.EnrichmentLookupsTotal.WithLabelValues(v.Key, "hit").Inc()
		return entry
	} else if err != nil {
		e.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	if entry, err := e.store.GetCatalogEntry(ctx, v.Key, item.Brand, item.Model, item.Color, sizeKey); err == nil && entry != nil {
		util.EnrichmentLookupsTotal.WithLabelValues(v.Key, "hit").Inc()
		if err := e.cache.SetCatalogEntry(ctx, key, entry); err != nil {
			e.logger.Warn("Catalog cache backfill failed", zap.String("key", key), zap.Error(err))
		}
		return entry
	}

	// Concurrent requests for the same key share one external call.
	result, err, shared := e.flight.Do(key, func() (interface{}, error) {
		return e.fetchAndPersist(ctx, key, v, item, sizeKey)
	})
	if shared {
		util.EnrichmentCoalescedTotal.Inc()
	}
	if err != nil {
		outcome := "error"
		if ctx.Err() == context.DeadlineExceeded {
			outcome = "timeout"
		}
		util.EnrichmentLookupsTotal.WithLabelValues(v.Key, outcome).Inc()
		e.logger.Warn("Catalog lookup failed",
			zap.String("vendor", v.Key),
			zap.String("brand", item.Brand),
			zap.String("model", item.Model),
			zap.Error(err))
		return nil
	}
	if result == nil {
		util.EnrichmentLookupsTotal.WithLabelValues(v.Key, "miss").Inc()
		return nil
	}

	entry := result.(*models.CatalogEntry)
	util.EnrichmentLookupsTotal.WithLabelValues(v.Key, "fetched").Inc()
	return entry
}

// fetchAndPersist performs the external call and writes the entry once to
// both layers of the cache.
func (e *Enricher) fetchAndPersist(ctx context.Context, key string, v vendor.Vendor, item parser.RawLineItem, sizeKey string) (interface{}, error) {
	entry, err := e.client.Lookup(ctx, v.CatalogBaseURL, v.Key, item.Brand, item.Model, item.Color, sizeKey)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	entry.SizeKey = sizeKey
	if err := e.store.UpsertCatalogEntry(ctx, entry); err != nil {
		e.logger.Warn("Failed to persist catalog entry", zap.String("key", key), zap.Error(err))
	}
	if err := e.cache.SetCatalogEntry(ctx, key, entry); err != nil {
		e.logger.Warn("Failed to cache catalog entry", zap.String("key", key), zap.Error(err))
	}
	return entry, nil
}
