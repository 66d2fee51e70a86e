package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/outpost/internal/storage"
)

func TestReplaceProductCacheEvictsOldestFirst(t *testing.T) {
	store := openTempStore(t)
	base := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)

	first := batchOfProducts("old", 8, base)
	if err := store.ReplaceProductCache(context.Background(), first, 10); err != nil {
		t.Fatalf("cache first batch: %v", err)
	}

	second := batchOfProducts("new", 5, base.Add(time.Hour))
	if err := store.ReplaceProductCache(context.Background(), second, 10); err != nil {
		t.Fatalf("cache second batch: %v", err)
	}

	products, err := store.ReadProductCache(context.Background())
	if err != nil {
		t.Fatalf("read product cache: %v", err)
	}
	if len(products) != 10 {
		t.Fatalf("cache size = %d, want capacity 10", len(products))
	}

	// The three oldest entries of the first batch were evicted; every entry
	// of the newest batch survives.
	byID := map[string]bool{}
	for _, product := range products {
		byID[product.ID] = true
	}
	for i := 0; i < 5; i++ {
		if !byID[fmt.Sprintf("new-%d", i)] {
			t.Fatalf("expected new-%d retained", i)
		}
	}
	for i := 0; i < 3; i++ {
		if byID[fmt.Sprintf("old-%d", i)] {
			t.Fatalf("expected old-%d evicted", i)
		}
	}
}

func TestReplaceProductCacheBoundsOversizedBatch(t *testing.T) {
	store := openTempStore(t)
	base := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)

	// A single batch larger than capacity keeps only its newest entries,
	// even against an empty cache.
	batch := batchOfProducts("big", 150, base)
	if err := store.ReplaceProductCache(context.Background(), batch, 100); err != nil {
		t.Fatalf("cache oversized batch: %v", err)
	}

	products, err := store.ReadProductCache(context.Background())
	if err != nil {
		t.Fatalf("read product cache: %v", err)
	}
	if len(products) != 100 {
		t.Fatalf("cache size = %d, want capacity 100", len(products))
	}

	byID := map[string]bool{}
	for _, product := range products {
		byID[product.ID] = true
	}
	for i := 0; i < 50; i++ {
		if byID[fmt.Sprintf("big-%d", i)] {
			t.Fatalf("expected big-%d dropped as oldest of the batch", i)
		}
	}
	for i := 50; i < 150; i++ {
		if !byID[fmt.Sprintf("big-%d", i)] {
			t.Fatalf("expected big-%d retained", i)
		}
	}
}

func TestReplaceProductCacheNeverExceedsCapacity(t *testing.T) {
	store := openTempStore(t)
	base := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)

	for round := 0; round < 4; round++ {
		batch := batchOfProducts(fmt.Sprintf("r%d", round), 60, base.Add(time.Duration(round)*time.Hour))
		if err := store.ReplaceProductCache(context.Background(), batch, 100); err != nil {
			t.Fatalf("cache round %d: %v", round, err)
		}

		products, err := store.ReadProductCache(context.Background())
		if err != nil {
			t.Fatalf("read round %d: %v", round, err)
		}
		if len(products) > 100 {
			t.Fatalf("round %d cache size = %d, want <= 100", round, len(products))
		}
	}

	products, err := store.ReadProductCache(context.Background())
	if err != nil {
		t.Fatalf("read product cache: %v", err)
	}
	// Newest-first read order: the final batch leads.
	if products[0].ID[:2] != "r3" {
		t.Fatalf("products[0].ID = %q, want an r3 entry first", products[0].ID)
	}
}

func TestReplaceProductCacheUpsertsByID(t *testing.T) {
	store := openTempStore(t)

	if err := store.ReplaceProductCache(context.Background(), []storage.CachedProduct{
		{ID: "prod-1", Name: "Widget", PriceCents: 500},
	}, 100); err != nil {
		t.Fatalf("cache product: %v", err)
	}
	if err := store.ReplaceProductCache(context.Background(), []storage.CachedProduct{
		{ID: "prod-1", Name: "Widget v2", PriceCents: 650},
	}, 100); err != nil {
		t.Fatalf("refresh product: %v", err)
	}

	products, err := store.ReadProductCache(context.Background())
	if err != nil {
		t.Fatalf("read product cache: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("cache size = %d, want 1", len(products))
	}
	if products[0].Name != "Widget v2" || products[0].PriceCents != 650 {
		t.Fatalf("product = %+v, want refreshed snapshot", products[0])
	}
}

func batchOfProducts(prefix string, n int, cachedAt time.Time) []storage.CachedProduct {
	products := make([]storage.CachedProduct, 0, n)
	for i := 0; i < n; i++ {
		products = append(products, storage.CachedProduct{
			ID:       fmt.Sprintf("%s-%d", prefix, i),
			Name:     fmt.Sprintf("Product %s %d", prefix, i),
			CachedAt: cachedAt.Add(time.Duration(i) * time.Second),
		})
	}
	return products
}
