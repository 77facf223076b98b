package catalog

import (
	"context"
	"fmt"
	"time"

	"stylist/internal/entity"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/sirupsen/logrus"
)

// CachedCatalog is a read-through cache in front of another Catalog. Every
// compose request issues one query per category, so results are kept for a
// short TTL.
type CachedCatalog struct {
	next  Catalog
	ttl   time.Duration
	cache *cache.Cache[[]entity.DbCatalogItem]
}

// NewCachedCatalog wraps next. A non-positive ttl disables caching and returns next unchanged.
func NewCachedCatalog(next Catalog, ttl time.Duration) (Catalog, error) {
	if next == nil {
		return nil, fmt.Errorf("catalog: next catalog is nil")
	}
	if ttl <= 0 {
		return next, nil
	}

	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 14,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: create ristretto cache: %w", err)
	}

	return &CachedCatalog{
		next:  next,
		ttl:   ttl,
		cache: cache.New[[]entity.DbCatalogItem](ristretto_store.NewRistretto(ristrettoCache)),
	}, nil
}

func (c *CachedCatalog) QueryItems(ctx context.Context, query entity.CatalogQuery) ([]entity.DbCatalogItem, error) {
	key := cacheKey(query)
	if items, err := c.cache.Get(ctx, key); err == nil {
		// callers may reorder the slice
		out := make([]entity.DbCatalogItem, len(items))
		copy(out, items)
		return out, nil
	}

	items, err := c.next.QueryItems(ctx, query)
	if err != nil {
		return nil, err
	}
	stored := make([]entity.DbCatalogItem, len(items))
	copy(stored, items)
	// ristretto 默认异步写入，同步写入保证下一次查询命中
	if err := c.cache.Set(ctx, key, stored, store.WithExpiration(c.ttl), store.WithCost(1), store.WithSynchronousSet()); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("catalog cache set failed")
	}
	return items, nil
}

// cacheKey flattens the pointer fields so equal queries share an entry.
func cacheKey(query entity.CatalogQuery) string {
	minPrice, maxPrice := "-", "-"
	if query.PriceMin != nil {
		minPrice = fmt.Sprintf("%d", *query.PriceMin)
	}
	if query.PriceMax != nil {
		maxPrice = fmt.Sprintf("%d", *query.PriceMax)
	}
	return fmt.Sprintf("%s|%s|%t|%s|%s|%d", query.Category, query.Gender, query.ActiveOnly, minPrice, maxPrice, query.Limit)
}

var _ Catalog = (*CachedCatalog)(nil)
