// Package catalog is the read side of the item catalog used by the composer.
package catalog

import (
	"context"
	"fmt"

	"stylist/internal/entity"
)

// Catalog answers item queries by category, gender, availability and price.
type Catalog interface {
	QueryItems(ctx context.Context, query entity.CatalogQuery) ([]entity.DbCatalogItem, error)
}

// ItemReader is the slice of the repository the catalog needs.
type ItemReader interface {
	QueryCatalogItems(ctx context.Context, query entity.CatalogQuery) ([]entity.DbCatalogItem, error)
}

// RepositoryCatalog reads straight from the database.
type RepositoryCatalog struct {
	reader ItemReader
}

func NewRepositoryCatalog(reader ItemReader) *RepositoryCatalog {
	return &RepositoryCatalog{reader: reader}
}

func (c *RepositoryCatalog) QueryItems(ctx context.Context, query entity.CatalogQuery) ([]entity.DbCatalogItem, error) {
	if c == nil || c.reader == nil {
		return nil, fmt.Errorf("catalog not initialised")
	}
	items, err := c.reader.QueryCatalogItems(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	return items, nil
}

var _ Catalog = (*RepositoryCatalog)(nil)
