package sql

import (
	"context"
	"fmt"

	"stylist/internal/entity"
)

// QueryCatalogItems reads catalog items matching the filter, oldest first.
func (r *GormRepository) QueryCatalogItems(ctx context.Context, query entity.CatalogQuery) ([]entity.DbCatalogItem, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}

	tx := r.db.WithContext(ctx).Model(&entity.DbCatalogItem{})
	if query.Category != "" {
		tx = tx.Where("category = ?", query.Category)
	}
	if query.Gender != entity.GenderUnspecified {
		tx = tx.Where("gender IN ?", []entity.Gender{query.Gender, entity.GenderUnisex})
	}
	if query.ActiveOnly {
		tx = tx.Where("is_active = ? AND in_stock = ?", true, true)
	}
	if query.PriceMin != nil {
		tx = tx.Where("price >= ?", *query.PriceMin)
	}
	if query.PriceMax != nil {
		tx = tx.Where("price <= ?", *query.PriceMax)
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var items []entity.DbCatalogItem
	if err := tx.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetCatalogItem loads a single catalog item.
func (r *GormRepository) GetCatalogItem(ctx context.Context, id uint) (*entity.DbCatalogItem, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid item id")
	}
	var item entity.DbCatalogItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateCatalogItems inserts items in batches. Used by the demo seed and tests.
func (r *GormRepository) CreateCatalogItems(ctx context.Context, items []entity.DbCatalogItem) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&items, 100).Error
}

// CountCatalogItems returns the number of catalog rows.
func (r *GormRepository) CountCatalogItems(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DbCatalogItem{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
