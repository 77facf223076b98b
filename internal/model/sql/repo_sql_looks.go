package sql

import (
	"context"
	"fmt"

	"stylist/internal/entity"

	"gorm.io/gorm"
)

// CreateLook inserts a look together with its ordered items.
func (r *GormRepository) CreateLook(ctx context.Context, look *entity.DbLook) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if look == nil {
		return fmt.Errorf("look is nil")
	}
	if len(look.Items) == 0 {
		return fmt.Errorf("look has no items")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(look).Error
	})
}

// GetLook loads a look with its items in position order.
func (r *GormRepository) GetLook(ctx context.Context, id uint) (*entity.DbLook, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid look id")
	}
	var look entity.DbLook
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&look, id).Error
	if err != nil {
		return nil, err
	}
	return &look, nil
}

// ListLooks returns the user's looks, newest first.
func (r *GormRepository) ListLooks(ctx context.Context, query entity.LookQuery) ([]entity.DbLook, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	tx := r.db.WithContext(ctx).Model(&entity.DbLook{})
	if query.UserID != 0 {
		tx = tx.Where("user_id = ?", query.UserID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page, pageSize, offset := pageWindow(query.BaseParams)
	var looks []entity.DbLook
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("id DESC").Offset(offset).Limit(pageSize).Find(&looks).Error
	if err != nil {
		return nil, nil, err
	}
	return looks, r.calculatePagination(total, page, pageSize), nil
}

// UpdateLookGeneration mirrors the render job onto the look. Item fields are never touched.
func (r *GormRepository) UpdateLookGeneration(ctx context.Context, id uint, updates entity.LookGenerationUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid look id")
	}
	if updates.IsEmpty() {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.DbLook{}).Where("id = ?", id).Updates(updates.ToMap())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
