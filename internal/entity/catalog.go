package entity

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryTop       Category = "top"
	CategoryBottom    Category = "bottom"
	CategoryDress     Category = "dress"
	CategoryOuterwear Category = "outerwear"
	CategoryShoes     Category = "shoes"
	CategoryAccessory Category = "accessory"
	CategoryBag       Category = "bag"
	CategoryJewelry   Category = "jewelry"
)

// Categories lists every catalog category in display order.
var Categories = []Category{
	CategoryTop,
	CategoryBottom,
	CategoryDress,
	CategoryOuterwear,
	CategoryShoes,
	CategoryAccessory,
	CategoryBag,
	CategoryJewelry,
}

func ParseCategory(value string) (Category, bool) {
	candidate := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, c := range Categories {
		if c == candidate {
			return c, true
		}
	}
	return "", false
}

// DbCatalogItem is a sellable item. The catalog is owned by the merchandising
// side; the styling core only reads it.
type DbCatalogItem struct {
	ID        uint        `gorm:"primarykey" json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Name      string      `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Category  Category    `gorm:"column:category;type:varchar(32);index;not null" json:"category"`
	Gender    Gender      `gorm:"column:gender;type:varchar(16);index;not null;default:unisex" json:"gender"`
	Price     int64       `gorm:"column:price;not null;index" json:"price"`
	Currency  string      `gorm:"column:currency;type:varchar(8);not null;default:USD" json:"currency"`
	Tags      StringArray `gorm:"column:tags;type:json" json:"tags"`
	Occasions StringArray `gorm:"column:occasions;type:json" json:"occasions"`
	ImageURL  string      `gorm:"column:image_url;type:text" json:"image_url"`
	IsActive  bool        `gorm:"column:is_active;not null;index" json:"is_active"`
	InStock   bool        `gorm:"column:in_stock;not null" json:"in_stock"`
}

func (DbCatalogItem) TableName() string {
	return "catalog_items"
}

// CatalogQuery filters catalog reads. Zero values mean "no filter", except
// ActiveOnly which callers set explicitly.
type CatalogQuery struct {
	Category   Category `json:"category,omitempty" form:"category"`
	Gender     Gender   `json:"gender,omitempty" form:"gender"`
	ActiveOnly bool     `json:"active_only" form:"active_only"`
	PriceMin   *int64   `json:"price_min,omitempty" form:"price_min"`
	PriceMax   *int64   `json:"price_max,omitempty" form:"price_max"`
	Limit      int      `json:"limit,omitempty" form:"limit"`
}

// WithBudget narrows the query to the tier's price band.
func (q CatalogQuery) WithBudget(tier BudgetTier) CatalogQuery {
	band, ok := tier.PriceBand()
	if !ok {
		return q
	}
	minPrice := band.Min
	q.PriceMin = &minPrice
	if band.Max > 0 {
		maxPrice := band.Max
		q.PriceMax = &maxPrice
	} else {
		q.PriceMax = nil
	}
	return q
}

type CatalogListResponse struct {
	Items []DbCatalogItem `json:"items"`
}
