package model

import (
	"context"

	"stylist/internal/entity"

	"github.com/sirupsen/logrus"
)

type itemSeed struct {
	name      string
	category  entity.Category
	gender    entity.Gender
	price     int64
	tags      []string
	occasions []string
}

// 价格单位为分，覆盖 low/mid/premium 三个预算档位
var demoCatalog = []itemSeed{
	{"Linen Camp Shirt", entity.CategoryTop, entity.GenderMale, 4500, []string{"casual", "summer", "relaxed"}, []string{"casual", "vacation"}},
	{"Oxford Button-Down", entity.CategoryTop, entity.GenderMale, 8900, []string{"classic", "smart", "work"}, []string{"work"}},
	{"Merino Crewneck", entity.CategoryTop, entity.GenderUnisex, 12900, []string{"minimal", "smart", "layering"}, []string{"work", "date"}},
	{"Silk Blouse", entity.CategoryTop, entity.GenderFemale, 15900, []string{"elegant", "work", "minimal"}, []string{"work", "date"}},
	{"Graphic Tee", entity.CategoryTop, entity.GenderUnisex, 2900, []string{"street", "casual"}, []string{"casual"}},
	{"Cashmere Turtleneck", entity.CategoryTop, entity.GenderFemale, 32000, []string{"luxury", "minimal", "winter"}, []string{"date", "work"}},

	{"Slim Chinos", entity.CategoryBottom, entity.GenderMale, 7900, []string{"smart", "classic"}, []string{"work", "date"}},
	{"Relaxed Denim", entity.CategoryBottom, entity.GenderUnisex, 6900, []string{"casual", "street"}, []string{"casual"}},
	{"Pleated Midi Skirt", entity.CategoryBottom, entity.GenderFemale, 11900, []string{"elegant", "feminine"}, []string{"date", "party"}},
	{"Wool Trousers", entity.CategoryBottom, entity.GenderUnisex, 24900, []string{"tailored", "minimal", "work"}, []string{"work"}},
	{"Cargo Shorts", entity.CategoryBottom, entity.GenderMale, 3500, []string{"casual", "summer"}, []string{"casual", "vacation"}},

	{"Slip Dress", entity.CategoryDress, entity.GenderFemale, 18900, []string{"elegant", "party", "minimal"}, []string{"party", "date"}},
	{"Wrap Dress", entity.CategoryDress, entity.GenderFemale, 9900, []string{"feminine", "work"}, []string{"work", "date"}},
	{"Sequin Gown", entity.CategoryDress, entity.GenderFemale, 45000, []string{"glam", "party", "luxury"}, []string{"party", "gala"}},
	{"Sundress", entity.CategoryDress, entity.GenderFemale, 4200, []string{"summer", "casual", "floral"}, []string{"casual", "vacation"}},

	{"Denim Jacket", entity.CategoryOuterwear, entity.GenderUnisex, 8900, []string{"casual", "street", "layering"}, []string{"casual"}},
	{"Camel Overcoat", entity.CategoryOuterwear, entity.GenderUnisex, 39000, []string{"classic", "luxury", "winter"}, []string{"work", "date"}},
	{"Unstructured Blazer", entity.CategoryOuterwear, entity.GenderMale, 19900, []string{"smart", "tailored", "work"}, []string{"work", "date"}},

	{"White Leather Sneakers", entity.CategoryShoes, entity.GenderUnisex, 9500, []string{"minimal", "casual", "street"}, []string{"casual"}},
	{"Chelsea Boots", entity.CategoryShoes, entity.GenderUnisex, 21000, []string{"classic", "smart"}, []string{"work", "date"}},
	{"Strappy Heels", entity.CategoryShoes, entity.GenderFemale, 13900, []string{"elegant", "party"}, []string{"party", "date"}},
	{"Canvas Slip-Ons", entity.CategoryShoes, entity.GenderUnisex, 3900, []string{"casual", "summer"}, []string{"casual", "vacation"}},

	{"Leather Belt", entity.CategoryAccessory, entity.GenderUnisex, 4900, []string{"classic", "smart"}, []string{"work"}},
	{"Silk Scarf", entity.CategoryAccessory, entity.GenderFemale, 8500, []string{"elegant", "feminine"}, []string{"date", "work"}},
	{"Bucket Hat", entity.CategoryAccessory, entity.GenderUnisex, 2500, []string{"street", "summer"}, []string{"casual"}},

	{"Leather Tote", entity.CategoryBag, entity.GenderFemale, 22000, []string{"work", "classic", "luxury"}, []string{"work"}},
	{"Mini Crossbody", entity.CategoryBag, entity.GenderFemale, 7900, []string{"party", "minimal"}, []string{"party", "date"}},
	{"Canvas Backpack", entity.CategoryBag, entity.GenderUnisex, 4500, []string{"casual", "street"}, []string{"casual"}},

	{"Gold Hoops", entity.CategoryJewelry, entity.GenderFemale, 6500, []string{"minimal", "elegant"}, []string{"date", "party"}},
	{"Pearl Necklace", entity.CategoryJewelry, entity.GenderFemale, 28000, []string{"classic", "luxury", "elegant"}, []string{"party", "gala"}},
	{"Steel Watch", entity.CategoryJewelry, entity.GenderMale, 16000, []string{"classic", "smart"}, []string{"work", "date"}},
}

// SeedDemoCatalog 在目录为空时写入一组演示商品，便于本地联调。
func SeedDemoCatalog(ctx context.Context, repo Repository) error {
	if repo == nil {
		return nil
	}
	count, err := repo.CountCatalogItems(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	items := make([]entity.DbCatalogItem, 0, len(demoCatalog))
	for _, seed := range demoCatalog {
		items = append(items, entity.DbCatalogItem{
			Name:      seed.name,
			Category:  seed.category,
			Gender:    seed.gender,
			Price:     seed.price,
			Currency:  "USD",
			Tags:      entity.StringArray(seed.tags),
			Occasions: entity.StringArray(seed.occasions),
			IsActive:  true,
			InStock:   true,
		})
	}
	if err := repo.CreateCatalogItems(ctx, items); err != nil {
		return err
	}
	logrus.WithField("items", len(items)).Info("seeded demo catalog")
	return nil
}
