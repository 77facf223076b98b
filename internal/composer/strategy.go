package composer

import "stylist/internal/entity"

// StrategyFallback names outfits produced by the 2-item fallback.
const StrategyFallback = "fallback"

// Strategy is one way of forming an outfit. Every Base category must be
// filled; Optional categories are filled opportunistically up to MaxItems.
type Strategy struct {
	Name     string
	Base     []entity.Category
	Optional []entity.Category
	MinItems int
	MaxItems int
}

// DefaultStrategies returns the built-in strategies in priority order. A dress
// is a complete outfit on its own, so it is tried first.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:     "dress_outfit",
			Base:     []entity.Category{entity.CategoryDress},
			Optional: []entity.Category{entity.CategoryShoes, entity.CategoryAccessory, entity.CategoryBag, entity.CategoryJewelry},
			MinItems: 2,
			MaxItems: 4,
		},
		{
			Name:     "separates",
			Base:     []entity.Category{entity.CategoryTop, entity.CategoryBottom},
			Optional: []entity.Category{entity.CategoryShoes, entity.CategoryAccessory, entity.CategoryOuterwear},
			MinItems: 2,
			MaxItems: 5,
		},
		{
			Name:     "layered",
			Base:     []entity.Category{entity.CategoryTop, entity.CategoryBottom, entity.CategoryOuterwear},
			Optional: []entity.Category{entity.CategoryShoes, entity.CategoryAccessory},
			MinItems: 3,
			MaxItems: 5,
		},
	}
}

var fallbackOrder = []entity.Category{
	entity.CategoryDress,
	entity.CategoryTop,
	entity.CategoryBottom,
	entity.CategoryShoes,
}

const fallbackSize = 2

// conflicts reports whether cat may not join an outfit that already holds
// chosen. A dress covers the top and bottom slots.
func conflicts(cat entity.Category, chosen map[entity.Category]bool) bool {
	switch cat {
	case entity.CategoryDress:
		return chosen[entity.CategoryTop] || chosen[entity.CategoryBottom]
	case entity.CategoryTop, entity.CategoryBottom:
		return chosen[entity.CategoryDress]
	default:
		return false
	}
}
