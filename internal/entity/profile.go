package entity

import "strings"

type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnisex      Gender = "unisex"
)

// ParseGender 未识别的值按未指定处理。
func ParseGender(value string) Gender {
	switch Gender(strings.ToLower(strings.TrimSpace(value))) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	case GenderUnisex:
		return GenderUnisex
	default:
		return GenderUnspecified
	}
}

// ParseProfileGender 用户资料只区分 male/female，unisex 仅用于商品
func ParseProfileGender(value string) Gender {
	if gender := ParseGender(value); gender != GenderUnisex {
		return gender
	}
	return GenderUnspecified
}

type BudgetTier string

const (
	BudgetUnspecified BudgetTier = ""
	BudgetLow         BudgetTier = "low"
	BudgetMid         BudgetTier = "mid"
	BudgetPremium     BudgetTier = "premium"
)

func ParseBudgetTier(value string) BudgetTier {
	switch BudgetTier(strings.ToLower(strings.TrimSpace(value))) {
	case BudgetLow:
		return BudgetLow
	case BudgetMid:
		return BudgetMid
	case BudgetPremium:
		return BudgetPremium
	default:
		return BudgetUnspecified
	}
}

// PriceBand is an inclusive range of minor currency units. Max == 0 means unbounded.
type PriceBand struct {
	Min int64
	Max int64
}

// PriceBand returns the catalog price window for the tier and false when no
// price filter applies.
func (b BudgetTier) PriceBand() (PriceBand, bool) {
	switch b {
	case BudgetLow:
		return PriceBand{Min: 0, Max: 5000}, true
	case BudgetMid:
		return PriceBand{Min: 5000, Max: 20000}, true
	case BudgetPremium:
		return PriceBand{Min: 20000}, true
	default:
		return PriceBand{}, false
	}
}

// PreferenceProfile is the read-only styling input for one user. Every field is optional.
type PreferenceProfile struct {
	UserID      uint        `json:"user_id"`
	DisplayName string      `json:"display_name,omitempty"`
	Gender      Gender      `json:"gender,omitempty"`
	StyleTags   StringArray `json:"style_tags,omitempty"`
	BudgetTier  BudgetTier  `json:"budget_tier,omitempty"`
	Occasion    string      `json:"occasion,omitempty"`
}
