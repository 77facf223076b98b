// Package look turns a composed outfit into a persisted look record.
package look

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"stylist/internal/entity"
)

// MaxStyleTags caps the aggregated tags kept on a look.
const MaxStyleTags = 5

var ErrNoItems = errors.New("look needs at least one item")

// Picker chooses a template index in [0, n).
type Picker interface {
	Intn(n int) int
}

type lockedPicker struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (p *lockedPicker) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Intn(n)
}

var defaultPicker Picker = &lockedPicker{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

type buildOptions struct {
	picker   Picker
	strategy string
}

type Option func(*buildOptions)

// WithPicker fixes template selection, mainly for tests.
func WithPicker(p Picker) Option {
	return func(o *buildOptions) {
		if p != nil {
			o.picker = p
		}
	}
}

// WithStrategy records the composer strategy that produced the items.
func WithStrategy(name string) Option {
	return func(o *buildOptions) {
		o.strategy = name
	}
}

// Build assembles an unsaved look for profile. It performs no I/O.
func Build(items []entity.DbCatalogItem, profile entity.PreferenceProfile, occasion string, opts ...Option) (*entity.DbLook, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	o := buildOptions{picker: defaultPicker}
	for _, opt := range opts {
		opt(&o)
	}

	occasion = strings.TrimSpace(occasion)
	if occasion == "" {
		occasion = profile.Occasion
	}

	look := &entity.DbLook{
		UserID:           profile.UserID,
		Strategy:         o.strategy,
		Occasion:         occasion,
		Currency:         items[0].Currency,
		TargetGender:     profile.Gender,
		TargetBudget:     profile.BudgetTier,
		GenerationStatus: entity.JobStatusPending,
		Items:            make([]entity.DbLookItem, 0, len(items)),
	}

	names := make([]string, 0, len(items))
	var tags entity.StringArray
	for i, item := range items {
		look.TotalPrice += item.Price
		look.Items = append(look.Items, entity.DbLookItem{
			Position:      i,
			CatalogItemID: item.ID,
			Name:          item.Name,
			Category:      item.Category,
			Price:         item.Price,
			ImageURL:      item.ImageURL,
		})
		if name := strings.TrimSpace(item.Name); name != "" {
			names = append(names, name)
		}
		tags = append(tags, item.Tags...)
	}

	look.StyleTags = tags.Normalize()
	if len(look.StyleTags) > MaxStyleTags {
		look.StyleTags = look.StyleTags[:MaxStyleTags]
	}
	look.Commentary = commentary(o.picker, profile.DisplayName, occasion, names)
	return look, nil
}

func commentary(p Picker, name, occasion string, itemNames []string) string {
	_, templates := templatesFor(occasion)
	tmpl := templates[p.Intn(len(templates))]
	return greeting(name) + fmt.Sprintf(tmpl, describeItems(itemNames))
}
