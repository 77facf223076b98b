// Package composer assembles outfits from the catalog for a preference profile.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stylist/internal/catalog"
	"stylist/internal/entity"

	"github.com/sirupsen/logrus"
)

// ErrInsufficientCatalog means not even the 2-item fallback could be filled.
var ErrInsufficientCatalog = errors.New("insufficient catalog: no matching outfit")

// Outfit is a composed set of items, one per category.
type Outfit struct {
	Strategy string
	Items    []entity.DbCatalogItem
}

type Option func(*Composer)

// WithRand replaces the random source. Tests pass a seeded *rand.Rand.
func WithRand(r Rand) Option {
	return func(c *Composer) {
		if r != nil {
			c.rng = r
		}
	}
}

// WithStrategies replaces the strategy table.
func WithStrategies(strategies []Strategy) Option {
	return func(c *Composer) {
		if len(strategies) > 0 {
			c.strategies = strategies
		}
	}
}

type Composer struct {
	catalog    catalog.Catalog
	strategies []Strategy
	rng        Rand
}

func New(c catalog.Catalog, opts ...Option) *Composer {
	composer := &Composer{
		catalog:    c,
		strategies: DefaultStrategies(),
		rng:        newLockedRand(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(composer)
	}
	return composer
}

// Compose picks an outfit for profile. A non-empty occasion overrides the
// profile's own occasion. Strategies are tried in order; the first that
// reaches its minimum wins, otherwise the fallback runs.
func (c *Composer) Compose(ctx context.Context, profile entity.PreferenceProfile, occasion string) (*Outfit, error) {
	if c == nil || c.catalog == nil {
		return nil, fmt.Errorf("composer not initialised")
	}
	if strings.TrimSpace(occasion) == "" {
		occasion = profile.Occasion
	}

	s := &session{
		ctx:        ctx,
		composer:   c,
		profile:    profile,
		occasion:   strings.TrimSpace(occasion),
		candidates: make(map[entity.Category][]entity.DbCatalogItem),
	}

	for _, strategy := range c.strategies {
		items, ok, err := s.tryStrategy(strategy)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Outfit{Strategy: strategy.Name, Items: items}, nil
		}
		logrus.WithFields(logrus.Fields{
			"strategy": strategy.Name,
			"user_id":  profile.UserID,
		}).Debug("outfit strategy not satisfiable")
	}

	items, err := s.fallback()
	if err != nil {
		return nil, err
	}
	return &Outfit{Strategy: StrategyFallback, Items: items}, nil
}

// session holds per-request state; candidates are fetched once per category.
type session struct {
	ctx        context.Context
	composer   *Composer
	profile    entity.PreferenceProfile
	occasion   string
	candidates map[entity.Category][]entity.DbCatalogItem
}

func (s *session) candidatesFor(cat entity.Category) ([]entity.DbCatalogItem, error) {
	if items, ok := s.candidates[cat]; ok {
		return items, nil
	}
	query := entity.CatalogQuery{
		Category:   cat,
		Gender:     s.profile.Gender,
		ActiveOnly: true,
	}.WithBudget(s.profile.BudgetTier)

	items, err := s.composer.catalog.QueryItems(s.ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load %s candidates: %w", cat, err)
	}
	s.candidates[cat] = items
	return items, nil
}

// pick returns the best scoring unused item in cat.
func (s *session) pick(cat entity.Category, used map[uint]bool) (entity.DbCatalogItem, bool, error) {
	items, err := s.candidatesFor(cat)
	if err != nil {
		return entity.DbCatalogItem{}, false, err
	}

	var (
		best      entity.DbCatalogItem
		bestScore float64
		found     bool
	)
	for _, item := range items {
		if used[item.ID] {
			continue
		}
		score := Score(item, s.profile.StyleTags, s.occasion, s.composer.rng.Float64()*maxJitter)
		if !found || score > bestScore {
			best, bestScore, found = item, score, true
		}
	}
	return best, found, nil
}

func (s *session) tryStrategy(strategy Strategy) ([]entity.DbCatalogItem, bool, error) {
	used := make(map[uint]bool)
	items := make([]entity.DbCatalogItem, 0, len(strategy.Base)+len(strategy.Optional))

	for _, cat := range strategy.Base {
		item, ok, err := s.pick(cat, used)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		used[item.ID] = true
		items = append(items, item)
	}

	optional := append([]entity.Category(nil), strategy.Optional...)
	s.composer.rng.Shuffle(len(optional), func(i, j int) {
		optional[i], optional[j] = optional[j], optional[i]
	})

	room := len(optional)
	if strategy.MaxItems > 0 && strategy.MaxItems-len(items) < room {
		room = strategy.MaxItems - len(items)
	}
	if room < 0 {
		room = 0
	}
	// the subset is random-sized but never smaller than what the minimum needs
	need := strategy.MinItems - len(items)
	if need < 0 {
		need = 0
	}
	target := room
	if need <= room {
		target = need + s.composer.rng.Intn(room-need+1)
	}

	added := 0
	for _, cat := range optional {
		if added >= target {
			break
		}
		item, ok, err := s.pick(cat, used)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		used[item.ID] = true
		items = append(items, item)
		added++
	}

	if len(items) < strategy.MinItems {
		return nil, false, nil
	}
	return items, true, nil
}

func (s *session) fallback() ([]entity.DbCatalogItem, error) {
	used := make(map[uint]bool)
	chosen := make(map[entity.Category]bool)
	items := make([]entity.DbCatalogItem, 0, fallbackSize)

	for _, cat := range fallbackOrder {
		if len(items) >= fallbackSize {
			break
		}
		if conflicts(cat, chosen) {
			continue
		}
		item, ok, err := s.pick(cat, used)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		used[item.ID] = true
		chosen[cat] = true
		items = append(items, item)
	}

	if len(items) < fallbackSize {
		return nil, ErrInsufficientCatalog
	}
	return items, nil
}
