package composer

import (
	"math/rand"
	"strings"
	"sync"

	"stylist/internal/entity"
)

const (
	maxJitter         = 5.0
	styleTagWeight    = 10.0
	occasionListBonus = 20.0
	occasionTagBonus  = 15.0
)

// Rand is the random source used for jitter, subset sizes and shuffling.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// lockedRand makes a *rand.Rand safe to share between requests.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// Score ranks a candidate for the profile. jitter is added as is and is
// expected in [0, 5).
//
// +10 per item tag found in the profile's style tags, +20 when the occasion
// equals one of the item's occasions, +15 when the occasion appears inside
// any item tag. Comparisons ignore case.
func Score(item entity.DbCatalogItem, styleTags entity.StringArray, occasion string, jitter float64) float64 {
	score := jitter

	seen := make(map[string]struct{}, len(item.Tags))
	for _, tag := range item.Tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if styleTags.ContainsFold(key) {
			score += styleTagWeight
		}
	}

	occasion = strings.ToLower(strings.TrimSpace(occasion))
	if occasion == "" {
		return score
	}
	if item.Occasions.ContainsFold(occasion) {
		score += occasionListBonus
	}
	for key := range seen {
		if strings.Contains(key, occasion) {
			score += occasionTagBonus
			break
		}
	}
	return score
}
