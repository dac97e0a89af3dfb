package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"empathy-assessment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ItemLoader fetches the item catalogue from a backing store (e.g., Postgres).
type ItemLoader interface {
	LoadItems(ctx context.Context) ([]domain.AssessmentItem, error)
}

// ItemRepository caches the catalogue with TTL to avoid repeated DB hits.
type ItemRepository struct {
	loader ItemLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	items     []domain.AssessmentItem
	expiresAt time.Time
}

func NewItemRepository(loader ItemLoader, ttl time.Duration) *ItemRepository {
	return &ItemRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ItemRepository) LoadItems(ctx context.Context) ([]domain.AssessmentItem, error) {
	if items, ok := r.cached(r.clock()); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do("items", func() (interface{}, error) {
		now := r.clock()
		if items, ok := r.cached(now); ok {
			return items, nil
		}

		items, err := r.loader.LoadItems(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.items = items
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return copyItems(result.([]domain.AssessmentItem)), nil
}

func (r *ItemRepository) cached(now time.Time) ([]domain.AssessmentItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.items != nil && r.expiresAt.After(now) {
		return copyItems(r.items), true
	}
	return nil, false
}

func (r *ItemRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticItemLoader serves a fixed catalogue (useful for tests/demos).
type StaticItemLoader struct {
	items []domain.AssessmentItem
}

func NewStaticItemLoader(items []domain.AssessmentItem) *StaticItemLoader {
	return &StaticItemLoader{items: items}
}

func (l *StaticItemLoader) LoadItems(_ context.Context) ([]domain.AssessmentItem, error) {
	if len(l.items) == 0 {
		return nil, domain.ErrEmptyItemBank
	}
	return copyItems(l.items), nil
}

func copyItems(items []domain.AssessmentItem) []domain.AssessmentItem {
	out := make([]domain.AssessmentItem, len(items))
	copy(out, items)
	return out
}
