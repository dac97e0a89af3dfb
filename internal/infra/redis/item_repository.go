package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"empathy-assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ItemLoader fetches the item catalogue from a backing store (e.g., Postgres).
type ItemLoader interface {
	LoadItems(ctx context.Context) ([]domain.AssessmentItem, error)
}

// ItemRepository caches the catalogue in Redis and falls back to a loader on cache miss.
// Items are stored as: HSET assessment:items {itemID} {json}
type ItemRepository struct {
	client *redis.Client
	loader ItemLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

const itemsKey = "assessment:items"

func NewItemRepository(client *redis.Client, loader ItemLoader, ttl time.Duration) *ItemRepository {
	return &ItemRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ItemRepository) LoadItems(ctx context.Context) ([]domain.AssessmentItem, error) {
	if items, ok := r.cached(ctx); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do(itemsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if items, ok := r.cached(ctx); ok {
			return items, nil
		}

		items, err := r.loader.LoadItems(ctx)
		if err != nil {
			return nil, err
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, itemsKey)
		for _, item := range items {
			raw, err := json.Marshal(item)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, itemsKey, item.ID, raw)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, itemsKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.AssessmentItem), nil
}

// cached decodes the hash. Any undecodable entry is treated as a miss.
func (r *ItemRepository) cached(ctx context.Context) ([]domain.AssessmentItem, bool) {
	fields, err := r.client.HGetAll(ctx, itemsKey).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	items := make([]domain.AssessmentItem, 0, len(fields))
	for _, raw := range fields {
		var item domain.AssessmentItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

func (r *ItemRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
