package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/infra/memory"
	"empathy-assessment-service/internal/itembank"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestItemRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ItemLoader: memory.NewStaticItemLoader(itembank.Default())}
	repo := NewItemRepository(newClient(mr), loader, time.Minute)

	items, err := repo.LoadItems(context.Background())
	if err != nil {
		t.Fatalf("load items: %v", err)
	}
	if len(items) != 20 || loader.count() != 1 {
		t.Fatalf("expected 20 items from one load, got %d items / %d calls", len(items), loader.count())
	}
	if !mr.Exists("assessment:items") {
		t.Fatalf("expected items hash")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.LoadItems(context.Background())
	if err != nil {
		t.Fatalf("load cached: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.count())
	}
	bank, err := itembank.New(cached)
	if err != nil {
		t.Fatalf("bank from cache: %v", err)
	}
	first, _ := bank.At(0)
	if first.ID != 1 || first.PromptText != itembank.Default()[0].PromptText {
		t.Fatalf("cached item lost fields: %+v", first)
	}
	reversed, _ := bank.At(8)
	if !reversed.ReverseScored {
		t.Fatalf("expected reverse flag preserved for item %d", reversed.ID)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := repo.LoadItems(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after expiry, got %d", loader.count())
	}
}

type countingLoader struct {
	memory.ItemLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadItems(ctx context.Context) ([]domain.AssessmentItem, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.ItemLoader.LoadItems(ctx)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
