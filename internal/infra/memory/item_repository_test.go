package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/itembank"
)

func TestItemRepositoryCaches(t *testing.T) {
	loader := &countingLoader{ItemLoader: NewStaticItemLoader(itembank.Default())}
	repo := NewItemRepository(loader, time.Minute)

	items, err := repo.LoadItems(context.Background())
	if err != nil {
		t.Fatalf("load items: %v", err)
	}
	if len(items) != 20 {
		t.Fatalf("expected 20 items, got %d", len(items))
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	items[0].PromptText = "mutated"
	again, err := repo.LoadItems(context.Background())
	if err != nil {
		t.Fatalf("load items 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
	if again[0].PromptText == "mutated" {
		t.Fatalf("cache leaked a caller mutation")
	}
}

func TestItemRepositoryExpires(t *testing.T) {
	loader := &countingLoader{ItemLoader: NewStaticItemLoader(itembank.Default())}
	repo := NewItemRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.LoadItems(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = repo.LoadItems(context.Background())
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", loader.count())
	}
}

func TestStaticItemLoaderRejectsEmpty(t *testing.T) {
	_, err := NewStaticItemLoader(nil).LoadItems(context.Background())
	if !errors.Is(err, domain.ErrEmptyItemBank) {
		t.Fatalf("expected empty bank error, got %v", err)
	}
}

type countingLoader struct {
	ItemLoader
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
