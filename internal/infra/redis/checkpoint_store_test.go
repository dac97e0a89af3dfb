package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"empathy-assessment-service/internal/app"
	"empathy-assessment-service/internal/domain"
	"empathy-assessment-service/internal/itembank"
	"empathy-assessment-service/internal/scoring"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCheckpointStoreRoundTripsResumableSnapshot(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()
	store := NewCheckpointStore(newClient(mr), time.Hour)

	bank := itembank.MustDefault()
	session := app.NewSession("s-1", "agent", bank, app.SessionConfig{})
	scorer := scoring.New(session.Scale(), domain.InputText)
	for i := 0; i < 3; i++ {
		item, _ := session.NextItem()
		if err := session.RecordTurn(item, "scenario", "I feel it too", scorer.Score("I feel it too", item)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := store.Save(ctx, session.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("assessment:snapshot:s-1"); ttl != time.Hour {
		t.Fatalf("expected ttl, got %v", ttl)
	}

	snap, err := store.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	restored, err := app.RestoreSession(snap, bank, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.CurrentItemIndex() != 3 {
		t.Fatalf("expected cursor 3, got %d", restored.CurrentItemIndex())
	}
	if got := restored.Report().ItemsCompleted; got != 3 {
		t.Fatalf("expected 3 results after round trip, got %d", got)
	}

	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "s-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
