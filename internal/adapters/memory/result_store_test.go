package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aquasight/aquasight/internal/adapters/memory"
	"github.com/aquasight/aquasight/internal/core/domain"
	"github.com/aquasight/aquasight/internal/core/ports"
)

func TestResultStore(t *testing.T) {
	store := memory.NewResultStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, ports.LatestResultID); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("empty store must return ErrNotReady, got %v", err)
	}

	first := &domain.CapacityResult{ID: "a"}
	second := &domain.CapacityResult{ID: "b"}
	if err := store.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "a")
	if err != nil || got.ID != "a" {
		t.Fatalf("get by id: %v %v", got, err)
	}

	latest, err := store.Get(ctx, ports.LatestResultID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "b" {
		t.Errorf("latest should be the most recent save, got %s", latest.ID)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("missing id must return ErrNotReady, got %v", err)
	}
}
