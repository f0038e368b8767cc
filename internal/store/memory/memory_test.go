package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"milktrack/internal/core"
	"milktrack/internal/store"
)

func TestCreateAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := core.InsertEntry{Bottles: 2, Amount: 50, Timestamp: time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC), Status: core.StatusCompleted}
	second := core.InsertEntry{Bottles: 3, Amount: 75, Timestamp: time.Date(2024, 1, 6, 8, 0, 0, 0, time.UTC), Status: core.StatusCompleted}

	if _, err := s.Create(ctx, "alice", first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, "alice", second); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest timestamp first.
	if !got[0].Timestamp.After(got[1].Timestamp) {
		t.Fatalf("entries not ordered newest first: %v then %v", got[0].Timestamp, got[1].Timestamp)
	}

	other, err := s.List(ctx, "bob")
	if err != nil {
		t.Fatalf("list other owner: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("owner scoping violated, bob sees %d entries", len(other))
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.Create(context.Background(), "alice", core.InsertEntry{Bottles: 0, Timestamp: time.Now(), Status: core.StatusCompleted})
	if !errors.Is(err, core.ErrInvalidBottles) {
		t.Fatalf("got %v, want ErrInvalidBottles", err)
	}
}

func TestUpdateRecomputesAmount(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Create(ctx, "alice", core.InsertEntry{Bottles: 2, Amount: 50, Timestamp: time.Now(), Status: core.StatusCompleted})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	five := 5
	if err := s.Update(ctx, "alice", id, core.EntryUpdate{Bottles: &five}); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, _ := s.List(ctx, "alice")
	if list[0].Bottles != 5 || list[0].Amount != 125 {
		t.Fatalf("got bottles=%d amount=%v, want 5/125", list[0].Bottles, list[0].Amount)
	}
}

func TestUpdateUnknownEntry(t *testing.T) {
	s := New()
	five := 5
	err := s.Update(context.Background(), "alice", "mem:404", core.EntryUpdate{Bottles: &five})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Create(ctx, "alice", core.InsertEntry{Bottles: 1, Amount: 25, Timestamp: time.Now(), Status: core.StatusCompleted})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, "alice", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "alice", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}

	list, _ := s.List(ctx, "alice")
	if len(list) != 0 {
		t.Fatalf("entry still present after delete")
	}
}
