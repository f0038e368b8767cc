package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"milktrack/internal/auth"
	"milktrack/internal/core"
	"milktrack/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "milktrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository, email string) auth.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), email, "hash", "Tester")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestEntryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice@example.com")

	ts := time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC)
	id, err := repo.Create(ctx, owner.UID, core.InsertEntry{
		Bottles:   3,
		Amount:    core.ComputeAmount(3),
		Timestamp: ts,
		Status:    core.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	entries, err := repo.List(ctx, owner.UID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != id || e.OwnerID != owner.UID || e.Bottles != 3 || e.Amount != 75 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if !e.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", e.Timestamp, ts)
	}
	if e.Status != core.StatusCompleted {
		t.Fatalf("status = %q", e.Status)
	}
	if e.CreatedAt.IsZero() || e.UpdatedAt.IsZero() {
		t.Fatalf("bookkeeping timestamps missing: %+v", e)
	}
}

func TestListOrderAndScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := newTestUser(t, repo, "alice@example.com")
	bob := newTestUser(t, repo, "bob@example.com")

	days := []int{3, 7, 5}
	for _, d := range days {
		_, err := repo.Create(ctx, alice.UID, core.InsertEntry{
			Bottles:   1,
			Amount:    25,
			Timestamp: time.Date(2024, 1, d, 8, 0, 0, 0, time.UTC),
			Status:    core.StatusCompleted,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := repo.Create(ctx, bob.UID, core.InsertEntry{
		Bottles: 9, Amount: 225, Timestamp: time.Date(2024, 1, 6, 8, 0, 0, 0, time.UTC), Status: core.StatusCompleted,
	}); err != nil {
		t.Fatalf("create bob entry: %v", err)
	}

	entries, err := repo.List(ctx, alice.UID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatalf("not ordered newest first at %d", i)
		}
	}
}

func TestUpdateRecomputesAmount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice@example.com")

	id, err := repo.Create(ctx, owner.UID, core.InsertEntry{
		Bottles: 2, Amount: 50, Timestamp: time.Now(), Status: core.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	seven := 7
	pending := core.StatusPending
	if err := repo.Update(ctx, owner.UID, id, core.EntryUpdate{Bottles: &seven, Status: &pending}); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, _ := repo.List(ctx, owner.UID)
	if entries[0].Bottles != 7 || entries[0].Amount != 175 {
		t.Fatalf("amount not recomputed: %+v", entries[0])
	}
	if entries[0].Status != core.StatusPending {
		t.Fatalf("status = %q, want pending", entries[0].Status)
	}
}

func TestUpdateDeleteMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice@example.com")

	two := 2
	if err := repo.Update(ctx, owner.UID, "nope", core.EntryUpdate{Bottles: &two}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update missing: got %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, owner.UID, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete missing: got %v, want ErrNotFound", err)
	}
}

func TestDeleteIsPermanent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := newTestUser(t, repo, "alice@example.com")

	id, err := repo.Create(ctx, owner.UID, core.InsertEntry{
		Bottles: 1, Amount: 25, Timestamp: time.Now(), Status: core.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(ctx, owner.UID, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, _ := repo.List(ctx, owner.UID)
	if len(entries) != 0 {
		t.Fatalf("entry survived delete")
	}
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice@example.com", "hash", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := repo.CreateUser(ctx, "alice@example.com", "hash2", "Other"); !errors.Is(err, auth.ErrUserExists) {
		t.Fatalf("duplicate email: got %v, want ErrUserExists", err)
	}

	byEmail, err := repo.UserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail.UID != u.UID {
		t.Fatalf("by email: %v %+v", err, byEmail)
	}

	name := "Alice W."
	photo := "https://example.com/a.png"
	updated, err := repo.UpdateProfile(ctx, u.UID, auth.ProfileUpdate{DisplayName: &name, PhotoURL: &photo})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName != name || updated.PhotoURL != photo {
		t.Fatalf("profile not updated: %+v", updated)
	}

	if _, err := repo.UserByID(ctx, "missing"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("missing user: got %v, want ErrUserNotFound", err)
	}
}
