// Package services orchestrates entry writes: persistence, the pricing rule,
// and change notifications.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"milktrack/internal/core"
	"milktrack/internal/store"
)

// Publisher pushes a change notification onto the message bus.
type Publisher interface {
	PublishEntryChange(ctx context.Context, ch store.Change) error
}

// ChangeHook is an in-process change listener, invoked synchronously after
// every successful write.
type ChangeHook func(store.Change)

// EntryService is the single write path for entries. Every path that sets a
// bottle count derives the amount from core.ComputeAmount, so the
// amount == bottles * UnitPrice invariant holds for all stored entries.
type EntryService struct {
	store     store.EntryStore
	publisher Publisher // optional; nil when AMQP is not configured

	mu    sync.Mutex
	hooks []ChangeHook
}

func NewEntryService(st store.EntryStore, publisher Publisher) *EntryService {
	return &EntryService{store: st, publisher: publisher}
}

// OnChange registers an in-process listener for change notifications.
func (s *EntryService) OnChange(fn ChangeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// CreateEntry validates the bottle count, applies the pricing rule and
// persists the new entry. An empty status defaults to completed.
func (s *EntryService) CreateEntry(ctx context.Context, ownerID string, bottles int, timestamp time.Time, status core.Status) (string, error) {
	if status == "" {
		status = core.StatusCompleted
	}
	ie := core.InsertEntry{
		Bottles:   bottles,
		Amount:    core.ComputeAmount(bottles),
		Timestamp: timestamp,
		Status:    status,
	}
	if err := ie.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, ownerID, ie)
	if err != nil {
		return "", fmt.Errorf("save entry: %w", err)
	}

	s.notifyChange(ctx, store.Change{OwnerID: ownerID, EntryID: id, Op: store.OpCreate, At: time.Now()})
	return id, nil
}

// UpdateEntry applies a partial update. The store recomputes the amount
// whenever the bottle count changes.
func (s *EntryService) UpdateEntry(ctx context.Context, ownerID, id string, u core.EntryUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Empty() {
		return nil
	}

	if err := s.store.Update(ctx, ownerID, id, u); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	s.notifyChange(ctx, store.Change{OwnerID: ownerID, EntryID: id, Op: store.OpUpdate, At: time.Now()})
	return nil
}

// DeleteEntry removes the entry permanently.
func (s *EntryService) DeleteEntry(ctx context.Context, ownerID, id string) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.notifyChange(ctx, store.Change{OwnerID: ownerID, EntryID: id, Op: store.OpDelete, At: time.Now()})
	return nil
}

// Entries returns the owner's full collection, newest timestamp first.
func (s *EntryService) Entries(ctx context.Context, ownerID string) ([]core.Entry, error) {
	return s.store.List(ctx, ownerID)
}

// notifyChange fans the change out to hooks and the bus. A publish failure
// never fails the originating write; the entry is already persisted.
func (s *EntryService) notifyChange(ctx context.Context, ch store.Change) {
	s.mu.Lock()
	hooks := make([]ChangeHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(ch)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryChange(ctx, ch); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry change",
			"owner_id", ch.OwnerID,
			"entry_id", ch.EntryID,
			"op", string(ch.Op),
			"error", err)
	}
}
