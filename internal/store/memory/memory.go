// Package memory provides an in-memory entry store used by tests and by
// zero-config local runs. It mirrors the SQLite backend's semantics:
// per-owner collections, newest-timestamp-first listing, hard deletes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"milktrack/internal/core"
	"milktrack/internal/store"
)

type Store struct {
	mu      sync.Mutex
	seq     int
	entries map[string][]core.Entry // keyed by owner id

	// now is swappable so tests control bookkeeping timestamps.
	now func() time.Time
}

var _ store.EntryStore = (*Store)(nil)

func New() *Store {
	return &Store{
		entries: make(map[string][]core.Entry),
		now:     time.Now,
	}
}

// SetClock overrides the wall clock used for createdAt/updatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Create(_ context.Context, ownerID string, ie core.InsertEntry) (string, error) {
	if err := ie.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	now := s.now()
	e := core.Entry{
		ID:        fmt.Sprintf("mem:%d", s.seq),
		OwnerID:   ownerID,
		Bottles:   ie.Bottles,
		Amount:    ie.Amount,
		Timestamp: ie.Timestamp,
		Status:    ie.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.entries[ownerID] = append(s.entries[ownerID], e)
	return e.ID, nil
}

func (s *Store) Update(_ context.Context, ownerID, id string, u core.EntryUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[ownerID]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		if u.Bottles != nil {
			list[i].Bottles = *u.Bottles
			list[i].Amount = core.ComputeAmount(*u.Bottles)
		}
		if u.Timestamp != nil {
			list[i].Timestamp = *u.Timestamp
		}
		if u.Status != nil {
			list[i].Status = *u.Status
		}
		list[i].UpdatedAt = s.now()
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[ownerID]
	for i := range list {
		if list[i].ID == id {
			s.entries[ownerID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) List(_ context.Context, ownerID string) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[ownerID]
	out := make([]core.Entry, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
