// Package dashboard keeps live per-owner views of the entry collection: the
// full snapshot plus the derived statistics and the trailing 7-day chart
// series. The snapshot is replaced wholesale on every change notification,
// never mutated in place.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"milktrack/internal/cache"
	"milktrack/internal/core"
	"milktrack/internal/store"
)

// Snapshot is one consistent view of an owner's data.
type Snapshot struct {
	Entries []core.Entry
	Stats   core.Stats
	Series  core.WeekSeries
	At      time.Time
}

// Manager owns the subscription lifecycle keyed by owner identity. It is an
// explicit handle passed to its consumers, not ambient global state.
type Manager struct {
	lister store.EntryLister
	now    func() time.Time

	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func([]core.Entry)

	snapshots *cache.LRU[Snapshot]
}

var _ store.Subscriber = (*Manager)(nil)

const (
	snapshotCacheSize = 128
	snapshotCacheTTL  = 5 * time.Minute
)

func NewManager(lister store.EntryLister) *Manager {
	return &Manager{
		lister:    lister,
		now:       time.Now,
		subs:      make(map[string]map[int]func([]core.Entry)),
		snapshots: cache.NewLRU[Snapshot](snapshotCacheSize, snapshotCacheTTL),
	}
}

// SetClock overrides the reference clock used for the chart window.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Subscribe implements store.Subscriber: fn receives the owner's full entry
// snapshot on every change until the returned func is called. The current
// snapshot is delivered immediately when one can be loaded.
func (m *Manager) Subscribe(ownerID string, fn func([]core.Entry)) (unsubscribe func()) {
	m.mu.Lock()
	if m.subs[ownerID] == nil {
		m.subs[ownerID] = make(map[int]func([]core.Entry))
	}
	m.nextID++
	id := m.nextID
	m.subs[ownerID][id] = fn
	m.mu.Unlock()

	if snap, err := m.Snapshot(context.Background(), ownerID); err == nil {
		fn(snap.Entries)
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[ownerID], id)
		if len(m.subs[ownerID]) == 0 {
			delete(m.subs, ownerID)
			m.snapshots.Delete(ownerID)
		}
	}
}

// HandleChange refreshes the owner's snapshot and notifies subscribers.
// It is registered as an in-process hook with the entry service and doubles
// as the AMQP consumer handler.
func (m *Manager) HandleChange(ctx context.Context, ch store.Change) error {
	snap, err := m.Refresh(ctx, ch.OwnerID)
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}

	m.mu.Lock()
	fns := make([]func([]core.Entry), 0, len(m.subs[ch.OwnerID]))
	for _, fn := range m.subs[ch.OwnerID] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap.Entries)
	}

	slog.DebugContext(ctx, "Snapshot refreshed",
		"owner_id", ch.OwnerID,
		"op", string(ch.Op),
		"entries", snap.Stats.TotalEntries)
	return nil
}

// Refresh reloads the owner's entries and recomputes the derived views,
// replacing the cached snapshot wholesale.
func (m *Manager) Refresh(ctx context.Context, ownerID string) (Snapshot, error) {
	entries, err := m.lister.List(ctx, ownerID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list entries: %w", err)
	}

	m.mu.Lock()
	now := m.now()
	m.mu.Unlock()

	snap := Snapshot{
		Entries: entries,
		Stats:   core.ComputeStats(entries),
		Series:  core.ComputeSeries(entries, now),
		At:      now,
	}
	m.snapshots.Set(ownerID, snap)
	return snap, nil
}

// Snapshot returns the cached view for the owner, refreshing on a miss.
func (m *Manager) Snapshot(ctx context.Context, ownerID string) (Snapshot, error) {
	if snap, ok := m.snapshots.Get(ownerID); ok {
		return snap, nil
	}
	return m.Refresh(ctx, ownerID)
}
