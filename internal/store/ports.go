package store

import (
	"context"
	"errors"
	"time"

	"milktrack/internal/core"
)

// ErrNotFound is returned when an entry does not exist for the given owner.
var ErrNotFound = errors.New("entry not found")

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeOp identifies the kind of mutation behind a change notification.
type ChangeOp string

// Change describes a single mutation of an owner's entry collection.
type Change struct {
	OwnerID string
	EntryID string
	Op      ChangeOp
	At      time.Time
}

// Ports for entry persistence backends.
type (
	EntryCreator interface {
		// Create persists a new entry for the owner and returns its id.
		Create(ctx context.Context, ownerID string, ie core.InsertEntry) (string, error)
	}

	EntryUpdater interface {
		// Update applies a partial update to an existing entry.
		Update(ctx context.Context, ownerID, id string, u core.EntryUpdate) error
	}

	EntryDeleter interface {
		// Delete removes an entry permanently. No soft delete.
		Delete(ctx context.Context, ownerID, id string) error
	}

	EntryLister interface {
		// List returns all of the owner's entries, newest timestamp first.
		List(ctx context.Context, ownerID string) ([]core.Entry, error)
	}

	// Subscriber delivers full entry snapshots whenever the owner's
	// collection changes. The returned func stops delivery.
	Subscriber interface {
		Subscribe(ownerID string, fn func([]core.Entry)) (unsubscribe func())
	}
)

// EntryStore is the full persistence surface used by the service layer.
type EntryStore interface {
	EntryCreator
	EntryUpdater
	EntryDeleter
	EntryLister
}
