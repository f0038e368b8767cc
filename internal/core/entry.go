package core

import (
	"errors"
	"time"
)

// UnitPrice is the fixed price per bottle. It is not configurable: every
// write path derives the entry amount from the bottle count with this rate.
const UnitPrice = 25

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

type (
	// Status is the delivery state of an entry.
	Status string

	// Entry is a single recorded milk-bottle delivery, scoped to one owner.
	Entry struct {
		ID        string
		OwnerID   string
		Bottles   int
		Amount    float64
		Timestamp time.Time
		Status    Status
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// InsertEntry carries the caller-supplied fields for a new entry.
	// ID, OwnerID and the bookkeeping timestamps are assigned by the store.
	InsertEntry struct {
		Bottles   int
		Amount    float64
		Timestamp time.Time
		Status    Status
	}

	// EntryUpdate is a partial update. Nil fields are left untouched.
	// There is deliberately no Amount field: when Bottles changes the
	// amount is recomputed from UnitPrice by the service layer.
	EntryUpdate struct {
		Bottles   *int
		Timestamp *time.Time
		Status    *Status
	}
)

var (
	ErrInvalidBottles   = errors.New("bottles must be at least 1")
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrInvalidTimestamp = errors.New("timestamp cannot be zero")
	ErrInvalidStatus    = errors.New("invalid status")
)

// ComputeAmount applies the pricing rule: bottles * UnitPrice.
// Callers reject non-positive bottle counts before reaching this rule.
func ComputeAmount(bottles int) float64 {
	return float64(bottles) * UnitPrice
}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

func (ie InsertEntry) Validate() error {
	if ie.Bottles < 1 {
		return ErrInvalidBottles
	}
	if ie.Amount < 0 {
		return ErrInvalidAmount
	}
	if ie.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if !ie.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (u EntryUpdate) Validate() error {
	if u.Bottles != nil && *u.Bottles < 1 {
		return ErrInvalidBottles
	}
	if u.Timestamp != nil && u.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if u.Status != nil && !u.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Empty reports whether the update would change nothing.
func (u EntryUpdate) Empty() bool {
	return u.Bottles == nil && u.Timestamp == nil && u.Status == nil
}
