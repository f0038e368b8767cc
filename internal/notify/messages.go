package notify

import (
	"encoding/json"
	"time"

	"milktrack/internal/store"
)

// EntryChangedMessage is the wire form of a store.Change. It deliberately
// carries no entry payload: consumers reload the owner's collection so a
// lost or reordered message can never leave them with stale field values.
type EntryChangedMessage struct {
	OwnerID   string         `json:"ownerId"`
	EntryID   string         `json:"entryId"`
	Op        store.ChangeOp `json:"op"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewEntryChangedMessage(ch store.Change) *EntryChangedMessage {
	at := ch.At
	if at.IsZero() {
		at = time.Now()
	}
	return &EntryChangedMessage{
		OwnerID:   ch.OwnerID,
		EntryID:   ch.EntryID,
		Op:        ch.Op,
		Timestamp: at,
	}
}

func (m *EntryChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryChangedMessageFromJSON(data []byte) (*EntryChangedMessage, error) {
	var msg EntryChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Change converts the message back to the store-level form.
func (m *EntryChangedMessage) Change() store.Change {
	return store.Change{
		OwnerID: m.OwnerID,
		EntryID: m.EntryID,
		Op:      m.Op,
		At:      m.Timestamp,
	}
}
