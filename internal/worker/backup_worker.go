// Package worker runs the spreadsheet backup consumer. It mirrors every
// entry change into a Google Sheets journal so the delivery history
// survives a lost database.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"milktrack/internal/core"
	"milktrack/internal/notify"
	"milktrack/internal/sheets"
	"milktrack/internal/store"
)

// BackupWorker appends entry changes to the backup spreadsheet.
type BackupWorker struct {
	lister    store.EntryLister
	appender  sheets.EntryAppender
	batchSize int
}

func NewBackupWorker(lister store.EntryLister, appender sheets.EntryAppender, batchSize int) *BackupWorker {
	return &BackupWorker{
		lister:    lister,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleChangeMessage processes a single entry change message from AMQP.
func (w *BackupWorker) HandleChangeMessage(ctx context.Context, msg *notify.EntryChangedMessage) error {
	slog.InfoContext(ctx, "Processing backup message",
		"owner_id", msg.OwnerID,
		"entry_id", msg.EntryID,
		"op", string(msg.Op))

	entry := core.Entry{ID: msg.EntryID, OwnerID: msg.OwnerID}
	if msg.Op != store.OpDelete {
		found, err := w.findEntry(ctx, msg.OwnerID, msg.EntryID)
		if err != nil {
			return fmt.Errorf("load entry for backup: %w", err)
		}
		if found == nil {
			// The entry was deleted between publish and consume. Record
			// the change with the id alone rather than dropping it.
			slog.WarnContext(ctx, "Entry no longer exists, backing up id only",
				"owner_id", msg.OwnerID, "entry_id", msg.EntryID)
		} else {
			entry = *found
		}
	}

	ref, err := w.appender.AppendEntry(ctx, msg.OwnerID, entry, string(msg.Op))
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully backed up entry change",
		"owner_id", msg.OwnerID,
		"entry_id", msg.EntryID,
		"op", string(msg.Op),
		"sheets_ref", ref)

	return nil
}

// BackupOwner appends the owner's newest entries in one pass, capped at the
// configured batch size. Used at startup to recover from missed messages.
func (w *BackupWorker) BackupOwner(ctx context.Context, ownerID string) error {
	entries, err := w.lister.List(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list entries for backup: %w", err)
	}
	if len(entries) > w.batchSize {
		entries = entries[:w.batchSize]
	}

	errorCount := 0
	for _, e := range entries {
		if _, err := w.appender.AppendEntry(ctx, ownerID, e, "snapshot"); err != nil {
			slog.ErrorContext(ctx, "Failed to back up entry",
				"owner_id", ownerID, "entry_id", e.ID, "error", err)
			errorCount++
		}
	}

	slog.InfoContext(ctx, "Owner backup completed",
		"owner_id", ownerID,
		"total", len(entries),
		"errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("owner backup finished with %d errors", errorCount)
	}
	return nil
}

func (w *BackupWorker) findEntry(ctx context.Context, ownerID, entryID string) (*core.Entry, error) {
	entries, err := w.lister.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == entryID {
			return &entries[i], nil
		}
	}
	return nil, nil
}
