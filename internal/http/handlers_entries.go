package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"milktrack/internal/core"
	applog "milktrack/internal/log"
	"milktrack/internal/store"
)

type createEntryRequest struct {
	Bottles   int        `json:"bottles"`
	Timestamp *time.Time `json:"timestamp"`
	Status    string     `json:"status"`
}

type updateEntryRequest struct {
	Bottles   *int       `json:"bottles"`
	Timestamp *time.Time `json:"timestamp"`
	Status    *string    `json:"status"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.entries.Entries(r.Context(), ownerID(r.Context()))
	if err != nil {
		s.reqLog.LogError(r.Context(), "List entries failed", err, applog.ComponentEntry, applog.OpList,
			applog.NewFields().WithRequestID(requestID(r.Context())))
		writeError(w, http.StatusInternalServerError, "could not load entries")
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponses(entries))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	timestamp := time.Now()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	owner := ownerID(r.Context())
	id, err := s.entries.CreateEntry(r.Context(), owner, req.Bottles, timestamp, core.Status(req.Status))
	if isValidationError(err) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Create entry failed", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "could not save entry")
		return
	}

	entry, err := s.findEntry(r, owner, id)
	if err != nil {
		// The write succeeded; fall back to the id alone.
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
		return
	}

	s.reqLog.LogEntryCreated(r.Context(), owner, entry.ID, entry.Bottles, entry.Amount)
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := core.EntryUpdate{Bottles: req.Bottles, Timestamp: req.Timestamp}
	if req.Status != nil {
		st := core.Status(*req.Status)
		upd.Status = &st
	}

	owner := ownerID(r.Context())
	id := r.PathValue("id")
	err := s.entries.UpdateEntry(r.Context(), owner, id, upd)
	if isValidationError(err) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Update entry failed", "error", err, "owner_id", owner, "entry_id", id)
		writeError(w, http.StatusInternalServerError, "could not update entry")
		return
	}

	entry, err := s.findEntry(r, owner, id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r.Context())
	id := r.PathValue("id")

	err := s.entries.DeleteEntry(r.Context(), owner, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete entry failed", "error", err, "owner_id", owner, "entry_id", id)
		writeError(w, http.StatusInternalServerError, "could not delete entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) findEntry(r *http.Request, owner, id string) (core.Entry, error) {
	entries, err := s.entries.Entries(r.Context(), owner)
	if err != nil {
		return core.Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Entry{}, store.ErrNotFound
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidBottles) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidTimestamp) ||
		errors.Is(err, core.ErrInvalidStatus)
}
