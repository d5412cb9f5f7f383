package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"cardwise/internal/core"
)

type createEventRequest struct {
	CardID *uuid.UUID `json:"card_id"`
	Date   string     `json:"date"`
	Kind   string     `json:"kind"`
	Note   string     `json:"note"`
}

type updateEventRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := parseEventDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	event, err := s.ledger.AddEvent(r.Context(), req.CardID, date, core.EventKind(req.Kind), req.Note)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := s.ledger.UpdateEventNote(r.Context(), id, req.Note)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// parseEventDate accepts a plain calendar day or a full RFC 3339 timestamp.
func parseEventDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
