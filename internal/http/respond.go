package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cardwise/internal/feeds"
	"cardwise/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeLedgerError maps repository failures: store errors are server faults,
// missing entities are 404, anything else is invalid input.
func writeLedgerError(w http.ResponseWriter, err error) {
	var perr *ledger.PersistenceError
	switch {
	case errors.As(err, &perr):
		writeError(w, http.StatusInternalServerError, perr.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

// writeFeedError maps the feed error taxonomy: a rate-limited upstream is
// passed through as 429, everything else is a bad gateway.
func writeFeedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feeds.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
