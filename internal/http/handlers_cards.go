package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"cardwise/internal/core"
	"cardwise/internal/ledger"
	"cardwise/internal/log"
)

type createCardRequest struct {
	Name              string `json:"name"`
	Issuer            string `json:"issuer"`
	Network           string `json:"network"`
	CurrencyCode      string `json:"currency_code"`
	Last4             string `json:"last4"`
	StatementCloseDay int    `json:"statement_close_day"`
	DueDay            int    `json:"due_day"`
	BillingWindowDays int    `json:"billing_window_days"`
	Notes             string `json:"notes"`
}

type updateCardRequest struct {
	Name              *string `json:"name"`
	Issuer            *string `json:"issuer"`
	Network           *string `json:"network"`
	CurrencyCode      *string `json:"currency_code"`
	Last4             *string `json:"last4"`
	StatementCloseDay *int    `json:"statement_close_day"`
	DueDay            *int    `json:"due_day"`
	BillingWindowDays *int    `json:"billing_window_days"`
	Notes             *string `json:"notes"`
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Cards())
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	card, ok := s.ledger.Card(id)
	if !ok {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card, err := s.ledger.AddCard(r.Context(), ledger.CardParams{
		Name:              req.Name,
		Issuer:            req.Issuer,
		Network:           req.Network,
		CurrencyCode:      req.CurrencyCode,
		Last4:             req.Last4,
		StatementCloseDay: req.StatementCloseDay,
		DueDay:            req.DueDay,
		BillingWindowDays: req.BillingWindowDays,
		Notes:             req.Notes,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, found := s.ledger.Card(id); !found {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}

	card, err := s.ledger.Upsert(r.Context(), id, func(c *core.CardAccount) {
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.Issuer != nil {
			c.Issuer = *req.Issuer
		}
		if req.Network != nil {
			c.Network = *req.Network
		}
		if req.CurrencyCode != nil {
			c.CurrencyCode = *req.CurrencyCode
		}
		if req.Last4 != nil {
			c.Last4 = *req.Last4
		}
		if req.StatementCloseDay != nil {
			c.StatementCloseDay = *req.StatementCloseDay
		}
		if req.DueDay != nil {
			c.DueDay = *req.DueDay
		}
		if req.BillingWindowDays != nil {
			c.BillingWindowDays = *req.BillingWindowDays
		}
		if req.Notes != nil {
			c.Notes = *req.Notes
		}
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, found := s.ledger.Card(id); !found {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	if err := s.ledger.DeleteCard(r.Context(), id); err != nil {
		writeLedgerError(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Card deleted via API", log.FieldCardID, id)
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path segment, responding 400 on garbage.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
