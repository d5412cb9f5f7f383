package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"cardwise/internal/log"
)

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	summary := s.insights.Summary(r.Context(), s.ledger.Cards())
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "invalid month, expected 1-12")
			return
		}
		month = m
	}

	view := s.calendar.Month(r.Context(), s.ledger.Events(), year, time.Month(month))
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.offers.Fetch(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Offers fetch failed",
			log.FieldOperation, log.OpFetch, log.FieldError, err)
		writeFeedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSpace(r.URL.Query().Get("base"))
	if base == "" {
		base = s.baseCurrency
	}

	table, err := s.rates.Fetch(r.Context(), base)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Rates fetch failed",
			log.FieldOperation, log.OpFetch, log.FieldCurrency, base, log.FieldError, err)
		writeFeedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		country = s.countryCode
	}
	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}

	holidays, err := s.holidays.Fetch(r.Context(), country, year)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Holidays fetch failed",
			log.FieldOperation, log.OpFetch,
			log.FieldCountry, country, log.FieldYear, year, log.FieldError, err)
		writeFeedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holidays)
}
