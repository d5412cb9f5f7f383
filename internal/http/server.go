// Package http exposes the card ledger, insights, calendar and feed proxies
// as a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardwise/internal/calendar"
	"cardwise/internal/core"
	"cardwise/internal/feeds"
	"cardwise/internal/insights"
	"cardwise/internal/ledger"
	"cardwise/internal/log"
)

// CardLedger is the repository surface the handlers use.
type CardLedger interface {
	Cards() []core.CardAccount
	Card(id uuid.UUID) (core.CardAccount, bool)
	Events() []core.BillingEvent
	AddCard(ctx context.Context, p ledger.CardParams) (core.CardAccount, error)
	DeleteCard(ctx context.Context, id uuid.UUID) error
	Upsert(ctx context.Context, id uuid.UUID, apply func(*core.CardAccount)) (core.CardAccount, error)
	AddEvent(ctx context.Context, cardID *uuid.UUID, date time.Time, kind core.EventKind, note string) (core.BillingEvent, error)
	UpdateEventNote(ctx context.Context, id uuid.UUID, note string) (core.BillingEvent, error)
}

// InsightsBuilder assembles the dashboard payload.
type InsightsBuilder interface {
	Summary(ctx context.Context, cards []core.CardAccount) insights.Summary
}

// CalendarBuilder assembles a month view.
type CalendarBuilder interface {
	Month(ctx context.Context, events []core.BillingEvent, year int, month time.Month) calendar.MonthView
}

// OffersFetcher, RatesFetcher and HolidaysFetcher proxy the raw feeds.
type OffersFetcher interface {
	Fetch(ctx context.Context) ([]feeds.CardOffer, error)
}

type RatesFetcher interface {
	Fetch(ctx context.Context, base string) (feeds.RateTable, error)
}

type HolidaysFetcher interface {
	Fetch(ctx context.Context, country string, year int) ([]feeds.Holiday, error)
}

// Deps bundles everything the server serves.
type Deps struct {
	Ledger       CardLedger
	Insights     InsightsBuilder
	Calendar     CalendarBuilder
	Offers       OffersFetcher
	Rates        RatesFetcher
	Holidays     HolidaysFetcher
	BaseCurrency string
	CountryCode  string
	Logger       *log.Logger
}

type Server struct {
	http.Server
	ledger       CardLedger
	insights     InsightsBuilder
	calendar     CalendarBuilder
	offers       OffersFetcher
	rates        RatesFetcher
	holidays     HolidaysFetcher
	baseCurrency string
	countryCode  string
	rateLimiter  *rateLimiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:       deps.Ledger,
		insights:     deps.Insights,
		calendar:     deps.Calendar,
		offers:       deps.Offers,
		rates:        deps.Rates,
		holidays:     deps.Holidays,
		baseCurrency: deps.BaseCurrency,
		countryCode:  deps.CountryCode,
		rateLimiter:  newRateLimiter(),
		logger:       logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/cards", s.withMiddleware(s.handleListCards))
	mux.HandleFunc("POST /api/cards", s.withMiddleware(s.handleCreateCard))
	mux.HandleFunc("GET /api/cards/{id}", s.withMiddleware(s.handleGetCard))
	mux.HandleFunc("PATCH /api/cards/{id}", s.withMiddleware(s.handleUpdateCard))
	mux.HandleFunc("DELETE /api/cards/{id}", s.withMiddleware(s.handleDeleteCard))

	mux.HandleFunc("POST /api/events", s.withMiddleware(s.handleCreateEvent))
	mux.HandleFunc("PATCH /api/events/{id}", s.withMiddleware(s.handleUpdateEvent))

	mux.HandleFunc("GET /api/insights", s.withMiddleware(s.handleInsights))
	mux.HandleFunc("GET /api/calendar", s.withMiddleware(s.handleCalendar))
	mux.HandleFunc("GET /api/offers", s.withMiddleware(s.handleOffers))
	mux.HandleFunc("GET /api/rates", s.withMiddleware(s.handleRates))
	mux.HandleFunc("GET /api/holidays", s.withMiddleware(s.handleHolidays))

	return s
}

// Shutdown stops the rate limiter cleanup goroutine and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, request IDs, request logging and
// per-IP rate limiting on mutations.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)
		requestID := generateRequestID()

		ctx := r.Context()
		reqLogger := s.logger.With(log.FieldRequestID, requestID)
		reqLogger.InfoContext(ctx, "Request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP) {
			reqLogger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLogger.InfoContext(ctx, "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
