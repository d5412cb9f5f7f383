package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardwise/internal/calendar"
	"cardwise/internal/core"
	"cardwise/internal/feeds"
	"cardwise/internal/insights"
	"cardwise/internal/ledger"
)

type stubLedger struct {
	cards    map[uuid.UUID]core.CardAccount
	events   map[uuid.UUID]core.BillingEvent
	storeErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		cards:  make(map[uuid.UUID]core.CardAccount),
		events: make(map[uuid.UUID]core.BillingEvent),
	}
}

func (l *stubLedger) Cards() []core.CardAccount {
	var out []core.CardAccount
	for _, c := range l.cards {
		out = append(out, c)
	}
	return out
}

func (l *stubLedger) Card(id uuid.UUID) (core.CardAccount, bool) {
	c, ok := l.cards[id]
	return c, ok
}

func (l *stubLedger) Events() []core.BillingEvent {
	var out []core.BillingEvent
	for _, e := range l.events {
		out = append(out, e)
	}
	return out
}

func (l *stubLedger) AddCard(_ context.Context, p ledger.CardParams) (core.CardAccount, error) {
	if l.storeErr != nil {
		return core.CardAccount{}, &ledger.PersistenceError{Op: "add card", Err: l.storeErr}
	}
	card := core.CardAccount{
		ID:                uuid.New(),
		Name:              p.Name,
		Issuer:            p.Issuer,
		Network:           p.Network,
		CurrencyCode:      p.CurrencyCode,
		Last4:             p.Last4,
		StatementCloseDay: core.ClampCycleDay(p.StatementCloseDay),
		DueDay:            core.ClampCycleDay(p.DueDay),
		BillingWindowDays: p.BillingWindowDays,
		Notes:             p.Notes,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := card.Validate(); err != nil {
		return core.CardAccount{}, err
	}
	l.cards[card.ID] = card
	return card, nil
}

func (l *stubLedger) DeleteCard(_ context.Context, id uuid.UUID) error {
	if l.storeErr != nil {
		return &ledger.PersistenceError{Op: "delete card", Err: l.storeErr}
	}
	if _, ok := l.cards[id]; !ok {
		return fmt.Errorf("card %s: %w", id, ledger.ErrNotFound)
	}
	delete(l.cards, id)
	return nil
}

func (l *stubLedger) Upsert(_ context.Context, id uuid.UUID, apply func(*core.CardAccount)) (core.CardAccount, error) {
	card, ok := l.cards[id]
	if !ok {
		return core.CardAccount{}, fmt.Errorf("card %s: %w", id, ledger.ErrNotFound)
	}
	apply(&card)
	card.UpdatedAt = time.Now()
	if err := card.Validate(); err != nil {
		return core.CardAccount{}, err
	}
	l.cards[id] = card
	return card, nil
}

func (l *stubLedger) AddEvent(_ context.Context, cardID *uuid.UUID, date time.Time, kind core.EventKind, note string) (core.BillingEvent, error) {
	event := core.BillingEvent{
		ID:        uuid.New(),
		CardID:    cardID,
		Date:      date,
		Kind:      kind,
		Note:      note,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := event.Validate(); err != nil {
		return core.BillingEvent{}, err
	}
	if cardID != nil {
		if _, ok := l.cards[*cardID]; !ok {
			return core.BillingEvent{}, fmt.Errorf("card %s: %w", *cardID, ledger.ErrNotFound)
		}
	}
	l.events[event.ID] = event
	return event, nil
}

func (l *stubLedger) UpdateEventNote(_ context.Context, id uuid.UUID, note string) (core.BillingEvent, error) {
	event, ok := l.events[id]
	if !ok {
		return core.BillingEvent{}, fmt.Errorf("event %s: %w", id, ledger.ErrNotFound)
	}
	event.Note = note
	event.UpdatedAt = time.Now()
	l.events[id] = event
	return event, nil
}

type stubOffers struct {
	offers []feeds.CardOffer
	err    error
}

func (s stubOffers) Fetch(context.Context) ([]feeds.CardOffer, error) { return s.offers, s.err }

type stubRates struct {
	table feeds.RateTable
	err   error
}

func (s stubRates) Fetch(context.Context, string) (feeds.RateTable, error) { return s.table, s.err }

type stubHolidays struct {
	holidays []feeds.Holiday
	err      error
}

func (s stubHolidays) Fetch(context.Context, string, int) ([]feeds.Holiday, error) {
	return s.holidays, s.err
}

func newTestServer(t *testing.T, l *stubLedger, offers stubOffers, rates stubRates, holidays stubHolidays) *httptest.Server {
	t.Helper()
	s := NewServer(":0", Deps{
		Ledger:       l,
		Insights:     insights.NewService(offers, rates, "USD", nil),
		Calendar:     calendar.NewService(holidays, "US", nil),
		Offers:       offers,
		Rates:        rates,
		Holidays:     holidays,
		BaseCurrency: "USD",
		CountryCode:  "US",
	})
	srv := httptest.NewServer(s.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func validCardBody() map[string]any {
	return map[string]any{
		"name":                "Everyday",
		"issuer":              "North Bank",
		"network":             "Visa",
		"currency_code":       "USD",
		"last4":               "1234",
		"statement_close_day": 10,
		"due_day":             5,
		"billing_window_days": 30,
	}
}

func TestCreateAndGetCard(t *testing.T) {
	srv := newTestServer(t, newStubLedger(), stubOffers{}, stubRates{}, stubHolidays{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cards", validCardBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created core.CardAccount
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Everyday", created.Name)
	assert.NotEqual(t, uuid.Nil, created.ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/cards/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got core.CardAccount
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateCard_ValidationError(t *testing.T) {
	srv := newTestServer(t, newStubLedger(), stubOffers{}, stubRates{}, stubHolidays{})

	body := validCardBody()
	body["last4"] = "12ab"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cards", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCreateCard_PersistenceFailure(t *testing.T) {
	l := newStubLedger()
	l.storeErr = errors.New("disk full")
	srv := newTestServer(t, l, stubOffers{}, stubRates{}, stubHolidays{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cards", validCardBody())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetCard_NotFound(t *testing.T) {
	srv := newTestServer(t, newStubLedger(), stubOffers{}, stubRates{}, stubHolidays{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/cards/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/cards/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateCard(t *testing.T) {
	l := newStubLedger()
	srv := newTestServer(t, l, stubOffers{}, stubRates{}, stubHolidays{})

	card, err := l.AddCard(context.Background(), ledger.CardParams{
		Issuer: "North Bank", CurrencyCode: "USD", Last4: "1234",
		StatementCloseDay: 10, DueDay: 5, BillingWindowDays: 30,
	})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/cards/"+card.ID.String(),
		map[string]any{"name": "Renamed", "due_day": 21})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated core.CardAccount
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 21, updated.DueDay)
	assert.Equal(t, "North Bank", updated.Issuer, "unset fields must be untouched")
}

func TestDeleteCard(t *testing.T) {
	l := newStubLedger()
	srv := newTestServer(t, l, stubOffers{}, stubRates{}, stubHolidays{})

	card, err := l.AddCard(context.Background(), ledger.CardParams{
		Issuer: "North Bank", CurrencyCode: "USD", Last4: "1234",
		StatementCloseDay: 10, DueDay: 5, BillingWindowDays: 30,
	})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/cards/"+card.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/cards/"+card.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateEvent(t *testing.T) {
	srv := newTestServer(t, newStubLedger(), stubOffers{}, stubRates{}, stubHolidays{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/events",
		map[string]any{"date": "2024-07-04", "kind": "custom_note", "note": "banks closed"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var event core.BillingEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&event))
	assert.Nil(t, event.CardID)
	assert.Equal(t, core.CustomNote, event.Kind)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/events",
		map[string]any{"date": "someday", "kind": "custom_note"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/events",
		map[string]any{"date": "2024-07-04", "kind": "bogus"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUpdateEventNote(t *testing.T) {
	l := newStubLedger()
	srv := newTestServer(t, l, stubOffers{}, stubRates{}, stubHolidays{})

	event, err := l.AddEvent(context.Background(), nil,
		time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), core.CustomNote, "old")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/events/"+event.ID.String(),
		map[string]any{"note": "new"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated core.BillingEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "new", updated.Note)
}

func TestInsightsEndpoint(t *testing.T) {
	srv := newTestServer(t, newStubLedger(),
		stubOffers{offers: []feeds.CardOffer{{ID: "o1", Title: "5% on groceries"}}},
		stubRates{table: feeds.RateTable{Base: "USD", Rates: map[string]float64{"EUR": 0.92}}},
		stubHolidays{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/insights", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary insights.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, []string{"1 USD = 0.92 EUR"}, summary.Highlights)
	require.Len(t, summary.Offers, 1)
}

func TestCalendarEndpoint(t *testing.T) {
	srv := newTestServer(t, newStubLedger(), stubOffers{}, stubRates{}, stubHolidays{
		holidays: []feeds.Holiday{{Date: time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC), Name: "Memorial Day"}},
	})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/calendar?year=2024&month=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view calendar.MonthView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, 2024, view.Year)
	require.Len(t, view.Holidays, 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/calendar?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRatesEndpoint_RateLimitedUpstream(t *testing.T) {
	srv := newTestServer(t, newStubLedger(), stubOffers{},
		stubRates{err: feeds.ErrRateLimited}, stubHolidays{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/rates", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestOffersEndpoint_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t, newStubLedger(),
		stubOffers{err: feeds.ErrRequestFailed}, stubRates{}, stubHolidays{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/offers", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, newStubLedger(), stubOffers{}, stubRates{}, stubHolidays{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
