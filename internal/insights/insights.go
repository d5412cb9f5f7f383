// Package insights assembles the dashboard view: per-card cycle projections,
// exchange-rate highlights and the current reward offers.
package insights

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cardwise/internal/core"
	"cardwise/internal/feeds"
	"cardwise/internal/log"
)

// OffersFetcher yields the current reward offers.
type OffersFetcher interface {
	Fetch(ctx context.Context) ([]feeds.CardOffer, error)
}

// RatesFetcher yields exchange rates for a base currency.
type RatesFetcher interface {
	Fetch(ctx context.Context, base string) (feeds.RateTable, error)
}

// CardOutlook pairs a card with its projected cycle dates.
type CardOutlook struct {
	Card                    core.CardAccount `json:"card"`
	NextStatementClose      time.Time        `json:"next_statement_close"`
	DaysUntilStatementClose int              `json:"days_until_statement_close"`
	NextDueDate             time.Time        `json:"next_due_date"`
	DaysUntilDue            int              `json:"days_until_due"`
}

// Summary is the full dashboard payload. Feed failures are reported per feed
// and never block the card outlook or each other.
type Summary struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Cards       []CardOutlook     `json:"cards"`
	Highlights  []string          `json:"fx_highlights"`
	Offers      []feeds.CardOffer `json:"offers"`
	OffersError string            `json:"offers_error,omitempty"`
	RatesError  string            `json:"rates_error,omitempty"`
}

type Service struct {
	offers       OffersFetcher
	rates        RatesFetcher
	baseCurrency string
	now          func() time.Time
	logger       *log.Logger
}

func NewService(offers OffersFetcher, rates RatesFetcher, baseCurrency string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		offers:       offers,
		rates:        rates,
		baseCurrency: baseCurrency,
		now:          time.Now,
		logger:       logger.WithComponent(log.ComponentInsights),
	}
}

// Summary builds the dashboard for the given cards. Offers and rates are
// fetched concurrently; one failing leaves the other's result intact.
func (s *Service) Summary(ctx context.Context, cards []core.CardAccount) Summary {
	now := s.now()
	out := Summary{
		GeneratedAt: now,
		Cards:       Outlook(cards, now),
	}

	var wg sync.WaitGroup
	var offersErr, ratesErr error
	var table feeds.RateTable

	wg.Add(2)
	go func() {
		defer wg.Done()
		out.Offers, offersErr = s.offers.Fetch(ctx)
	}()
	go func() {
		defer wg.Done()
		table, ratesErr = s.rates.Fetch(ctx, s.baseCurrency)
	}()
	wg.Wait()

	if offersErr != nil {
		s.logger.ErrorContext(ctx, "Offers feed unavailable",
			log.FieldOperation, log.OpFetch, log.FieldError, offersErr)
		out.OffersError = offersErr.Error()
	}
	if ratesErr != nil {
		s.logger.ErrorContext(ctx, "Rates feed unavailable",
			log.FieldOperation, log.OpFetch, log.FieldCurrency, s.baseCurrency, log.FieldError, ratesErr)
		out.RatesError = ratesErr.Error()
	} else {
		out.Highlights = Highlights(table)
	}
	return out
}

// Outlook projects each card's next statement close and due date, sorted by
// days until statement close, furthest out first.
func Outlook(cards []core.CardAccount, ref time.Time) []CardOutlook {
	out := make([]CardOutlook, 0, len(cards))
	for _, card := range cards {
		out = append(out, CardOutlook{
			Card:                    card,
			NextStatementClose:      card.NextStatementClose(ref),
			DaysUntilStatementClose: card.DaysUntilStatementClose(ref),
			NextDueDate:             card.NextDueDate(ref),
			DaysUntilDue:            card.DaysUntilDue(ref),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysUntilStatementClose > out[j].DaysUntilStatementClose
	})
	return out
}

// Highlights renders up to three exchange-rate lines from the table, ordered
// by currency code.
func Highlights(table feeds.RateTable) []string {
	codes := make([]string, 0, len(table.Rates))
	for code := range table.Rates {
		if code == table.Base {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	if len(codes) > 3 {
		codes = codes[:3]
	}

	highlights := make([]string, 0, len(codes))
	for _, code := range codes {
		highlights = append(highlights,
			fmt.Sprintf("1 %s = %.2f %s", table.Base, table.Rates[code], code))
	}
	return highlights
}
