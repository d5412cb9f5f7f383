// Package calendar merges billing events with public holidays into a
// per-month view.
package calendar

import (
	"context"
	"sort"
	"time"

	"cardwise/internal/core"
	"cardwise/internal/feeds"
	"cardwise/internal/log"
)

// HolidayFetcher yields public holidays for a country and year.
type HolidayFetcher interface {
	Fetch(ctx context.Context, country string, year int) ([]feeds.Holiday, error)
}

// MonthView is one calendar month. A holiday feed failure degrades the view
// to events-only; HolidayError carries the message.
type MonthView struct {
	Year         int                 `json:"year"`
	Month        time.Month          `json:"month"`
	Events       []core.BillingEvent `json:"events"`
	Holidays     []feeds.Holiday     `json:"holidays"`
	HolidayError string              `json:"holiday_error,omitempty"`
}

type Service struct {
	holidays HolidayFetcher
	country  string
	logger   *log.Logger
}

func NewService(holidays HolidayFetcher, country string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		holidays: holidays,
		country:  country,
		logger:   logger.WithComponent(log.ComponentCalendar),
	}
}

// Month builds the view for year/month from the given events. Events outside
// the month are dropped; the rest are sorted by date ascending.
func (s *Service) Month(ctx context.Context, events []core.BillingEvent, year int, month time.Month) MonthView {
	view := MonthView{
		Year:   year,
		Month:  month,
		Events: filterEvents(events, year, month),
	}

	holidays, err := s.holidays.Fetch(ctx, s.country, year)
	if err != nil {
		s.logger.ErrorContext(ctx, "Holiday feed unavailable, showing events only",
			log.FieldOperation, log.OpFetch,
			log.FieldCountry, s.country, log.FieldYear, year, log.FieldError, err)
		view.HolidayError = err.Error()
		return view
	}

	for _, h := range holidays {
		if h.Date.Year() == year && h.Date.Month() == month {
			view.Holidays = append(view.Holidays, h)
		}
	}
	sort.Slice(view.Holidays, func(i, j int) bool {
		return view.Holidays[i].Date.Before(view.Holidays[j].Date)
	})
	return view
}

func filterEvents(events []core.BillingEvent, year int, month time.Month) []core.BillingEvent {
	var out []core.BillingEvent
	for _, e := range events {
		if e.Date.Year() == year && e.Date.Month() == month {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
