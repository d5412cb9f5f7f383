package feeds

import (
	"context"
	"net/url"
	"strings"
	"time"

	"cardwise/internal/cache"
)

// RateTable is one base currency's exchange rates.
type RateTable struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// RatesService fetches exchange rates, cached per base currency.
type RatesService struct {
	client  *Client
	baseURL string
	cache   *cache.LRU[RateTable]
}

func NewRatesService(client *Client, baseURL string, ttl time.Duration) *RatesService {
	return &RatesService{
		client:  client,
		baseURL: baseURL,
		cache:   cache.NewLRU[RateTable](8, ttl),
	}
}

func (s *RatesService) Fetch(ctx context.Context, base string) (RateTable, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if table, ok := s.cache.Get(base); ok {
		return table, nil
	}

	var table RateTable
	if err := s.client.getJSON(ctx, s.rateURL(base), &table); err != nil {
		return RateTable{}, err
	}
	s.cache.Set(base, table)
	return table, nil
}

func (s *RatesService) rateURL(base string) string {
	return s.baseURL + "?base=" + url.QueryEscape(base)
}
