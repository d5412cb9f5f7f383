package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cardwise/internal/cache"
)

// Holiday is one public holiday from the holidays feed.
type Holiday struct {
	Date      time.Time `json:"date"`
	LocalName string    `json:"localName"`
	Name      string    `json:"name"`
}

// The feed sends dates as plain YYYY-MM-DD strings.
func (h *Holiday) UnmarshalJSON(b []byte) error {
	var raw struct {
		Date      string `json:"date"`
		LocalName string `json:"localName"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	date, err := time.Parse("2006-01-02", raw.Date)
	if err != nil {
		return fmt.Errorf("holiday date %q: %w", raw.Date, err)
	}
	h.Date = date
	h.LocalName = raw.LocalName
	h.Name = raw.Name
	return nil
}

// HolidaysService fetches public holidays, cached per country and year.
type HolidaysService struct {
	client  *Client
	baseURL string
	cache   *cache.LRU[[]Holiday]
}

func NewHolidaysService(client *Client, baseURL string, ttl time.Duration) *HolidaysService {
	return &HolidaysService{
		client:  client,
		baseURL: baseURL,
		cache:   cache.NewLRU[[]Holiday](16, ttl),
	}
}

func (s *HolidaysService) Fetch(ctx context.Context, country string, year int) ([]Holiday, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	key := fmt.Sprintf("%s-%d", country, year)
	if holidays, ok := s.cache.Get(key); ok {
		return holidays, nil
	}

	var holidays []Holiday
	url := fmt.Sprintf("%s/%d/%s", s.baseURL, year, country)
	if err := s.client.getJSON(ctx, url, &holidays); err != nil {
		return nil, err
	}
	s.cache.Set(key, holidays)
	return holidays, nil
}
