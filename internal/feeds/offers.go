package feeds

import (
	"context"
	"time"

	"cardwise/internal/cache"
)

// CardOffer is one reward or promotion entry from the offers feed.
type CardOffer struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Issuer      string `json:"issuer"`
	Category    string `json:"category"`
}

const offersCacheKey = "offers"

// OffersService fetches the current reward offers list.
type OffersService struct {
	client *Client
	url    string
	cache  *cache.LRU[[]CardOffer]
}

func NewOffersService(client *Client, url string, ttl time.Duration) *OffersService {
	return &OffersService{
		client: client,
		url:    url,
		cache:  cache.NewLRU[[]CardOffer](1, ttl),
	}
}

func (s *OffersService) Fetch(ctx context.Context) ([]CardOffer, error) {
	if offers, ok := s.cache.Get(offersCacheKey); ok {
		return offers, nil
	}

	var offers []CardOffer
	if err := s.client.getJSON(ctx, s.url, &offers); err != nil {
		return nil, err
	}
	s.cache.Set(offersCacheKey, offers)
	return offers, nil
}
