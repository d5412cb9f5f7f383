// Package feeds holds the read-only JSON integrations: reward offers,
// exchange rates and public holidays. All three share one HTTP client and one
// error taxonomy; a failed fetch is surfaced once, with no retries.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cardwise/internal/log"
)

var (
	ErrInvalidEndpoint = errors.New("invalid feed endpoint")
	ErrRequestFailed   = errors.New("feed request failed")
	ErrRateLimited     = errors.New("feed rate limited")
	ErrDecodeFailed    = errors.New("feed response decode failed")
)

// Client performs the HTTP legwork shared by all feed services.
type Client struct {
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.WithComponent(log.ComponentFeeds),
	}
}

// getJSON fetches rawURL and decodes the body into out. Errors wrap exactly
// one of the package sentinels.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Feed request failed",
			log.FieldOperation, log.OpFetch, log.FieldPath, u.Path, log.FieldError, err)
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, u.Host)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d from %s", ErrRequestFailed, resp.StatusCode, u.Host)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return nil
}
