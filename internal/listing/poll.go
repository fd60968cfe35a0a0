package listing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// PollOptions configures the HTTP poll source.
type PollOptions struct {
	BaseURL    string
	Blockchain string // canonical id, filters the listing feed
	Timeout    time.Duration
}

// PollSource harvests listings by polling an HTTP endpoint each round.
type PollSource struct {
	http       *resty.Client
	blockchain string
}

// Compile-time interface check.
var _ Source = (*PollSource)(nil)

// NewPollSource creates an HTTP poll source with retry on 5xx.
func NewPollSource(opts PollOptions) *PollSource {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &PollSource{http: httpClient, blockchain: opts.Blockchain}
}

// Harvest fetches the current listing feed.
func (s *PollSource) Harvest(ctx context.Context) ([]Listing, error) {
	var result []Listing
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("blockchain", s.blockchain).
		SetResult(&result).
		Get("/listings")
	if err != nil {
		return nil, fmt.Errorf("get listings: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get listings: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// Close is a no-op for the poll source.
func (s *PollSource) Close() error {
	return nil
}
