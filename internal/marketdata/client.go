// Package marketdata implements the batched price API client.
//
// Token ids are formatted "{address}-{suffix}" via the chain registry. The
// API accepts up to 200 ids per call, so larger requests are chunked and the
// responses merged.
package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// maxBatchSize is the API's per-call id limit.
const maxBatchSize = 200

// Quote is the per-token market snapshot returned by the API.
type Quote struct {
	Price        float64 `json:"price"`
	TxVolumeU24h float64 `json:"tx_volume_u_24h"`
	Holders      int     `json:"holders"`
	TVL          float64 `json:"tvl"`
	FDV          float64 `json:"fdv"`
	MarketCap    float64 `json:"market_cap"`
}

// Options configures the market data client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Verbose bool
}

// Client fetches batched token quotes.
type Client struct {
	http    *resty.Client
	verbose bool
}

// New creates a market data client with retry on transport and 5xx errors.
func New(opts Options) *Client {
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
		}).
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		httpClient.SetHeader("X-API-Key", opts.APIKey)
	}

	return &Client{http: httpClient, verbose: opts.Verbose}
}

// GetPrices fetches quotes for the given market ids. Ids with no quote in the
// response are simply absent from the result map; callers treat that as
// "no price this round".
func (c *Client) GetPrices(ctx context.Context, ids []string) (map[string]Quote, error) {
	result := make(map[string]Quote, len(ids))

	for start := 0; start < len(ids); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := c.fetchBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for id, q := range batch {
			result[id] = q
		}
	}

	return result, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []string) (map[string]Quote, error) {
	var result map[string]Quote
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("ids", strings.Join(ids, ",")).
		SetResult(&result).
		Get("/prices")
	if err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get prices: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}
