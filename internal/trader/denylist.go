package trader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Denylist answers the pre-buy creator check in live mode.
type Denylist interface {
	IsDenylistedWallet(ctx context.Context, address string) (bool, error)
}

// HTTPDenylist queries a denylist service over HTTP.
type HTTPDenylist struct {
	http *resty.Client
}

// Compile-time interface check.
var _ Denylist = (*HTTPDenylist)(nil)

// NewHTTPDenylist creates a denylist client.
func NewHTTPDenylist(baseURL string, timeout time.Duration) *HTTPDenylist {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPDenylist{http: httpClient}
}

// IsDenylistedWallet reports whether the wallet is marked.
func (d *HTTPDenylist) IsDenylistedWallet(ctx context.Context, address string) (bool, error) {
	var result struct {
		Denylisted bool `json:"denylisted"`
	}
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetResult(&result).
		Get("/check")
	if err != nil {
		return false, fmt.Errorf("denylist check: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("denylist check: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Denylisted, nil
}
