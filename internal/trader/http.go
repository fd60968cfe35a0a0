package trader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPOptions configures a trader-service client.
type HTTPOptions struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPTrader executes orders through a trader HTTP service. The service signs
// and submits the swap; the response carries the receipt actuals.
type HTTPTrader struct {
	name string
	http *resty.Client
}

// Compile-time interface check.
var _ Trader = (*HTTPTrader)(nil)

// NewHTTPTrader creates a trader-service client. Orders are not retried: a
// timed-out submit may still land on chain, so retry belongs to the caller's
// holding sync, not the transport.
func NewHTTPTrader(opts HTTPOptions) *HTTPTrader {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		httpClient.SetHeader("X-API-Key", opts.APIKey)
	}

	return &HTTPTrader{name: opts.Name, http: httpClient}
}

func (t *HTTPTrader) Name() string { return t.name }

type orderRequest struct {
	TokenAddress      string  `json:"tokenAddress"`
	Amount            float64 `json:"amount"`
	SlippageTolerance float64 `json:"slippageTolerance,omitempty"`
	GasPrice          float64 `json:"gasPrice,omitempty"`
	GasLimit          float64 `json:"gasLimit,omitempty"`
}

type orderResponse struct {
	Success         bool    `json:"success"`
	TxHash          string  `json:"txHash"`
	ActualAmountOut float64 `json:"actualAmountOut"`
	ActualReceived  float64 `json:"actualReceived"`
	GasUsed         float64 `json:"gasUsed"`
	Error           string  `json:"error"`
}

// BuyToken submits a buy order spending nativeAmount.
func (t *HTTPTrader) BuyToken(ctx context.Context, tokenAddress string, nativeAmount float64, opts Options) BuyResult {
	resp, err := t.submit(ctx, "/buy", orderRequest{
		TokenAddress:      tokenAddress,
		Amount:            nativeAmount,
		SlippageTolerance: opts.SlippageTolerance,
		GasPrice:          opts.GasPrice,
		GasLimit:          opts.GasLimit,
	})
	if err != nil {
		return BuyResult{Err: err.Error()}
	}
	return BuyResult{
		Success:         resp.Success,
		TxHash:          resp.TxHash,
		ActualAmountOut: resp.ActualAmountOut,
		GasUsed:         resp.GasUsed,
		Err:             resp.Error,
	}
}

// SellToken submits a sell order for tokenAmount tokens.
func (t *HTTPTrader) SellToken(ctx context.Context, tokenAddress string, tokenAmount float64, opts Options) SellResult {
	resp, err := t.submit(ctx, "/sell", orderRequest{
		TokenAddress:      tokenAddress,
		Amount:            tokenAmount,
		SlippageTolerance: opts.SlippageTolerance,
		GasPrice:          opts.GasPrice,
		GasLimit:          opts.GasLimit,
	})
	if err != nil {
		return SellResult{Err: err.Error()}
	}
	return SellResult{
		Success:        resp.Success,
		TxHash:         resp.TxHash,
		ActualReceived: resp.ActualReceived,
		GasUsed:        resp.GasUsed,
		Err:            resp.Error,
	}
}

func (t *HTTPTrader) submit(ctx context.Context, path string, req orderRequest) (*orderResponse, error) {
	var result orderResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("%s order: %w", t.name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s order: status %d: %s", t.name, resp.StatusCode(), resp.String())
	}
	return &result, nil
}
