package wallet

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-resty/resty/v2"

	"trading-experiment-lab/internal/chain"
)

// weiPerEther converts wei to whole native units.
var weiPerEther = new(big.Float).SetFloat64(1e18)

// Options configures the wallet-info client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RPCEndpoint is the chain RPC used for the native-balance fallback on
	// EVM chains. Optional; without it the fallback is skipped.
	RPCEndpoint string
	Verbose     bool
}

// Client fetches wallet holdings from the wallet-info API.
type Client struct {
	http        *resty.Client
	rpcEndpoint string
	verbose     bool
}

// Compile-time interface check.
var _ BalanceSource = (*Client)(nil)

// New creates a wallet-info client. Per-call timeout is 30s with 3 retries
// and exponential backoff.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	if opts.APIKey != "" {
		httpClient.SetHeader("X-API-Key", opts.APIKey)
	}

	return &Client{http: httpClient, rpcEndpoint: opts.RPCEndpoint, verbose: opts.Verbose}
}

// GetWalletBalances fetches the holdings of a wallet. If the API response is
// missing the native entry and the chain is EVM, the native balance is read
// from the chain RPC instead.
func (c *Client) GetWalletBalances(ctx context.Context, address, blockchain string) ([]Balance, error) {
	canonical, err := chain.Canonical(blockchain)
	if err != nil {
		return nil, err
	}

	var result []Balance
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetQueryParam("blockchain", canonical).
		SetResult(&result).
		Get("/balances")
	if err != nil {
		return nil, fmt.Errorf("get wallet balances: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get wallet balances: status %d: %s", resp.StatusCode(), resp.String())
	}

	if !hasNative(result) && chain.IsEVM(canonical) && c.rpcEndpoint != "" {
		native, err := c.nativeBalanceFromRPC(ctx, address)
		if err != nil {
			if c.verbose {
				log.Printf("[wallet] native balance fallback failed: %v", err)
			}
		} else {
			result = append(result, native)
		}
	}

	return result, nil
}

func hasNative(balances []Balance) bool {
	for _, b := range balances {
		if b.TokenAddress == NativeAddress {
			return true
		}
	}
	return false
}

// nativeBalanceFromRPC reads the native balance directly from the chain.
func (c *Client) nativeBalanceFromRPC(ctx context.Context, address string) (Balance, error) {
	client, err := ethclient.DialContext(ctx, c.rpcEndpoint)
	if err != nil {
		return Balance{}, fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return Balance{}, fmt.Errorf("balance at: %w", err)
	}

	native, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return Balance{
		Symbol:       "NATIVE",
		TokenAddress: NativeAddress,
		Balance:      native,
		Decimals:     18,
	}, nil
}
