// Package wallet implements the wallet-info API client used by live holding
// sync. When the API omits the native token, EVM chains fall back to reading
// the balance straight from the chain RPC.
package wallet

import "context"

// NativeAddress is the sentinel address the balance list uses for the chain's
// native currency.
const NativeAddress = "native"

// Balance is one holding reported by the wallet-info API.
type Balance struct {
	Symbol               string  `json:"symbol"`
	TokenAddress         string  `json:"tokenAddress"`
	Balance              float64 `json:"balance"`
	ValueUSD             float64 `json:"valueUSD"`
	AveragePurchasePrice float64 `json:"averagePurchasePrice"`
	Decimals             int     `json:"decimals"`
}

// BalanceSource fetches the current holdings of a wallet. The returned list
// includes the native balance, under NativeAddress.
type BalanceSource interface {
	GetWalletBalances(ctx context.Context, address, blockchain string) ([]Balance, error)
}
