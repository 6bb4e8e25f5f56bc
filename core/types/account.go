package types

import "math/big"

// Account holds the underlying-asset balance tracked by the in-process bank
// ledger. Amounts are denominated in the asset's smallest unit and expressed
// as big integers to match on-chain precision.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// EnsureDefaults populates nil big.Int fields so codec handling is safe.
func (a *Account) EnsureDefaults() {
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
}
