package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Market captures the global accounting state for the lending pool. Amount
// values are denominated in the asset's smallest unit; InternalCash is the
// pool's self-tracked liquid balance and stays authoritative even when the
// externally observable balance drifts above it through direct donations.
type Market struct {
	// TotalSupply is the total pool shares outstanding.
	TotalSupply *big.Int
	// TotalCollateralTokens is the subset of TotalSupply currently flagged
	// collateral-eligible across all accounts.
	TotalCollateralTokens *big.Int
	// TotalBorrows tracks the outstanding borrowed underlying.
	TotalBorrows *big.Int
	// TotalReserves accumulates protocol reserves, including swept excess
	// balance and the reserve share of flash-loan fees.
	TotalReserves *big.Int
	// InternalCash is the cumulative net of value-in minus value-out
	// processed through the cash ledger's transfer primitives.
	InternalCash *big.Int
	// CollateralCap bounds TotalCollateralTokens; zero means uncapped.
	CollateralCap *big.Int
	// FlashFeeBips is the flash-loan fee rate in basis points.
	FlashFeeBips uint64
	// ReserveFactorMantissa is the 1e18-scaled fraction of flash-loan fees
	// routed to reserves.
	ReserveFactorMantissa *big.Int
}

// Clone returns a deep copy of the market record.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	return &Market{
		TotalSupply:           cloneBigInt(m.TotalSupply),
		TotalCollateralTokens: cloneBigInt(m.TotalCollateralTokens),
		TotalBorrows:          cloneBigInt(m.TotalBorrows),
		TotalReserves:         cloneBigInt(m.TotalReserves),
		InternalCash:          cloneBigInt(m.InternalCash),
		CollateralCap:         cloneBigInt(m.CollateralCap),
		FlashFeeBips:          m.FlashFeeBips,
		ReserveFactorMantissa: cloneBigInt(m.ReserveFactorMantissa),
	}
}

// EnsureDefaults populates nil big.Int fields so codec handling is safe.
func (m *Market) EnsureDefaults() {
	if m.TotalSupply == nil {
		m.TotalSupply = big.NewInt(0)
	}
	if m.TotalCollateralTokens == nil {
		m.TotalCollateralTokens = big.NewInt(0)
	}
	if m.TotalBorrows == nil {
		m.TotalBorrows = big.NewInt(0)
	}
	if m.TotalReserves == nil {
		m.TotalReserves = big.NewInt(0)
	}
	if m.InternalCash == nil {
		m.InternalCash = big.NewInt(0)
	}
	if m.CollateralCap == nil {
		m.CollateralCap = big.NewInt(0)
	}
	if m.ReserveFactorMantissa == nil {
		m.ReserveFactorMantissa = big.NewInt(0)
	}
}

// Position maintains the share balances for an individual participant.
// Records are created lazily on first mint and never destroyed; balances may
// decay to zero but the record persists.
type Position struct {
	// Address is the unique account identifier.
	Address common.Address
	// Tokens is the account's raw share balance.
	Tokens *big.Int
	// CollateralTokens is the subset of Tokens currently eligible as
	// collateral. Invariant: 0 <= CollateralTokens <= Tokens.
	CollateralTokens *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Address:          p.Address,
		Tokens:           cloneBigInt(p.Tokens),
		CollateralTokens: cloneBigInt(p.CollateralTokens),
	}
}

// EnsureDefaults populates nil big.Int fields so codec handling is safe.
func (p *Position) EnsureDefaults() {
	if p.Tokens == nil {
		p.Tokens = big.NewInt(0)
	}
	if p.CollateralTokens == nil {
		p.CollateralTokens = big.NewInt(0)
	}
}

// buffer returns the account's shares not currently flagged
// collateral-eligible. Buffer shares may be removed without touching cap
// accounting.
func (p *Position) buffer() *big.Int {
	return new(big.Int).Sub(p.Tokens, p.CollateralTokens)
}
