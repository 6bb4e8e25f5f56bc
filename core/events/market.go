package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/types"
)

const (
	TypeMarketMint                 = "market.mint"
	TypeMarketRedeem               = "market.redeem"
	TypeMarketSeize                = "market.seize"
	TypeMarketCollateralChanged    = "market.collateral_changed"
	TypeMarketFlashLoan            = "market.flash_loan"
	TypeMarketReservesSwept        = "market.reserves_swept"
	TypeMarketCollateralCapUpdated = "market.collateral_cap_updated"
)

// MarketMint is emitted after underlying has been exchanged for pool shares.
type MarketMint struct {
	Payer       common.Address
	Beneficiary common.Address
	Amount      *big.Int
	Shares      *big.Int
}

func (MarketMint) EventType() string { return TypeMarketMint }

func (e MarketMint) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketMint,
		Attributes: map[string]string{
			"payer":       e.Payer.Hex(),
			"beneficiary": e.Beneficiary.Hex(),
			"amount":      formatAmount(e.Amount),
			"shares":      formatAmount(e.Shares),
		},
	}
}

// MarketRedeem is emitted after pool shares have been exchanged back for
// underlying.
type MarketRedeem struct {
	Account common.Address
	Amount  *big.Int
	Shares  *big.Int
}

func (MarketRedeem) EventType() string { return TypeMarketRedeem }

func (e MarketRedeem) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketRedeem,
		Attributes: map[string]string{
			"account": e.Account.Hex(),
			"amount":  formatAmount(e.Amount),
			"shares":  formatAmount(e.Shares),
		},
	}
}

// MarketSeize is emitted when a borrower's shares are redistributed to a
// liquidator and the protocol fee recipient during liquidation settlement.
type MarketSeize struct {
	Caller     common.Address
	Liquidator common.Address
	Borrower   common.Address
	Shares     *big.Int
	FeeShares  *big.Int
}

func (MarketSeize) EventType() string { return TypeMarketSeize }

func (e MarketSeize) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketSeize,
		Attributes: map[string]string{
			"caller":     e.Caller.Hex(),
			"liquidator": e.Liquidator.Hex(),
			"borrower":   e.Borrower.Hex(),
			"shares":     formatAmount(e.Shares),
			"feeShares":  formatAmount(e.FeeShares),
		},
	}
}

// MarketCollateralChanged records the new collateral-eligible share balance of
// a single account after an allocator grant, release, or seizure move.
type MarketCollateralChanged struct {
	Account    common.Address
	Delta      *big.Int
	Collateral *big.Int
}

func (MarketCollateralChanged) EventType() string { return TypeMarketCollateralChanged }

func (e MarketCollateralChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketCollateralChanged,
		Attributes: map[string]string{
			"account":    e.Account.Hex(),
			"delta":      formatAmount(e.Delta),
			"collateral": formatAmount(e.Collateral),
		},
	}
}

// MarketFlashLoan is emitted after a flash loan has been repaid in full.
type MarketFlashLoan struct {
	Initiator common.Address
	Receiver  common.Address
	Amount    *big.Int
	Fee       *big.Int
}

func (MarketFlashLoan) EventType() string { return TypeMarketFlashLoan }

func (e MarketFlashLoan) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketFlashLoan,
		Attributes: map[string]string{
			"initiator": e.Initiator.Hex(),
			"receiver":  e.Receiver.Hex(),
			"amount":    formatAmount(e.Amount),
			"fee":       formatAmount(e.Fee),
		},
	}
}

// MarketReservesSwept records stray externally observed balance absorbed into
// protocol reserves.
type MarketReservesSwept struct {
	Excess   *big.Int
	Reserves *big.Int
}

func (MarketReservesSwept) EventType() string { return TypeMarketReservesSwept }

func (e MarketReservesSwept) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketReservesSwept,
		Attributes: map[string]string{
			"excess":   formatAmount(e.Excess),
			"reserves": formatAmount(e.Reserves),
		},
	}
}

// MarketCollateralCapUpdated is emitted when the admin adjusts the market's
// collateral cap.
type MarketCollateralCapUpdated struct {
	OldCap *big.Int
	NewCap *big.Int
}

func (MarketCollateralCapUpdated) EventType() string { return TypeMarketCollateralCapUpdated }

func (e MarketCollateralCapUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketCollateralCapUpdated,
		Attributes: map[string]string{
			"oldCap": formatAmount(e.OldCap),
			"newCap": formatAmount(e.NewCap),
		},
	}
}
