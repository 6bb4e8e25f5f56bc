package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/events"
	nativecommon "capmarket/native/common"
)

// Seize redistributes seizeShares of the borrower's pool shares during
// liquidation settlement: the liquidator receives the liquidation bonus
// (seizeShares - feeShares) and the protocol fee recipient receives
// feeShares. The caller is the borrowed-asset market identity; the controller
// gate rejects anyone else. Collateral accounting mirrors raw-balance
// accounting exactly: the borrower's buffer absorbs the seizure first, and
// whatever collateral-backed shares move carry their collateral flag to the
// account that received them.
func (e *Engine) Seize(caller, liquidator, borrower common.Address, seizeShares, feeShares *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if seizeShares == nil {
		seizeShares = big.NewInt(0)
	}
	if feeShares == nil {
		feeShares = big.NewInt(0)
	}
	if seizeShares.Sign() < 0 || feeShares.Sign() < 0 {
		return fmt.Errorf("%w: seize amounts must be non-negative", ErrInvalidInput)
	}
	if err := e.controller.SeizeAllowed(e.marketAddress, caller, liquidator, borrower, seizeShares); err != nil {
		return fmt.Errorf("%w: %v", ErrPolicyRejected, err)
	}
	if seizeShares.Sign() == 0 {
		if feeShares.Sign() != 0 {
			return fmt.Errorf("%w: zero seizure with nonzero fee", ErrInvalidInput)
		}
		return nil
	}
	if borrower == liquidator {
		return fmt.Errorf("%w: borrower cannot liquidate self", ErrInvalidInput)
	}
	if feeShares.Cmp(seizeShares) > 0 {
		return fmt.Errorf("%w: fee exceeds seized shares", ErrInvalidInput)
	}
	if feeShares.Sign() > 0 && e.feeRecipient == (common.Address{}) {
		return fmt.Errorf("%w: fee recipient not configured", ErrInvalidInput)
	}

	bonusShares := new(big.Int).Sub(seizeShares, feeShares)

	set := newPositionSet(e)
	var err error
	borrowerPos, err := set.get(borrower)
	if err != nil {
		return err
	}
	liquidatorPos, err := set.get(liquidator)
	if err != nil {
		return err
	}
	feePos, err := set.get(e.feeRecipient)
	if err != nil {
		return err
	}

	// Split before mutating: the buffer is taken first, the remainder is
	// collateral-backed.
	collateralPortion := collateralPortionOf(borrowerPos, seizeShares)

	borrowerPos.Tokens, err = subChecked(borrowerPos.Tokens, seizeShares)
	if err != nil {
		return fmt.Errorf("%w: seizure exceeds borrower balance", ErrBalanceUnderflow)
	}
	liquidatorPos.Tokens, err = addChecked(liquidatorPos.Tokens, bonusShares)
	if err != nil {
		return err
	}
	feePos.Tokens, err = addChecked(feePos.Tokens, feeShares)
	if err != nil {
		return err
	}

	liquidatorGrant := big.NewInt(0)
	feeGrant := big.NewInt(0)
	if collateralPortion.Sign() > 0 {
		borrowerPos.CollateralTokens, err = subChecked(borrowerPos.CollateralTokens, collateralPortion)
		if err != nil {
			return fmt.Errorf("%w: seizure exceeds borrower collateral", ErrBalanceUnderflow)
		}
		liquidatorGrant = bigMin(collateralPortion, bonusShares)
		liquidatorPos.CollateralTokens = new(big.Int).Add(liquidatorPos.CollateralTokens, liquidatorGrant)
		feeGrant = new(big.Int).Sub(collateralPortion, liquidatorGrant)
		if feeGrant.Sign() > 0 {
			feePos.CollateralTokens = new(big.Int).Add(feePos.CollateralTokens, feeGrant)
		}
		// TotalCollateralTokens is unchanged: the flags moved between
		// accounts without entering or leaving the collateral pool.
	}

	if err := set.persist(); err != nil {
		return err
	}

	e.emitCollateralChanged(borrowerPos, new(big.Int).Neg(collateralPortion))
	e.emitCollateralChanged(liquidatorPos, liquidatorGrant)
	e.emitCollateralChanged(feePos, feeGrant)
	e.emit(events.MarketSeize{
		Caller:     caller,
		Liquidator: liquidator,
		Borrower:   borrower,
		Shares:     new(big.Int).Set(seizeShares),
		FeeShares:  new(big.Int).Set(feeShares),
	})
	e.controller.SeizeVerify(e.marketAddress, caller, liquidator, borrower, seizeShares)

	return nil
}
