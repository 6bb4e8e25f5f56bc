package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "capmarket/native/common"
)

// The collateral allocator enforces TotalCollateralTokens <= CollateralCap
// whenever the cap is nonzero, while being maximally generous: each increase
// is satisfied up to the remaining headroom rather than all-or-nothing.

// allocateCollateral grants up to amount of collateral eligibility to the
// position and returns the granted amount, which may be less than requested
// when the cap leaves insufficient headroom. The caller emits the
// collateral-changed notification after its state commits.
func (e *Engine) allocateCollateral(m *Market, pos *Position, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0)
	}
	granted := new(big.Int).Set(amount)
	if m.CollateralCap.Sign() != 0 {
		headroom := new(big.Int).Sub(m.CollateralCap, m.TotalCollateralTokens)
		if headroom.Sign() <= 0 {
			return big.NewInt(0)
		}
		granted = bigMin(granted, headroom)
	}
	m.TotalCollateralTokens = new(big.Int).Add(m.TotalCollateralTokens, granted)
	pos.CollateralTokens = new(big.Int).Add(pos.CollateralTokens, granted)
	return granted
}

// releaseCollateral unconditionally removes amount of collateral eligibility
// from the position. A zero amount is a no-op so no spurious notification or
// external hook fires. Removing more than the account holds is an underflow.
func (e *Engine) releaseCollateral(m *Market, pos *Position, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	updated, err := subChecked(pos.CollateralTokens, amount)
	if err != nil {
		return fmt.Errorf("%w: release exceeds account collateral", ErrBalanceUnderflow)
	}
	total, err := subChecked(m.TotalCollateralTokens, amount)
	if err != nil {
		return fmt.Errorf("%w: release exceeds total collateral", ErrBalanceUnderflow)
	}
	pos.CollateralTokens = updated
	m.TotalCollateralTokens = total
	return nil
}

// collateralPortionOf splits a removal of total shares against the position:
// buffer shares absorb the removal first and the remainder must come out of
// collateral. Returns max(0, total - buffer).
func collateralPortionOf(pos *Position, total *big.Int) *big.Int {
	portion := new(big.Int).Sub(total, pos.buffer())
	if portion.Sign() < 0 {
		return big.NewInt(0)
	}
	return portion
}

// RegisterCollateral grants the account collateral eligibility for up to
// amount of its share balance, clamped to the account's buffer and to the
// market cap's remaining headroom. Restricted to the controller identity.
// Returns the granted amount.
func (e *Engine) RegisterCollateral(caller, account common.Address, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if caller != e.controllerAddress {
		return nil, ErrUnauthorized
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: register amount must be non-negative", ErrInvalidInput)
	}
	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return nil, err
	}
	granted := e.allocateCollateral(m, pos, bigMin(amount, pos.buffer()))
	if granted.Sign() == 0 {
		return granted, nil
	}
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	e.emitCollateralChanged(pos, granted)
	return granted, nil
}

// UnregisterCollateral releases amount of the account's collateral
// eligibility. Restricted to the controller identity.
func (e *Engine) UnregisterCollateral(caller, account common.Address, amount *big.Int) error {
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
	if caller != e.controllerAddress {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: unregister amount must be non-negative", ErrInvalidInput)
	}
	if amount.Sign() == 0 {
		return nil
	}
	m, err := e.loadMarket()
	if err != nil {
		return err
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if err := e.releaseCollateral(m, pos, amount); err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	e.emitCollateralChanged(pos, new(big.Int).Neg(amount))
	return nil
}
