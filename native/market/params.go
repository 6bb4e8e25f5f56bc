package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/events"
	nativecommon "capmarket/native/common"
)

// SetCollateralCap adjusts the market's collateral cap. Zero means uncapped.
// Admin-only; lowering the cap below the current collateral total is allowed
// and simply starves future grants. The previous cap is returned.
func (e *Engine) SetCollateralCap(caller common.Address, cap *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if caller != e.admin {
		return nil, ErrUnauthorized
	}
	if cap == nil || cap.Sign() < 0 {
		return nil, fmt.Errorf("%w: collateral cap must be non-negative", ErrInvalidInput)
	}
	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	old := cloneBigInt(m.CollateralCap)
	m.CollateralCap = new(big.Int).Set(cap)
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	e.emit(events.MarketCollateralCapUpdated{
		OldCap: old,
		NewCap: new(big.Int).Set(cap),
	})
	return old, nil
}

// SetFlashFeeBips adjusts the flash-loan fee rate. Admin-only.
func (e *Engine) SetFlashFeeBips(caller common.Address, bips uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if caller != e.admin {
		return ErrUnauthorized
	}
	if bips > 10_000 {
		return fmt.Errorf("%w: flash fee above 100%%", ErrInvalidInput)
	}
	m, err := e.loadMarket()
	if err != nil {
		return err
	}
	m.FlashFeeBips = bips
	return e.state.PutMarket(m)
}

// SetReserveFactor adjusts the 1e18-scaled share of flash-loan fees routed to
// reserves. Admin-only.
func (e *Engine) SetReserveFactor(caller common.Address, mantissa *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if caller != e.admin {
		return ErrUnauthorized
	}
	if mantissa == nil || mantissa.Sign() < 0 || mantissa.Cmp(expScale) > 0 {
		return fmt.Errorf("%w: reserve factor outside [0, 1e18]", ErrInvalidInput)
	}
	m, err := e.loadMarket()
	if err != nil {
		return err
	}
	m.ReserveFactorMantissa = new(big.Int).Set(mantissa)
	return e.state.PutMarket(m)
}
