package market

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "capmarket/native/common"
)

var errNilBorrows = errors.New("market engine: borrow ledger not configured")

// Borrow pushes amount of pool cash to the account and records the debt with
// the base borrow ledger, which owns eligibility and interest bookkeeping.
func (e *Engine) Borrow(account common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.borrows == nil {
		return errNilBorrows
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: borrow amount must be positive", ErrInvalidInput)
	}
	if err := e.requireFresh(); err != nil {
		return err
	}
	m, err := e.loadMarket()
	if err != nil {
		return err
	}
	if m.InternalCash.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	if err := e.borrows.RecordBorrow(account, amount); err != nil {
		return err
	}
	m.TotalBorrows, err = addChecked(m.TotalBorrows, amount)
	if err != nil {
		return err
	}
	if err := e.transferOut(m, account, amount); err != nil {
		return err
	}
	return e.state.PutMarket(m)
}

// Repay pulls amount from the payer and retires up to that much of the
// borrower's outstanding debt. The actually repaid principal is returned;
// any surplus pulled beyond the debt stays in pool cash.
func (e *Engine) Repay(payer, borrower common.Address, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.borrows == nil {
		return nil, errNilBorrows
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: repay amount must be positive", ErrInvalidInput)
	}
	if err := e.requireFresh(); err != nil {
		return nil, err
	}
	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	actual, err := e.transferIn(m, payer, amount)
	if err != nil {
		return nil, err
	}
	repaid, err := e.borrows.RecordRepay(borrower, actual)
	if err != nil {
		return nil, err
	}
	m.TotalBorrows, err = subChecked(m.TotalBorrows, repaid)
	if err != nil {
		return nil, fmt.Errorf("%w: repay exceeds total borrows", ErrBalanceUnderflow)
	}
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	return repaid, nil
}

// Liquidate settles a defaulted borrow: the liquidator repays on the
// borrower's behalf in this market's asset, the controller converts the
// repaid amount into collateral-market shares, and the collateral market's
// seizure engine redistributes them. The repaid principal is returned.
func (e *Engine) Liquidate(liquidator, borrower common.Address, repayAmount *big.Int, collateral *Engine) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.borrows == nil {
		return nil, errNilBorrows
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if collateral == nil {
		return nil, fmt.Errorf("%w: collateral market required", ErrInvalidInput)
	}
	if liquidator == borrower {
		return nil, fmt.Errorf("%w: borrower cannot liquidate self", ErrInvalidInput)
	}
	if repayAmount == nil || repayAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: repay amount must be positive", ErrInvalidInput)
	}
	if err := e.requireFresh(); err != nil {
		return nil, err
	}

	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	actual, err := e.transferIn(m, liquidator, repayAmount)
	if err != nil {
		return nil, err
	}
	repaid, err := e.borrows.RecordRepay(borrower, actual)
	if err != nil {
		return nil, err
	}
	m.TotalBorrows, err = subChecked(m.TotalBorrows, repaid)
	if err != nil {
		return nil, fmt.Errorf("%w: repay exceeds total borrows", ErrBalanceUnderflow)
	}
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}

	seizeTokens, feeTokens, err := e.controller.SeizeQuote(e.marketAddress, collateral.MarketAddress(), repaid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyRejected, err)
	}
	if err := collateral.Seize(e.marketAddress, liquidator, borrower, seizeTokens, feeTokens); err != nil {
		return nil, err
	}
	return repaid, nil
}
