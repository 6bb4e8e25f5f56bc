package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/events"
	nativecommon "capmarket/native/common"
)

// MaxLoanAmount returns the cash available for a flash loan of the given
// asset: the pool's tracked internal cash for its own underlying, zero for
// anything else.
func (e *Engine) MaxLoanAmount(asset common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if asset != e.underlying {
		return big.NewInt(0), nil
	}
	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(m.InternalCash), nil
}

// LoanFee quotes the flash-loan fee for borrowing amount of the asset.
func (e *Engine) LoanFee(asset common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if asset != e.underlying {
		return nil, fmt.Errorf("%w: unsupported flash loan asset", ErrInvalidInput)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: flash loan amount must be positive", ErrInvalidInput)
	}
	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	return bipsFee(amount, m.FlashFeeBips), nil
}

// FlashLoan lends pool cash to the receiver's callback and requires full
// repayment plus fee before the operation completes. The loan is modeled as
// debt for the duration of the callback; any failure along the way unwinds
// every bookkeeping change so the loan is never observably outstanding after
// the call returns. Non-reentrant for its entire duration.
func (e *Engine) FlashLoan(initiator common.Address, receiver FlashLoanReceiver, asset common.Address, amount *big.Int, data []byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if receiver == nil {
		return fmt.Errorf("%w: nil flash loan receiver", ErrInvalidInput)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: flash loan amount must be positive", ErrInvalidInput)
	}
	if asset != e.underlying {
		return fmt.Errorf("%w: unsupported flash loan asset", ErrInvalidInput)
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	if e.accrual == nil {
		return errNilAccrual
	}
	if err := e.accrual.AccrueInterest(); err != nil {
		return err
	}
	if err := e.controller.FlashloanAllowed(e.marketAddress, receiver.Address(), amount, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPolicyRejected, err)
	}

	m, err := e.loadMarket()
	if err != nil {
		return err
	}
	before := m.Clone()

	cashOnChainBefore, err := e.token.BalanceOf(e.marketAddress)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	cashBefore := cloneBigInt(m.InternalCash)
	if cashBefore.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	fee := bipsFee(amount, m.FlashFeeBips)

	// Raw adapter push: cash accounting for this operation is finalized only
	// after the conservation check below, not inside the transfer.
	ret, err := e.token.Transfer(receiver.Address(), amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := interpretTransferReturn(ret); err != nil {
		return err
	}

	// The loan is outstanding debt until repaid within this operation; the
	// transient record is visible to reentrant readers during the callback.
	m.TotalBorrows, err = addChecked(m.TotalBorrows, amount)
	if err != nil {
		return err
	}
	if err := e.state.PutMarket(m); err != nil {
		return err
	}

	unwind := func(cause error) error {
		if putErr := e.state.PutMarket(before); putErr != nil {
			return fmt.Errorf("unwind flash loan: %v: %w", putErr, cause)
		}
		return cause
	}

	ack, err := receiver.OnFlashLoan(initiator, asset, amount, fee, data)
	if err != nil {
		return unwind(fmt.Errorf("%w: %v", ErrCallbackRejected, err))
	}
	if ack != FlashLoanAck {
		return unwind(ErrCallbackRejected)
	}

	repayment := new(big.Int).Add(amount, fee)
	ret, err = e.token.TransferFrom(receiver.Address(), e.marketAddress, repayment)
	if err != nil {
		return unwind(fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}
	if err := interpretTransferReturn(ret); err != nil {
		return unwind(err)
	}

	cashOnChainAfter, err := e.token.BalanceOf(e.marketAddress)
	if err != nil {
		return unwind(fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}
	expected := new(big.Int).Add(cashOnChainBefore, fee)
	if cashOnChainAfter.Cmp(expected) != 0 {
		return unwind(fmt.Errorf("%w: observed %s, expected %s", ErrConservationViolation, cashOnChainAfter, expected))
	}

	reserveCut := mulExpTruncate(fee, m.ReserveFactorMantissa)
	m.TotalReserves, err = addChecked(m.TotalReserves, reserveCut)
	if err != nil {
		return unwind(err)
	}
	m.InternalCash = new(big.Int).Add(cashBefore, fee)
	m.TotalBorrows = cloneBigInt(before.TotalBorrows)
	if err := e.state.PutMarket(m); err != nil {
		return unwind(err)
	}

	e.emit(events.MarketFlashLoan{
		Initiator: initiator,
		Receiver:  receiver.Address(),
		Amount:    new(big.Int).Set(amount),
		Fee:       fee,
	})
	return nil
}
