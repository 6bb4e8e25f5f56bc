package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/events"
	nativecommon "capmarket/native/common"
)

// The cash ledger keeps InternalCash equal to the cumulative net of every
// value-in minus value-out processed through its transfer primitives.
// InternalCash is distinct from the externally observable balance, which can
// exceed it when a party sends value directly without going through the
// intake path; SweepExcess reconciles the difference into reserves.

// interpretTransferReturn applies the three-outcome tolerance rule to a raw
// transfer result payload: no payload is success, a 32-byte word is a
// boolean, anything else cannot be interpreted as success.
func interpretTransferReturn(data []byte) error {
	switch {
	case len(data) == 0:
		return nil
	case len(data) == 32:
		for _, b := range data {
			if b != 0 {
				return nil
			}
		}
		return fmt.Errorf("%w: transfer returned false", ErrTransferFailed)
	default:
		return fmt.Errorf("%w: ambiguous %d-byte transfer return", ErrTransferFailed, len(data))
	}
}

// transferIn pulls amount from the payer and credits InternalCash with the
// amount actually received, computed from the pool's balance delta so
// fee-on-transfer assets cannot inflate the books. Returns the actual amount.
func (e *Engine) transferIn(m *Market, from common.Address, amount *big.Int) (*big.Int, error) {
	before, err := e.token.BalanceOf(e.marketAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	ret, err := e.token.TransferFrom(from, e.marketAddress, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := interpretTransferReturn(ret); err != nil {
		return nil, err
	}
	after, err := e.token.BalanceOf(e.marketAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	actual, err := subChecked(after, before)
	if err != nil {
		return nil, fmt.Errorf("%w: pool balance decreased on transfer in", ErrTransferFailed)
	}
	m.InternalCash, err = addChecked(m.InternalCash, actual)
	if err != nil {
		return nil, err
	}
	return actual, nil
}

// transferOut pushes amount to the recipient and debits InternalCash. The
// debit happens only after the adapter reports success, so a failed push
// leaves the books untouched.
func (e *Engine) transferOut(m *Market, to common.Address, amount *big.Int) error {
	updated, err := subChecked(m.InternalCash, amount)
	if err != nil {
		return fmt.Errorf("%w: transfer out exceeds tracked cash", ErrBalanceUnderflow)
	}
	ret, err := e.token.Transfer(to, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := interpretTransferReturn(ret); err != nil {
		return err
	}
	m.InternalCash = updated
	return nil
}

// SweepExcess absorbs any externally observed balance above InternalCash into
// protocol reserves and re-bases InternalCash onto the observed balance, so
// stray donations end up owned by the protocol rather than silently
// claimable. Non-reentrant: it compares the observed balance against internal
// bookkeeping and an interleaved transfer would corrupt the comparison.
func (e *Engine) SweepExcess() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.token == nil {
		return errNilToken
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.exit()

	m, err := e.loadMarket()
	if err != nil {
		return err
	}
	onChain, err := e.token.BalanceOf(e.marketAddress)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	excess, err := subChecked(onChain, m.InternalCash)
	if err != nil {
		return fmt.Errorf("%w: observed balance below internal cash", ErrBalanceUnderflow)
	}
	if excess.Sign() == 0 {
		return nil
	}
	m.TotalReserves, err = addChecked(m.TotalReserves, excess)
	if err != nil {
		return err
	}
	m.InternalCash = onChain
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emit(events.MarketReservesSwept{
		Excess:   excess,
		Reserves: cloneBigInt(m.TotalReserves),
	})
	return nil
}
