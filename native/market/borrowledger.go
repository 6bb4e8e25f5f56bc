package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PrincipalLedger is a reference BorrowLedger tracking raw principal per
// account with no interest accrual. The real base ledger owns eligibility and
// index math; this exists so borrow, repay and liquidation wiring is
// exercisable end to end.
type PrincipalLedger struct {
	debts map[common.Address]*big.Int
}

func NewPrincipalLedger() *PrincipalLedger {
	return &PrincipalLedger{debts: make(map[common.Address]*big.Int)}
}

func (l *PrincipalLedger) RecordBorrow(account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidInput
	}
	current, ok := l.debts[account]
	if !ok {
		current = big.NewInt(0)
	}
	l.debts[account] = new(big.Int).Add(current, amount)
	return nil
}

// RecordRepay retires up to amount of the account's debt and returns the
// principal actually repaid.
func (l *PrincipalLedger) RecordRepay(account common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidInput
	}
	current, ok := l.debts[account]
	if !ok || current.Sign() == 0 {
		return big.NewInt(0), nil
	}
	repaid := bigMin(amount, current)
	l.debts[account] = new(big.Int).Sub(current, repaid)
	return repaid, nil
}

func (l *PrincipalLedger) BorrowBalance(account common.Address) (*big.Int, error) {
	current, ok := l.debts[account]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}
