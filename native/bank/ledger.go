package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/types"
	"capmarket/storage"
)

var (
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	errNilDB             = errors.New("bank: database not configured")
)

const accountPrefix = "bank:account:"

// Ledger is a minimal in-process fungible token ledger: accounts keyed by
// address with big integer balances, persisted through the key-value store.
// Transfers between module-held identities are trusted, so there is no
// allowance machinery.
type Ledger struct {
	db storage.Database
}

func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func accountKey(addr common.Address) []byte {
	return []byte(accountPrefix + addr.Hex())
}

func (l *Ledger) load(addr common.Address) (*types.Account, error) {
	if l == nil || l.db == nil {
		return nil, errNilDB
	}
	raw, err := l.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	acc := &types.Account{}
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, fmt.Errorf("bank: decode account: %w", err)
	}
	acc.EnsureDefaults()
	return acc, nil
}

func (l *Ledger) store(addr common.Address, acc *types.Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("bank: encode account: %w", err)
	}
	return l.db.Put(accountKey(addr), raw)
}

// BalanceOf returns the account's current balance.
func (l *Ledger) BalanceOf(addr common.Address) (*big.Int, error) {
	acc, err := l.load(addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

// Credit mints amount into the account. Used for genesis funding and tests.
func (l *Ledger) Credit(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: credit amount must be non-negative")
	}
	acc, err := l.load(addr)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return l.store(addr, acc)
}

// Move transfers amount between accounts, failing without mutation when the
// source balance is insufficient.
func (l *Ledger) Move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: transfer amount must be non-negative")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromAcc, err := l.load(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toAcc, err := l.load(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := l.store(from, fromAcc); err != nil {
		return err
	}
	return l.store(to, toAcc)
}
