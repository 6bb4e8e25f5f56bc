package bank

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Adapter exposes the ledger through the market's transfer-adapter contract,
// bound to the pool identity whose cash it moves. It is a compliant
// implementation: every transfer reports success as a 32-byte true word.
type Adapter struct {
	ledger *Ledger
	owner  common.Address
}

func NewAdapter(ledger *Ledger, owner common.Address) *Adapter {
	return &Adapter{ledger: ledger, owner: owner}
}

func trueWord() []byte {
	word := make([]byte, 32)
	word[31] = 1
	return word
}

func (a *Adapter) BalanceOf(holder common.Address) (*big.Int, error) {
	return a.ledger.BalanceOf(holder)
}

func (a *Adapter) Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	if err := a.ledger.Move(a.owner, to, amount); err != nil {
		return nil, err
	}
	return trueWord(), nil
}

func (a *Adapter) TransferFrom(from, to common.Address, amount *big.Int) ([]byte, error) {
	if err := a.ledger.Move(from, to, amount); err != nil {
		return nil, err
	}
	return trueWord(), nil
}
