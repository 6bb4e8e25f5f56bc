package market

import (
	"fmt"
	"math/big"
)

// Exchange rates and the reserve factor are mantissa values scaled by 1e18.
// All conversions truncate toward zero; overflow is a hard failure, never a
// silent wraparound.
var (
	expScale    = big.NewInt(1_000_000_000_000_000_000)
	basisPoints = big.NewInt(10_000)
	maxLedger   = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// mulExpTruncate computes floor(amount * mantissa / 1e18).
func mulExpTruncate(amount, mantissa *big.Int) *big.Int {
	if amount == nil || mantissa == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, mantissa)
	return out.Quo(out, expScale)
}

// divExpTruncate computes floor(amount * 1e18 / mantissa).
func divExpTruncate(amount, mantissa *big.Int) (*big.Int, error) {
	if amount == nil || mantissa == nil || mantissa.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero exchange rate", ErrInvalidInput)
	}
	out := new(big.Int).Mul(amount, expScale)
	return out.Quo(out, mantissa), nil
}

// bipsFee computes floor(amount * bips / 10000).
func bipsFee(amount *big.Int, bips uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || bips == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(bips))
	return fee.Quo(fee, basisPoints)
}

// addChecked returns a+b, failing when the sum leaves the ledger's 256-bit
// range.
func addChecked(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(maxLedger) > 0 {
		return nil, ErrBalanceOverflow
	}
	return sum, nil
}

// subChecked returns a-b, failing when b exceeds a.
func subChecked(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, ErrBalanceUnderflow
	}
	return new(big.Int).Sub(a, b), nil
}

func bigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
