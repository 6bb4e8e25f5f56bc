package market

import "math/big"

// StoredAccrual is a trivial AccrualSource holding a fixed exchange rate and
// checkpoint. It serves deployments where interest accrues out of process and
// tests that need deterministic rates; a real interest subsystem replaces it.
type StoredAccrual struct {
	checkpoint   uint64
	rateMantissa *big.Int
}

// NewStoredAccrual constructs an accrual source pinned at the given
// checkpoint and 1e18-scaled exchange rate.
func NewStoredAccrual(checkpoint uint64, rateMantissa *big.Int) *StoredAccrual {
	return &StoredAccrual{
		checkpoint:   checkpoint,
		rateMantissa: cloneBigInt(rateMantissa),
	}
}

func (a *StoredAccrual) AccrualBlock() uint64 { return a.checkpoint }

func (a *StoredAccrual) ExchangeRateStored() (*big.Int, error) {
	return cloneBigInt(a.rateMantissa), nil
}

// AccrueInterest is a no-op for the stored source; the checkpoint only moves
// via Advance.
func (a *StoredAccrual) AccrueInterest() error { return nil }

// Advance moves the checkpoint and optionally replaces the stored rate.
func (a *StoredAccrual) Advance(checkpoint uint64, rateMantissa *big.Int) {
	a.checkpoint = checkpoint
	if rateMantissa != nil {
		a.rateMantissa = new(big.Int).Set(rateMantissa)
	}
}
