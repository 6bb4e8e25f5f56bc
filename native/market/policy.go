package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OpenPolicy is a permissive reference Controller: every gate passes, every
// account is a member, and liquidation seizures convert repaid amounts into
// shares one-to-one with a configurable protocol cut. Deployments with real
// risk policy replace it; tests and the daemon's default wiring use it.
type OpenPolicy struct {
	// Membership controls whether minted shares receive collateral
	// eligibility automatically.
	Membership bool
	// SeizeFeeBips is the protocol's cut of seized shares quoted to
	// Liquidate, in basis points.
	SeizeFeeBips uint64
}

func (p *OpenPolicy) MintAllowed(common.Address, common.Address, *big.Int) error { return nil }
func (p *OpenPolicy) RedeemAllowed(common.Address, common.Address, *big.Int) error { return nil }
func (p *OpenPolicy) SeizeAllowed(common.Address, common.Address, common.Address, common.Address, *big.Int) error {
	return nil
}
func (p *OpenPolicy) FlashloanAllowed(common.Address, common.Address, *big.Int, []byte) error {
	return nil
}

func (p *OpenPolicy) MintVerify(common.Address, common.Address, *big.Int, *big.Int)   {}
func (p *OpenPolicy) RedeemVerify(common.Address, common.Address, *big.Int, *big.Int) {}
func (p *OpenPolicy) SeizeVerify(common.Address, common.Address, common.Address, common.Address, *big.Int) {
}

func (p *OpenPolicy) IsMarketMember(common.Address, common.Address) bool { return p.Membership }

func (p *OpenPolicy) SeizeQuote(_, _ common.Address, repaidAmount *big.Int) (*big.Int, *big.Int, error) {
	if repaidAmount == nil || repaidAmount.Sign() < 0 {
		return nil, nil, fmt.Errorf("open policy: invalid repaid amount")
	}
	seize := new(big.Int).Set(repaidAmount)
	fee := bipsFee(seize, p.SeizeFeeBips)
	return seize, fee, nil
}
