package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TokenAdapter moves the underlying asset in and out of the pool. Transfer
// calls surface the raw result payload so the cash ledger can tolerate
// non-compliant implementations: an empty payload is success, a 32-byte word
// is a boolean (nonzero = success), and anything else is a hard failure.
type TokenAdapter interface {
	BalanceOf(holder common.Address) (*big.Int, error)
	TransferFrom(from, to common.Address, amount *big.Int) ([]byte, error)
	Transfer(to common.Address, amount *big.Int) ([]byte, error)
}

// Controller is the external risk-policy collaborator. Allow methods return
// nil when the operation may proceed; verify hooks fire after the fact and
// cannot fail the operation.
type Controller interface {
	MintAllowed(market, minter common.Address, amount *big.Int) error
	RedeemAllowed(market, redeemer common.Address, collateralTokens *big.Int) error
	SeizeAllowed(collateralMarket, borrowedMarket, liquidator, borrower common.Address, seizeTokens *big.Int) error
	FlashloanAllowed(market, receiver common.Address, amount *big.Int, data []byte) error

	MintVerify(market, minter common.Address, actualAmount, mintTokens *big.Int)
	RedeemVerify(market, redeemer common.Address, amount, tokens *big.Int)
	SeizeVerify(collateralMarket, borrowedMarket, liquidator, borrower common.Address, seizeTokens *big.Int)

	// IsMarketMember reports whether the account has opted into the market
	// for collateral purposes.
	IsMarketMember(market, account common.Address) bool
	// SeizeQuote converts an actually-repaid borrow amount into the share
	// amounts to seize on the collateral market: total seized shares and the
	// protocol fee cut.
	SeizeQuote(borrowedMarket, collateralMarket common.Address, repaidAmount *big.Int) (seizeTokens, feeTokens *big.Int, err error)
}

// AccrualSource is the excluded interest subsystem. The ledger never
// recomputes interest itself; it only compares the accrual checkpoint against
// the current block height and reads the stored exchange rate.
type AccrualSource interface {
	AccrualBlock() uint64
	ExchangeRateStored() (*big.Int, error)
	AccrueInterest() error
}

// BorrowLedger is the excluded base ledger that owns borrow/repay
// bookkeeping. The market engine moves the cash and delegates the rest.
type BorrowLedger interface {
	RecordBorrow(account common.Address, amount *big.Int) error
	RecordRepay(account common.Address, amount *big.Int) (*big.Int, error)
	BorrowBalance(account common.Address) (*big.Int, error)
}

// FlashLoanReceiver is the flash-loan callback target. OnFlashLoan must
// return FlashLoanAck; any other value, or an error, aborts the loan.
type FlashLoanReceiver interface {
	Address() common.Address
	OnFlashLoan(initiator, asset common.Address, amount, fee *big.Int, data []byte) ([32]byte, error)
}

// FlashLoanAck is the acknowledgement sentinel a receiver callback must
// return for the loan to settle.
var FlashLoanAck = [32]byte(ethcrypto.Keccak256Hash([]byte("FlashLoanReceiver.onFlashLoan")))
