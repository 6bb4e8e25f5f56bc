package market

import "errors"

// Failure kinds surfaced by the ledger. Callers that need the authoritative
// reason must match with errors.Is rather than inspecting a boolean outcome.
var (
	// ErrPolicyRejected signals that the controller gate declined the
	// operation.
	ErrPolicyRejected = errors.New("market engine: rejected by controller")
	// ErrStaleMarket signals that the accrual checkpoint lags the current
	// block height; the caller must accrue interest first.
	ErrStaleMarket = errors.New("market engine: accrual checkpoint stale")
	// ErrInsufficientLiquidity signals that the requested cash exceeds the
	// pool's tracked available cash.
	ErrInsufficientLiquidity = errors.New("market engine: insufficient liquidity")
	// ErrInvalidInput signals conflicting or nonsensical request parameters.
	ErrInvalidInput = errors.New("market engine: invalid input")
	// ErrTransferFailed signals that the token adapter reported failure or
	// returned a payload that cannot be interpreted as success.
	ErrTransferFailed = errors.New("market engine: token transfer failed")
	// ErrBalanceUnderflow signals an arithmetic precondition violation, e.g.
	// seizing more shares than a borrower owns. Integration fault, not a
	// recoverable condition.
	ErrBalanceUnderflow = errors.New("market engine: balance underflow")
	// ErrBalanceOverflow signals that a ledger quantity left its representable
	// range.
	ErrBalanceOverflow = errors.New("market engine: balance overflow")
	// ErrCallbackRejected signals that a flash-loan receiver did not return
	// the expected acknowledgement.
	ErrCallbackRejected = errors.New("market engine: flash loan callback rejected")
	// ErrConservationViolation signals that post-flash-loan cash
	// reconciliation did not match the expected fee-only delta.
	ErrConservationViolation = errors.New("market engine: cash conservation violated")
	// ErrReentrancy signals a nested call into a non-reentrant operation.
	ErrReentrancy = errors.New("market engine: reentrant call")
	// ErrUnauthorized signals a restricted entry point invoked by a caller
	// other than its designated identity.
	ErrUnauthorized = errors.New("market engine: unauthorized caller")
)

var (
	errNilState      = errors.New("market engine: state not configured")
	errNilMarket     = errors.New("market engine: market not initialised")
	errNilToken      = errors.New("market engine: token adapter not configured")
	errNilController = errors.New("market engine: controller not configured")
	errNilAccrual    = errors.New("market engine: accrual source not configured")
)
