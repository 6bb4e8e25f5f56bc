package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/events"
	nativecommon "capmarket/native/common"
)

const moduleName = "market"

type engineState interface {
	GetMarket() (*Market, error)
	PutMarket(*Market) error
	GetPosition(addr common.Address) (*Position, error)
	PutPosition(*Position) error
}

// Engine owns the market aggregate exclusively: every mutation of the market
// record and of account positions flows through one of its operations, each
// of which commits all of its effects or none of them. The engine assumes a
// single logical thread of control per operation; the boolean guard below is
// shared by every state-changing operation, so a flash-loan callback cannot
// interleave a nested mutation between the loan's market snapshot and its
// final write-back.
type Engine struct {
	state      engineState
	token      TokenAdapter
	controller Controller
	accrual    AccrualSource
	borrows    BorrowLedger
	emitter    events.Emitter
	pauses     nativecommon.PauseView

	marketAddress     common.Address
	underlying        common.Address
	controllerAddress common.Address
	feeRecipient      common.Address
	admin             common.Address
	blockHeight       uint64

	guard reentrancyGuard
}

// reentrancyGuard is a non-reentrant flag owned by the engine. It is released
// on every exit path of the guarded operations.
type reentrancyGuard struct {
	entered bool
}

func (g *reentrancyGuard) enter() error {
	if g.entered {
		return ErrReentrancy
	}
	g.entered = true
	return nil
}

func (g *reentrancyGuard) exit() { g.entered = false }

// NewEngine constructs a market engine for the pool identified by marketAddr,
// denominated in the given underlying asset, with a no-op event emitter.
func NewEngine(marketAddr, underlying, feeRecipient common.Address) *Engine {
	return &Engine{
		marketAddress: marketAddr,
		underlying:    underlying,
		feeRecipient:  feeRecipient,
		emitter:       events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenAdapter configures the transfer adapter for the underlying asset.
func (e *Engine) SetTokenAdapter(token TokenAdapter) { e.token = token }

// SetController wires the risk-policy collaborator along with the identity it
// calls from, which gates the register/unregister collateral entry points.
func (e *Engine) SetController(controller Controller, addr common.Address) {
	e.controller = controller
	e.controllerAddress = addr
}

// SetAccrualSource wires the interest-accrual subsystem.
func (e *Engine) SetAccrualSource(accrual AccrualSource) { e.accrual = accrual }

// SetBorrowLedger wires the base ledger that owns borrow/repay bookkeeping.
func (e *Engine) SetBorrowLedger(borrows BorrowLedger) { e.borrows = borrows }

// SetPauses installs the operator pause switches consulted by every
// state-changing operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAdmin records the identity allowed to adjust market parameters.
func (e *Engine) SetAdmin(admin common.Address) { e.admin = admin }

// SetBlockHeight records the logical time compared against the accrual
// checkpoint when checking for staleness.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// MarketAddress returns the pool's own identity.
func (e *Engine) MarketAddress() common.Address { return e.marketAddress }

// Underlying returns the asset the pool is denominated in.
func (e *Engine) Underlying() common.Address { return e.underlying }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) emitCollateralChanged(pos *Position, delta *big.Int) {
	if delta == nil || delta.Sign() == 0 {
		return
	}
	e.emit(events.MarketCollateralChanged{
		Account:    pos.Address,
		Delta:      new(big.Int).Set(delta),
		Collateral: cloneBigInt(pos.CollateralTokens),
	})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.token == nil {
		return errNilToken
	}
	if e.controller == nil {
		return errNilController
	}
	return nil
}

// requireFresh enforces the "market must be current" precondition: the
// accrual checkpoint must equal the engine's configured block height.
func (e *Engine) requireFresh() error {
	if e.accrual == nil {
		return errNilAccrual
	}
	if e.accrual.AccrualBlock() != e.blockHeight {
		return ErrStaleMarket
	}
	return nil
}

func (e *Engine) loadMarket() (*Market, error) {
	m, err := e.state.GetMarket()
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNilMarket
	}
	m.EnsureDefaults()
	return m, nil
}

func (e *Engine) loadPosition(addr common.Address) (*Position, error) {
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Address: addr}
	}
	pos.EnsureDefaults()
	return pos, nil
}

// positionSet loads each position at most once so operations touching
// aliasing accounts (e.g. a liquidator who is also the fee recipient) mutate
// a single record.
type positionSet struct {
	engine *Engine
	items  map[common.Address]*Position
	order  []common.Address
}

func newPositionSet(e *Engine) *positionSet {
	return &positionSet{engine: e, items: make(map[common.Address]*Position)}
}

func (s *positionSet) get(addr common.Address) (*Position, error) {
	if pos, ok := s.items[addr]; ok {
		return pos, nil
	}
	pos, err := s.engine.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	s.items[addr] = pos
	s.order = append(s.order, addr)
	return pos, nil
}

func (s *positionSet) persist() error {
	for _, addr := range s.order {
		if err := s.engine.state.PutPosition(s.items[addr]); err != nil {
			return err
		}
	}
	return nil
}

// Mint exchanges underlying pulled from payer for pool shares credited to
// beneficiary at the stored exchange rate. The minted share amount is
// returned; it is derived from the actually received amount, which may fall
// short of the request on fee-on-transfer assets.
func (e *Engine) Mint(payer, beneficiary common.Address, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: mint amount must be non-negative", ErrInvalidInput)
	}
	if err := e.controller.MintAllowed(e.marketAddress, payer, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyRejected, err)
	}
	// Zero-amount mints succeed as no-ops, but only after the allow check so
	// policy hooks still observe the attempt.
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.requireFresh(); err != nil {
		return nil, err
	}
	rate, err := e.accrual.ExchangeRateStored()
	if err != nil {
		return nil, err
	}

	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(beneficiary)
	if err != nil {
		return nil, err
	}

	// From here every step must complete: the pull below is the operation's
	// single external interaction and its actual amount feeds the share
	// computation.
	actual, err := e.transferIn(m, payer, amount)
	if err != nil {
		return nil, err
	}
	minted, err := divExpTruncate(actual, rate)
	if err != nil {
		return nil, err
	}

	m.TotalSupply, err = addChecked(m.TotalSupply, minted)
	if err != nil {
		return nil, err
	}
	pos.Tokens, err = addChecked(pos.Tokens, minted)
	if err != nil {
		return nil, err
	}

	granted := big.NewInt(0)
	if e.controller.IsMarketMember(e.marketAddress, beneficiary) {
		granted = e.allocateCollateral(m, pos, minted)
	}

	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	e.emit(events.MarketMint{
		Payer:       payer,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(actual),
		Shares:      new(big.Int).Set(minted),
	})
	e.emitCollateralChanged(pos, granted)
	e.controller.MintVerify(e.marketAddress, beneficiary, actual, minted)

	return minted, nil
}

// Redeem exchanges pool shares held by account back for underlying. Exactly
// one of sharesIn and amountIn may be nonzero; the other is derived from the
// stored exchange rate with floor truncation. Buffer shares are consumed
// before collateral-eligible shares, and only the collateral-affecting
// portion is submitted to the redeem policy gate. The redeemed underlying
// amount is returned.
func (e *Engine) Redeem(account common.Address, sharesIn, amountIn *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.enter(); err != nil {
		return nil, err
	}
	defer e.guard.exit()
	if sharesIn == nil {
		sharesIn = big.NewInt(0)
	}
	if amountIn == nil {
		amountIn = big.NewInt(0)
	}
	if sharesIn.Sign() < 0 || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: redeem inputs must be non-negative", ErrInvalidInput)
	}
	if sharesIn.Sign() != 0 && amountIn.Sign() != 0 {
		return nil, fmt.Errorf("%w: redeem accepts shares or amount, not both", ErrInvalidInput)
	}
	if sharesIn.Sign() == 0 && amountIn.Sign() == 0 {
		return big.NewInt(0), nil
	}

	rate, err := e.exchangeRate()
	if err != nil {
		return nil, err
	}
	var redeemShares, redeemAmount *big.Int
	if sharesIn.Sign() != 0 {
		redeemShares = new(big.Int).Set(sharesIn)
		redeemAmount = mulExpTruncate(sharesIn, rate)
	} else {
		redeemAmount = new(big.Int).Set(amountIn)
		redeemShares, err = divExpTruncate(amountIn, rate)
		if err != nil {
			return nil, err
		}
	}

	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return nil, err
	}

	collateralPortion := collateralPortionOf(pos, redeemShares)
	if err := e.controller.RedeemAllowed(e.marketAddress, account, collateralPortion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyRejected, err)
	}
	if err := e.requireFresh(); err != nil {
		return nil, err
	}
	if m.InternalCash.Cmp(redeemAmount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	pos.Tokens, err = subChecked(pos.Tokens, redeemShares)
	if err != nil {
		return nil, err
	}
	m.TotalSupply, err = subChecked(m.TotalSupply, redeemShares)
	if err != nil {
		return nil, err
	}
	if err := e.releaseCollateral(m, pos, collateralPortion); err != nil {
		return nil, err
	}

	if err := e.transferOut(m, account, redeemAmount); err != nil {
		return nil, err
	}

	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}

	e.emit(events.MarketRedeem{
		Account: account,
		Amount:  new(big.Int).Set(redeemAmount),
		Shares:  new(big.Int).Set(redeemShares),
	})
	e.emitCollateralChanged(pos, new(big.Int).Neg(collateralPortion))
	e.controller.RedeemVerify(e.marketAddress, account, redeemAmount, redeemShares)

	return redeemAmount, nil
}

func (e *Engine) exchangeRate() (*big.Int, error) {
	if e.accrual == nil {
		return nil, errNilAccrual
	}
	return e.accrual.ExchangeRateStored()
}

// MarketSnapshot returns a deep copy of the market record for observers.
func (e *Engine) MarketSnapshot() (*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	m, err := e.loadMarket()
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// PositionSnapshot returns a deep copy of the account's position. Accounts
// that never interacted with the market read as zero balances.
func (e *Engine) PositionSnapshot(addr common.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}
