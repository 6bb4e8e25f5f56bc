package market

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"capmarket/core/events"
)

type mockReceiver struct {
	addr     common.Address
	ack      [32]byte
	err      error
	onBorrow func(amount, fee *big.Int)
	calls    int
}

func newMockReceiver() *mockReceiver {
	return &mockReceiver{addr: receiverAddr, ack: FlashLoanAck}
}

func (r *mockReceiver) Address() common.Address { return r.addr }

func (r *mockReceiver) OnFlashLoan(_ common.Address, _ common.Address, amount, fee *big.Int, _ []byte) ([32]byte, error) {
	r.calls++
	if r.onBorrow != nil {
		r.onBorrow(amount, fee)
	}
	return r.ack, r.err
}

func setupFlashPool(h *testHarness, cash, feeBips int64) {
	h.state.market.InternalCash = big.NewInt(cash)
	h.state.market.FlashFeeBips = uint64(feeBips)
	h.token.set(marketAddr, cash)
	h.token.set(receiverAddr, 1_000)
}

func TestFlashLoanCollectsFee(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 30) // 0.3%
	receiver := newMockReceiver()

	err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(5_000), nil)
	if err != nil {
		t.Fatalf("flash loan: %v", err)
	}
	if receiver.calls != 1 {
		t.Fatalf("expected one callback, got %d", receiver.calls)
	}
	// fee = 5000 * 30 / 10000 = 15
	if h.state.market.InternalCash.Cmp(big.NewInt(10_015)) != 0 {
		t.Fatalf("internal cash should grow by the fee, got %s", h.state.market.InternalCash)
	}
	if h.state.market.TotalBorrows.Sign() != 0 {
		t.Fatalf("transient debt must be retired, got %s", h.state.market.TotalBorrows)
	}
	if h.emitter.countType(events.TypeMarketFlashLoan) != 1 {
		t.Fatalf("expected one flash loan event")
	}
}

func TestFlashLoanReserveCut(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 100) // 1%
	// Half the fee goes to reserves.
	h.state.market.ReserveFactorMantissa = new(big.Int).Div(expScale, big.NewInt(2))
	receiver := newMockReceiver()

	if err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(2_000), nil); err != nil {
		t.Fatalf("flash loan: %v", err)
	}
	// fee = 20, reserve cut = 10
	if h.state.market.TotalReserves.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected reserve cut 10, got %s", h.state.market.TotalReserves)
	}
	if h.state.market.InternalCash.Cmp(big.NewInt(10_020)) != 0 {
		t.Fatalf("expected internal cash 10020, got %s", h.state.market.InternalCash)
	}
}

func TestFlashLoanTransientDebtVisibleDuringCallback(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 0)
	receiver := newMockReceiver()
	var observedBorrows *big.Int
	receiver.onBorrow = func(*big.Int, *big.Int) {
		observedBorrows = new(big.Int).Set(h.state.market.TotalBorrows)
	}

	if err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(3_000), nil); err != nil {
		t.Fatalf("flash loan: %v", err)
	}
	if observedBorrows == nil || observedBorrows.Cmp(big.NewInt(3_000)) != 0 {
		t.Fatalf("callback should observe the loan as outstanding debt, saw %s", observedBorrows)
	}
	if h.state.market.TotalBorrows.Sign() != 0 {
		t.Fatalf("debt must be retired after repayment, got %s", h.state.market.TotalBorrows)
	}
}

func TestFlashLoanWrongAckUnwinds(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 30)
	receiver := newMockReceiver()
	receiver.ack = [32]byte{0xFF}

	err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(1_000), nil)
	if !errors.Is(err, ErrCallbackRejected) {
		t.Fatalf("expected ErrCallbackRejected, got %v", err)
	}
	if h.state.market.TotalBorrows.Sign() != 0 {
		t.Fatalf("failed loan left transient debt: %s", h.state.market.TotalBorrows)
	}
	if h.state.market.InternalCash.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("failed loan mutated internal cash: %s", h.state.market.InternalCash)
	}
	if h.emitter.countType(events.TypeMarketFlashLoan) != 0 {
		t.Fatalf("failed loan emitted an event")
	}
}

func TestFlashLoanCallbackErrorUnwinds(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 30)
	receiver := newMockReceiver()
	receiver.err = errors.New("strategy reverted")

	err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(1_000), nil)
	if !errors.Is(err, ErrCallbackRejected) {
		t.Fatalf("expected ErrCallbackRejected, got %v", err)
	}
	if h.state.market.TotalBorrows.Sign() != 0 {
		t.Fatalf("failed loan left transient debt")
	}
}

func TestFlashLoanShortRepaymentIsConservationViolation(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 30)
	receiver := newMockReceiver()
	h.token.shortBy = big.NewInt(1)

	err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(1_000), nil)
	if !errors.Is(err, ErrConservationViolation) {
		t.Fatalf("expected ErrConservationViolation, got %v", err)
	}
	if h.state.market.InternalCash.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("violating loan mutated internal cash: %s", h.state.market.InternalCash)
	}
}

func TestFlashLoanReentrancyBlocked(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 0)
	receiver := newMockReceiver()
	var nested error
	receiver.onBorrow = func(*big.Int, *big.Int) {
		nested = h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(1), nil)
	}

	if err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(100), nil); err != nil {
		t.Fatalf("outer loan: %v", err)
	}
	if !errors.Is(nested, ErrReentrancy) {
		t.Fatalf("expected nested loan to hit ErrReentrancy, got %v", nested)
	}
}

func TestFlashLoanBlocksNestedMutations(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 0)
	h.state.market.TotalSupply = big.NewInt(200)
	h.state.setPosition(bobAddr, 200, 0)
	h.token.set(aliceAddr, 1_000)

	// A callback that slips a collateral grant or a mint between the loan's
	// market snapshot and its final write-back would have its market-level
	// effects clobbered while the position write survives. Every mutating
	// entry point shares the loan's guard, so the nested calls must fail.
	receiver := newMockReceiver()
	var nestedRegister, nestedMint, nestedRedeem error
	receiver.onBorrow = func(*big.Int, *big.Int) {
		_, nestedRegister = h.engine.RegisterCollateral(ctrlAddr, bobAddr, big.NewInt(200))
		_, nestedMint = h.engine.Mint(aliceAddr, aliceAddr, big.NewInt(10))
		_, nestedRedeem = h.engine.Redeem(bobAddr, big.NewInt(10), nil)
	}

	if err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(100), nil); err != nil {
		t.Fatalf("flash loan: %v", err)
	}
	if !errors.Is(nestedRegister, ErrReentrancy) {
		t.Fatalf("expected nested collateral grant to hit ErrReentrancy, got %v", nestedRegister)
	}
	if !errors.Is(nestedMint, ErrReentrancy) {
		t.Fatalf("expected nested mint to hit ErrReentrancy, got %v", nestedMint)
	}
	if !errors.Is(nestedRedeem, ErrReentrancy) {
		t.Fatalf("expected nested redeem to hit ErrReentrancy, got %v", nestedRedeem)
	}
	if h.state.positions[bobAddr].CollateralTokens.Sign() != 0 {
		t.Fatalf("nested grant leaked into the position")
	}
	h.state.checkAggregates(t)
}

func TestFlashLoanSweepBlockedDuringCallback(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 0)
	receiver := newMockReceiver()
	var nested error
	receiver.onBorrow = func(*big.Int, *big.Int) {
		nested = h.engine.SweepExcess()
	}

	if err := h.engine.FlashLoan(aliceAddr, receiver, assetAddr, big.NewInt(100), nil); err != nil {
		t.Fatalf("flash loan: %v", err)
	}
	if !errors.Is(nested, ErrReentrancy) {
		t.Fatalf("expected sweep during callback to hit ErrReentrancy, got %v", nested)
	}
}

func TestFlashLoanWrongAsset(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 0)
	err := h.engine.FlashLoan(aliceAddr, newMockReceiver(), bobAddr, big.NewInt(1), nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign asset, got %v", err)
	}
}

func TestFlashLoanZeroAmount(t *testing.T) {
	h := newTestHarness(t)
	err := h.engine.FlashLoan(aliceAddr, newMockReceiver(), assetAddr, big.NewInt(0), nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero amount, got %v", err)
	}
}

func TestFlashLoanInsufficientLiquidity(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 100, 0)
	err := h.engine.FlashLoan(aliceAddr, newMockReceiver(), assetAddr, big.NewInt(101), nil)
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestFlashLoanRejectedByPolicy(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 10_000, 0)
	h.controller.flashErr = errors.New("receiver not allow-listed")
	err := h.engine.FlashLoan(aliceAddr, newMockReceiver(), assetAddr, big.NewInt(1), nil)
	if !errors.Is(err, ErrPolicyRejected) {
		t.Fatalf("expected ErrPolicyRejected, got %v", err)
	}
}

func TestMaxLoanAmountAndFeeQuotes(t *testing.T) {
	h := newTestHarness(t)
	setupFlashPool(h, 7_500, 9)

	max, err := h.engine.MaxLoanAmount(assetAddr)
	if err != nil {
		t.Fatalf("max loan: %v", err)
	}
	if max.Cmp(big.NewInt(7_500)) != 0 {
		t.Fatalf("expected max 7500, got %s", max)
	}
	foreign, err := h.engine.MaxLoanAmount(bobAddr)
	if err != nil {
		t.Fatalf("max loan foreign: %v", err)
	}
	if foreign.Sign() != 0 {
		t.Fatalf("foreign asset max must be zero, got %s", foreign)
	}

	fee, err := h.engine.LoanFee(assetAddr, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("loan fee: %v", err)
	}
	if fee.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("expected fee 9, got %s", fee)
	}
	if _, err := h.engine.LoanFee(bobAddr, big.NewInt(1)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign asset fee quote, got %v", err)
	}
}
