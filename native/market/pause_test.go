package market

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "capmarket/native/common"
)

type stubPauses struct{ paused bool }

func (s stubPauses) IsPaused(string) bool { return s.paused }

func TestPausedModuleRejectsStateChanges(t *testing.T) {
	h := newTestHarness(t)
	h.engine.SetPauses(stubPauses{paused: true})
	h.token.set(aliceAddr, 1_000)

	if _, err := h.engine.Mint(aliceAddr, aliceAddr, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on mint, got %v", err)
	}
	if _, err := h.engine.Redeem(aliceAddr, big.NewInt(1), nil); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on redeem, got %v", err)
	}
	if err := h.engine.Seize(carolAddr, aliceAddr, bobAddr, big.NewInt(1), nil); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on seize, got %v", err)
	}
	if err := h.engine.FlashLoan(aliceAddr, newMockReceiver(), assetAddr, big.NewInt(1), nil); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on flash loan, got %v", err)
	}
	if err := h.engine.SweepExcess(); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on sweep, got %v", err)
	}
	if _, err := h.engine.RegisterCollateral(ctrlAddr, aliceAddr, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on register collateral, got %v", err)
	}
	if err := h.engine.UnregisterCollateral(ctrlAddr, aliceAddr, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on unregister collateral, got %v", err)
	}
	if _, err := h.engine.SetCollateralCap(adminAddr, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on cap update, got %v", err)
	}
	if err := h.engine.SetFlashFeeBips(adminAddr, 1); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on fee update, got %v", err)
	}
	if err := h.engine.SetReserveFactor(adminAddr, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on reserve factor update, got %v", err)
	}
}

func TestUnpausedModuleProceeds(t *testing.T) {
	h := newTestHarness(t)
	h.engine.SetPauses(stubPauses{paused: false})
	h.token.set(aliceAddr, 1_000)

	if _, err := h.engine.Mint(aliceAddr, aliceAddr, big.NewInt(10)); err != nil {
		t.Fatalf("mint with unpaused module: %v", err)
	}
}
