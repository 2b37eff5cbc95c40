package flash_test

import (
	"testing"

	"github.com/stmtools/flashgo/flash"
	"github.com/stmtools/flashgo/sim"
)

func TestUnlock_FailureLeavesLockedUsable(t *testing.T) {
	ctl := sim.New(smallGeometry)
	ctl.FailUnlock = true
	locked := flash.NewLocked(ctl, ctl, flash.WithGeometry(smallGeometry))

	u, err := locked.Unlock()
	if err != flash.ErrFailure {
		t.Fatalf("Expected unlock failure, got %v", err)
	}
	if u != nil {
		t.Fatalf("No unlocked capability should exist after a failed unlock")
	}
	if !ctl.Locked() {
		t.Fatalf("Controller should still be locked")
	}

	// the original locked handle was not consumed; once the hardware starts
	// cooperating, the same handle unlocks
	ctl.FailUnlock = false
	u, err = locked.Unlock()
	if err != nil {
		t.Fatalf("Retry unlock failed: %s", err)
	}
	if ctl.Locked() {
		t.Fatalf("Lock bit should be clear after successful unlock")
	}
	if err := u.ErasePage(0); err != nil {
		t.Fatalf("Erase through fresh capability failed: %s", err)
	}
}

func TestLock_RestoresRawHandleAndLockBit(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	dev := u.Lock()
	if dev != flash.Device(ctl) {
		t.Fatalf("Lock should hand back the raw controller")
	}
	if !ctl.Locked() {
		t.Fatalf("Lock bit should be set after Lock")
	}

	// the handle cycle works repeatedly
	u2, err := flash.NewLocked(dev, ctl, flash.WithGeometry(smallGeometry)).Unlock()
	if err != nil {
		t.Fatalf("Second unlock failed: %s", err)
	}
	if err := u2.ErasePage(1); err != nil {
		t.Fatalf("Erase after relock cycle failed: %s", err)
	}
}

func TestUnlock_DrainsBusyBeforeKeySequence(t *testing.T) {
	ctl := sim.New(smallGeometry)
	ctl.BusyPolls = 4
	_, err := flash.NewLocked(ctl, ctl, flash.WithGeometry(smallGeometry)).Unlock()
	if err != nil {
		t.Fatalf("Unlock with busy controller failed: %s", err)
	}
}

func TestNewLocked_NilDevicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Expected panic on nil device")
		}
	}()
	flash.NewLocked(nil, nil)
}
