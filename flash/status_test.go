package flash_test

import (
	"errors"
	"testing"

	"github.com/stmtools/flashgo/flash"
)

func TestStatus_PriorityDecode(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)

	// busy wins over a pending programming error
	ctl.InjectFlags(flash.SrPgErr)
	ctl.BusyPolls = 1
	if err := u.Status(); err != flash.ErrBusy {
		t.Fatalf("Expected busy to win, got %v", err)
	}

	// programming error wins over write protection
	ctl.InjectFlags(flash.SrWrPrtErr)
	if err := u.Status(); err != flash.ErrProgramming {
		t.Fatalf("Expected programming error to win, got %v", err)
	}

	// clear the programming error, write protection remains
	ctl.WriteReg(flash.RegSR, flash.SrPgErr)
	if err := u.Status(); err != flash.ErrWriteProtection {
		t.Fatalf("Expected write protection error, got %v", err)
	}

	ctl.WriteReg(flash.RegSR, flash.SrWrPrtErr)
	if err := u.Status(); err != nil {
		t.Fatalf("Expected clean status, got %v", err)
	}
}

func TestStatus_StaleErrorsClearedBeforeOperations(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	ctl.InjectFlags(flash.SrPgErr | flash.SrWrPrtErr)
	if err := u.ErasePage(0); err != nil {
		t.Fatalf("Stale flags misattributed to a fresh erase: %s", err)
	}
	if err := u.WriteNative(smallGeometry.Base, []uint16{0x0042}); err != nil {
		t.Fatalf("Stale flags misattributed to a fresh write: %s", err)
	}
}

func TestErrors_AreComparable(t *testing.T) {
	var err error = flash.ErrPageOutOfRange
	if !errors.Is(err, flash.ErrPageOutOfRange) {
		t.Fatalf("errors.Is should match the taxonomy value")
	}
	if errors.Is(err, flash.ErrBusy) {
		t.Fatalf("Distinct taxonomy values should not match")
	}
	for _, e := range []flash.Error{
		flash.ErrBusy, flash.ErrProgramming, flash.ErrEcc, flash.ErrPageOutOfRange,
		flash.ErrFailure, flash.ErrEop, flash.ErrWriteProtection,
	} {
		if e.Error() == "" || e.Error() == "unknown flash error" {
			t.Fatalf("Taxonomy value %d has no message", e)
		}
	}
}
