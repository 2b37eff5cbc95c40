package flash_test

import (
	"testing"

	"github.com/stmtools/flashgo/flash"
)

func TestErasePage_AllValidPages(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	for p := flash.FlashPage(0); uint32(p) < smallGeometry.NumPages; p++ {
		if err := u.ErasePage(p); err != nil {
			t.Fatalf("Erase of valid page %d failed: %s", p, err)
		}
	}
	if ctl.Erases != int(smallGeometry.NumPages) {
		t.Fatalf("Expected %d erases, got %d", smallGeometry.NumPages, ctl.Erases)
	}
	checkNoViolations(t, ctl)
}

func TestErasePage_OutOfRangeNeverTouchesHardware(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	before := ctl.RegOps
	for _, p := range []flash.FlashPage{flash.FlashPage(smallGeometry.NumPages), 1000} {
		if err := u.ErasePage(p); err != flash.ErrPageOutOfRange {
			t.Fatalf("Page %d: expected out of range error, got %v", p, err)
		}
	}
	if ctl.RegOps != before {
		t.Fatalf("Out of range erase touched hardware (%d register ops)", ctl.RegOps-before)
	}
}

func TestErasePage_ResetsContentToErased(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	if err := u.Write(smallGeometry.Base, []byte{0x00, 0x11, 0x22, 0x33}); err != nil {
		t.Fatalf("Seed write failed: %s", err)
	}
	if err := u.ErasePage(0); err != nil {
		t.Fatalf("Erase failed: %s", err)
	}
	mem := ctl.Memory()
	for i := uint32(0); i < smallGeometry.PageSize; i++ {
		if mem[i] != 0xFF {
			t.Fatalf("Byte %d not erased: %02x", i, mem[i])
		}
	}
}

func TestErasePage_MissingEopIsProtocolError(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	ctl.SuppressEop = true
	if err := u.ErasePage(0); err != flash.ErrEop {
		t.Fatalf("Expected Eop error, got %v", err)
	}
	// page-erase enable must be cleared on this path too
	if ctl.ReadReg(flash.RegCR)&flash.CrPer != 0 {
		t.Fatalf("Page erase enable still set after Eop failure")
	}
}

func TestErasePage_WriteProtectedPage(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	ctl.Protect(2)
	if err := u.Write(smallGeometry.Base, []byte{0xA5}); err != nil {
		t.Fatalf("Seed write failed: %s", err)
	}
	err := u.ErasePage(2)
	if err != flash.ErrEop && err != flash.ErrWriteProtection {
		t.Fatalf("Expected a failure erasing protected page, got %v", err)
	}
	if ctl.Memory()[0] != 0xA5 {
		t.Fatalf("Unrelated page content changed")
	}
}

func TestErasePage_DrainsBusyFirst(t *testing.T) {
	ctl, u := unlockedSim(t, smallGeometry)
	ctl.BusyPolls = 5
	if err := u.ErasePage(1); err != nil {
		t.Fatalf("Erase after busy drain failed: %s", err)
	}
	checkNoViolations(t, ctl)
}
