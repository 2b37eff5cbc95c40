package flash

// ErasePage erases one page back to all-1 bits. The page index is validated
// against the geometry before any hardware access.
//
// The erase-start register sequence runs with interrupts suppressed: an
// instruction fetch from flash (vector table, interrupt handler) while the
// controller is latching the command corrupts the erase or hangs the core.
// The completion wait happens with interrupts enabled again.
func (u *Unlocked) ErasePage(page FlashPage) error {
	if uint32(page) >= u.geo.NumPages {
		return ErrPageOutOfRange
	}

	for u.dev.ReadReg(RegSR)&SrBusy != 0 {
	}
	u.clearErrors()

	u.irq.RunExclusive(func() {
		u.setControl(CrPer)
		u.dev.WriteReg(RegAR, u.geo.PageAddress(page))
		u.setControl(CrStrt)
	})

	result := u.wait()

	// The hardware must report end-of-operation; a missing EOP means the
	// command never terminated the way the protocol requires.
	if u.dev.ReadReg(RegSR)&SrEop == 0 {
		u.clearControl(CrPer)
		return ErrEop
	}
	u.dev.WriteReg(RegSR, SrEop)
	u.clearControl(CrPer)

	return result
}
