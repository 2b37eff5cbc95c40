package flash

// Status decodes the status register into the error taxonomy. Busy wins over
// a pending programming error, which wins over write protection.
func (u *Unlocked) Status() error {
	sr := u.dev.ReadReg(RegSR)
	if sr&SrBusy != 0 {
		return ErrBusy
	}
	if sr&SrPgErr != 0 {
		return ErrProgramming
	}
	if sr&SrWrPrtErr != 0 {
		return ErrWriteProtection
	}
	return nil
}

// clearErrors resets stale error flags (write one to clear) so a previous
// operation's failure cannot be attributed to the next one.
func (u *Unlocked) clearErrors() {
	u.dev.WriteReg(RegSR, SrPgErr|SrWrPrtErr)
}

// wait polls until the busy flag clears, then reports status. There is no
// timeout: if the hardware never clears busy this spins forever; callers that
// need a deadline must impose their own. Polling happens outside any critical
// section so interrupts stay serviceable while waiting.
func (u *Unlocked) wait() error {
	for u.dev.ReadReg(RegSR)&SrBusy != 0 {
	}
	return u.Status()
}
