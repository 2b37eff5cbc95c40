package flash

// Error is the closed set of things the flash controller can report. Values
// are comparable, so callers can use errors.Is against the Err* constants.
type Error uint8

const (
	// ErrBusy means the controller was still completing a prior operation.
	// Callers may poll and retry.
	ErrBusy Error = iota + 1
	// ErrProgramming means the hardware rejected a program attempt, usually
	// because the target was not in the erased state.
	ErrProgramming
	// ErrEcc is a detected-but-uncorrectable read error. Not raised by the
	// reference controller; kept for hardware variants that report it.
	ErrEcc
	// ErrPageOutOfRange means the page index exceeds the device geometry.
	// Rejected locally, never reaches hardware.
	ErrPageOutOfRange
	// ErrFailure is a generic command failure, e.g. the unlock key sequence
	// did not clear the lock bit.
	ErrFailure
	// ErrEop means the end-of-operation flag never appeared after a wait,
	// a sequencing anomaly rather than a data error.
	ErrEop
	// ErrWriteProtection means the target address is write protected.
	ErrWriteProtection
)

func (e Error) Error() string {
	switch e {
	case ErrBusy:
		return "flash controller busy"
	case ErrProgramming:
		return "programming error (target not erased?)"
	case ErrEcc:
		return "uncorrectable ecc error"
	case ErrPageOutOfRange:
		return "page index out of range"
	case ErrFailure:
		return "flash command failed"
	case ErrEop:
		return "end of operation flag missing"
	case ErrWriteProtection:
		return "target address is write protected"
	}
	return "unknown flash error"
}
