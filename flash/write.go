package flash

import "encoding/binary"

// NativeSize is the number of bytes one program operation commits. The
// controller programs half words; the translation in Write is written
// against this constant rather than a literal 2.
const NativeSize = 2

// erasedWord is what a freshly erased native word reads back as. A lane set
// to all-1 bits in a program operation is a no-op on that lane, which is how
// Write pads partial words without disturbing neighbouring bytes.
const erasedWord uint16 = 0xFFFF

// WriteNative programs a run of native words starting at address, which must
// be word aligned. Each store that triggers programming runs with interrupts
// suppressed; the completion wait does not. On the first word that fails the
// whole call aborts and returns that error — earlier words are already
// committed, flash writes are not transactional.
//
// A mid-run failure returns with the program-enable bit still set; the next
// operation clears stale state before it starts.
func (u *Unlocked) WriteNative(address uint32, words []uint16) error {
	for u.dev.ReadReg(RegSR)&SrBusy != 0 {
	}
	u.clearErrors()

	u.setControl(CrPg)

	addr := address
	for _, word := range words {
		w := word
		target := addr
		u.irq.RunExclusive(func() {
			u.dev.Store(target, w)
		})
		addr += NativeSize

		if err := u.wait(); err != nil {
			return err
		}
		if u.dev.ReadReg(RegSR)&SrEop != 0 {
			u.dev.WriteReg(RegSR, SrEop)
		}
	}
	u.clearControl(CrPg)
	return nil
}

// Write programs an arbitrary byte range at an arbitrary address, neither of
// which has to align with the native word size. Bytes inside a padded word
// but outside the requested range are written as all-1 bits, so they keep
// whatever content they had.
//
// The range splits into an unaligned head word, a run of whole little-endian
// words, and a remainder word. Any failure aborts immediately; words already
// programmed stay programmed.
func (u *Unlocked) Write(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	offset := address % NativeSize
	unaligned := (NativeSize - offset) % NativeSize

	if unaligned > 0 {
		// Pack the head bytes into the most-significant lanes, leaving the
		// lanes below the write untouched at all-1.
		head := data[:unaligned]
		word := erasedWord
		for _, b := range head {
			word = word>>8 | uint16(b)<<8
		}
		if err := u.WriteNative(address-offset, []uint16{word}); err != nil {
			return err
		}
		data = data[unaligned:]
	}

	alignedAddress := address
	if unaligned > 0 {
		alignedAddress = address - offset + NativeSize
	}

	for len(data) >= NativeSize {
		word := binary.LittleEndian.Uint16(data)
		if err := u.WriteNative(alignedAddress, []uint16{word}); err != nil {
			return err
		}
		alignedAddress += NativeSize
		data = data[NativeSize:]
	}

	if len(data) > 0 {
		// Remainder goes into the least-significant lanes, all-1 above it.
		word := erasedWord
		for i := len(data) - 1; i >= 0; i-- {
			word = word<<8 | uint16(data[i])
		}
		if err := u.WriteNative(alignedAddress, []uint16{word}); err != nil {
			return err
		}
	}
	return nil
}
