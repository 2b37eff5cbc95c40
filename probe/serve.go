package probe

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/stmtools/flashgo/flash"
)

// Masker is the monitor-side interrupt control. Implementations that have
// nothing to mask can pass nil to Serve.
type Masker interface {
	DisableInterrupts()
	EnableInterrupts()
}

// Serve answers monitor-protocol requests against dev until the connection
// errors or closes. This is the reference implementation of the target side,
// used in tests to put a simulated controller behind a Probe; a real monitor
// implements the same byte protocol on the MCU.
func Serve(conn io.ReadWriter, dev flash.Device, mask Masker) error {
	op := make([]byte, 1)
	for {
		if _, err := io.ReadFull(conn, op); err != nil {
			if err == io.EOF || err == io.ErrClosedPipe {
				return nil
			}
			return err
		}

		argLen, respLen := frameSizes(op[0])
		if argLen < 0 {
			if _, err := conn.Write([]byte{nak}); err != nil {
				return err
			}
			continue
		}

		// arguments plus the request checksum
		args := make([]byte, argLen+1)
		if _, err := io.ReadFull(conn, args); err != nil {
			return err
		}
		if xorsum(append([]byte{op[0]}, args[:argLen]...)) != args[argLen] {
			if _, err := conn.Write([]byte{nak}); err != nil {
				return err
			}
			continue
		}
		args = args[:argLen]

		resp := make([]byte, respLen)
		switch op[0] {
		case opReadReg:
			binary.LittleEndian.PutUint32(resp, dev.ReadReg(flash.Reg(args[0])))
		case opWriteReg:
			dev.WriteReg(flash.Reg(args[0]), binary.LittleEndian.Uint32(args[1:]))
		case opLoad:
			resp[0] = dev.Load(binary.LittleEndian.Uint32(args))
		case opStore:
			dev.Store(binary.LittleEndian.Uint32(args), binary.LittleEndian.Uint16(args[4:]))
		case opIrqOff:
			if mask != nil {
				mask.DisableInterrupts()
			}
		case opIrqOn:
			if mask != nil {
				mask.EnableInterrupts()
			}
		}

		out := append([]byte{ack}, resp...)
		out = append(out, xorsum(resp))
		if _, err := conn.Write(out); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// frameSizes returns argument and response byte counts for an op, or -1 for
// an unknown op.
func frameSizes(op byte) (argLen, respLen int) {
	switch op {
	case opReadReg:
		return 1, 4
	case opWriteReg:
		return 5, 0
	case opLoad:
		return 4, 1
	case opStore:
		return 6, 0
	case opIrqOff, opIrqOn:
		return 0, 0
	}
	return -1, 0
}
