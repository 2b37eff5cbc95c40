package probe

// A flash.Device that lives on the other end of a serial line. The target
// runs a tiny debug monitor from RAM; every register access and every memory
// access the driver makes becomes one framed request on the wire. Slow, but
// it means the exact same driver logic programs real hardware.
//
// Frame format, host to monitor: op byte, fixed-size arguments, then an XOR
// checksum of everything before it. Monitor replies with an ack byte, any
// response data, and an XOR checksum of the data. Integers travel little
// endian.

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"

	"github.com/stmtools/flashgo/flash"
)

const (
	opReadReg  = 'r'
	opWriteReg = 'w'
	opLoad     = 'l'
	opStore    = 's'
	opIrqOff   = 'd'
	opIrqOn    = 'e'

	ack = 0x06
	nak = 0x15
)

// DefaultBaud matches the monitor's serial setup.
const DefaultBaud = 115200

// Probe drives the monitor. Device methods cannot return errors, so the
// first transport failure is latched and every later call becomes a no-op;
// check Err after an operation, like the driver's status flags.
type Probe struct {
	conn io.ReadWriter
	err  error

	irqDepth int
}

// New wraps an already-open connection, mostly for tests.
func New(conn io.ReadWriter) *Probe {
	return &Probe{conn: conn}
}

// Open connects to a monitor on the named serial port.
func Open(portName string, baud int) (*Probe, io.Closer, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, nil, fmt.Errorf("open port %s: %w", portName, err)
	}
	log.Printf("Connected to flash monitor on %s at %d baud\n", portName, baud)
	return New(port), port, nil
}

// Err reports the first transport or protocol failure, if any.
func (p *Probe) Err() error {
	return p.err
}

func xorsum(b []byte) byte {
	var s byte
	for _, x := range b {
		s ^= x
	}
	return s
}

// exchange sends one framed request and reads respLen data bytes back.
func (p *Probe) exchange(req []byte, respLen int) []byte {
	if p.err != nil {
		return make([]byte, respLen)
	}
	frame := append(req, xorsum(req))
	if _, err := p.conn.Write(frame); err != nil {
		p.err = fmt.Errorf("write frame: %w", err)
		return make([]byte, respLen)
	}

	head := make([]byte, 1)
	if _, err := io.ReadFull(p.conn, head); err != nil {
		p.err = fmt.Errorf("read ack: %w", err)
		return make([]byte, respLen)
	}
	if head[0] != ack {
		p.err = fmt.Errorf("monitor rejected %q frame (got %#02x)", req[0], head[0])
		return make([]byte, respLen)
	}

	resp := make([]byte, respLen+1)
	if _, err := io.ReadFull(p.conn, resp); err != nil {
		p.err = fmt.Errorf("read response: %w", err)
		return make([]byte, respLen)
	}
	if xorsum(resp[:respLen]) != resp[respLen] {
		p.err = fmt.Errorf("bad checksum on %q response", req[0])
		return make([]byte, respLen)
	}
	return resp[:respLen]
}

func (p *Probe) ReadReg(r flash.Reg) uint32 {
	resp := p.exchange([]byte{opReadReg, byte(r)}, 4)
	return binary.LittleEndian.Uint32(resp)
}

func (p *Probe) WriteReg(r flash.Reg, v uint32) {
	req := make([]byte, 6)
	req[0] = opWriteReg
	req[1] = byte(r)
	binary.LittleEndian.PutUint32(req[2:], v)
	p.exchange(req, 0)
}

func (p *Probe) Load(addr uint32) byte {
	req := make([]byte, 5)
	req[0] = opLoad
	binary.LittleEndian.PutUint32(req[1:], addr)
	resp := p.exchange(req, 1)
	return resp[0]
}

func (p *Probe) Store(addr uint32, word uint16) {
	req := make([]byte, 7)
	req[0] = opStore
	binary.LittleEndian.PutUint32(req[1:], addr)
	binary.LittleEndian.PutUint16(req[5:], word)
	p.exchange(req, 0)
}

// RunExclusive implements flash.Interrupts by masking interrupts on the
// target for the duration of fn. Nested calls only unmask at the outermost
// exit.
func (p *Probe) RunExclusive(fn func()) {
	if p.irqDepth == 0 {
		p.exchange([]byte{opIrqOff}, 0)
	}
	p.irqDepth++
	defer func() {
		p.irqDepth--
		if p.irqDepth == 0 {
			p.exchange([]byte{opIrqOn}, 0)
		}
	}()
	fn()
}
