package sim

// Simulated flash controller. Close enough to the real register block that
// the driver cannot tell the difference: write-one-to-clear status flags, the
// two-word key unlock sequence, page erase to all-1 bits, and programming
// that can only flip bits 1->0 (a store ANDs into what is already there).
//
// The controller also plays the part of the interrupt-masking service and
// keeps score: command starts and program stores that happen outside a
// RunExclusive window are recorded as violations so tests can assert the
// driver keeps its critical sections tight.

import (
	"fmt"

	"github.com/stmtools/flashgo/flash"
)

type Controller struct {
	geo flash.Geometry
	mem []byte

	sr uint32
	cr uint32
	ar uint32

	// key sequence progress: 0 = nothing, 1 = Key1 seen
	keyStage int

	protected map[flash.FlashPage]bool

	// BusyPolls makes the next n status reads report busy, for exercising
	// the driver's polling paths.
	BusyPolls int

	// FailUnlock keeps the lock bit set no matter what gets written to the
	// key register.
	FailUnlock bool

	// StrictProgram rejects programming of a word that is not fully erased,
	// like parts that raise PGERR instead of silently ANDing.
	StrictProgram bool

	// SuppressEop stops the controller from raising end-of-operation, to
	// provoke the driver's protocol check.
	SuppressEop bool

	// RegOps counts every register access, so tests can prove an operation
	// never touched the hardware.
	RegOps int

	// Erases and Stores count completed page erases and word programs.
	Erases int
	Stores int

	// Violations lists command sequencing done outside a critical section
	// or otherwise out of protocol.
	Violations []string

	critDepth int
}

// New returns a locked controller over a fully erased flash array.
func New(geo flash.Geometry) *Controller {
	mem := make([]byte, geo.Size())
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Controller{
		geo:       geo,
		mem:       mem,
		cr:        flash.CrLock,
		protected: make(map[flash.FlashPage]bool),
	}
}

// Geometry returns the layout the controller was built with.
func (c *Controller) Geometry() flash.Geometry { return c.geo }

// Memory exposes the backing flash image. Mutating it mutates the flash.
func (c *Controller) Memory() []byte { return c.mem }

// Protect marks a page write protected: erases and programs targeting it
// raise the write protection flag and change nothing.
func (c *Controller) Protect(page flash.FlashPage) {
	c.protected[page] = true
}

// InjectFlags raises status flags directly, for status decode tests.
func (c *Controller) InjectFlags(mask uint32) {
	c.sr |= mask
}

// Locked reports the state of the lock bit.
func (c *Controller) Locked() bool { return c.cr&flash.CrLock != 0 }

func (c *Controller) ReadReg(r flash.Reg) uint32 {
	c.RegOps++
	switch r {
	case flash.RegSR:
		if c.BusyPolls > 0 {
			c.BusyPolls--
			return c.sr | flash.SrBusy
		}
		return c.sr
	case flash.RegCR:
		return c.cr
	case flash.RegAR:
		return c.ar
	}
	return 0
}

func (c *Controller) WriteReg(r flash.Reg, v uint32) {
	c.RegOps++
	switch r {
	case flash.RegSR:
		// write one to clear
		c.sr &^= v & (flash.SrEop | flash.SrPgErr | flash.SrWrPrtErr)
	case flash.RegAR:
		c.ar = v
	case flash.RegKEYR:
		c.writeKey(v)
	case flash.RegCR:
		c.writeControl(v)
	}
}

func (c *Controller) writeKey(v uint32) {
	switch {
	case c.keyStage == 0 && v == flash.Key1:
		c.keyStage = 1
	case c.keyStage == 1 && v == flash.Key2:
		c.keyStage = 0
		if !c.FailUnlock {
			c.cr &^= flash.CrLock
		}
	default:
		// a real part would lock up until reset; just drop the progress
		c.keyStage = 0
	}
}

func (c *Controller) writeControl(v uint32) {
	start := v&flash.CrStrt != 0 && c.cr&flash.CrStrt == 0
	c.cr = v &^ flash.CrStrt // STRT reads back as 0, it is a trigger
	if v&flash.CrLock != 0 {
		c.keyStage = 0
	}
	if start {
		if c.critDepth == 0 {
			c.violate("erase started outside a critical section")
		}
		if c.cr&flash.CrPer == 0 {
			c.violate("start bit set without page-erase enable")
			return
		}
		c.erase()
	}
}

func (c *Controller) erase() {
	if c.ar < c.geo.Base || c.ar >= c.geo.Base+c.geo.Size() {
		c.violate(fmt.Sprintf("erase address %#x outside flash", c.ar))
		return
	}
	page := flash.FlashPage((c.ar - c.geo.Base) / c.geo.PageSize)
	if c.protected[page] {
		c.sr |= flash.SrWrPrtErr
		return
	}
	start := uint32(page) * c.geo.PageSize
	for i := start; i < start+c.geo.PageSize; i++ {
		c.mem[i] = 0xFF
	}
	c.Erases++
	if !c.SuppressEop {
		c.sr |= flash.SrEop
	}
}

func (c *Controller) Load(addr uint32) byte {
	if addr < c.geo.Base || addr >= c.geo.Base+c.geo.Size() {
		c.violate(fmt.Sprintf("load from %#x outside flash", addr))
		return 0xFF
	}
	return c.mem[addr-c.geo.Base]
}

func (c *Controller) Store(addr uint32, word uint16) {
	if c.critDepth == 0 {
		c.violate(fmt.Sprintf("program store at %#x outside a critical section", addr))
	}
	if c.cr&flash.CrPg == 0 {
		c.violate(fmt.Sprintf("store at %#x without program enable", addr))
		return
	}
	if addr%flash.NativeSize != 0 {
		c.violate(fmt.Sprintf("unaligned program store at %#x", addr))
		return
	}
	if addr < c.geo.Base || addr+flash.NativeSize > c.geo.Base+c.geo.Size() {
		c.violate(fmt.Sprintf("store at %#x outside flash", addr))
		return
	}

	page := flash.FlashPage((addr - c.geo.Base) / c.geo.PageSize)
	if c.protected[page] {
		c.sr |= flash.SrWrPrtErr
		return
	}

	off := addr - c.geo.Base
	if c.StrictProgram && (c.mem[off] != 0xFF || c.mem[off+1] != 0xFF) {
		c.sr |= flash.SrPgErr
		return
	}

	// programming can only clear bits
	c.mem[off] &= byte(word)
	c.mem[off+1] &= byte(word >> 8)
	c.Stores++
	if !c.SuppressEop {
		c.sr |= flash.SrEop
	}
}

// RunExclusive implements flash.Interrupts. The simulator has no interrupts
// to mask; it only tracks the window so sequencing can be checked.
func (c *Controller) RunExclusive(fn func()) {
	c.critDepth++
	fn()
	c.critDepth--
}

// DisableInterrupts and EnableInterrupts are the monitor-side masking hooks,
// so a controller can sit behind probe.Serve and still account critical
// sections correctly.
func (c *Controller) DisableInterrupts() { c.critDepth++ }

func (c *Controller) EnableInterrupts() {
	if c.critDepth > 0 {
		c.critDepth--
	}
}

func (c *Controller) violate(msg string) {
	c.Violations = append(c.Violations, msg)
}
