package flash

// Driver for the in-circuit-programmable flash of small STM32F0-class
// microcontrollers. The controller registers are reached through the Device
// interface so the same driver runs against real hardware (see the probe
// package) or a simulated controller (see the sim package).
//
// Flash can only flip bits 1->0 when programming; erasing a page sets the
// whole page back to all-1 bits. Erase and program commands are only
// reachable through an Unlocked handle, obtained from Locked.Unlock().

// Reference geometry (STM32F030x8, 64K parts go up to 64 pages).
const (
	FlashStart uint32 = 0x0800_0000
	PageSize   uint32 = 1024
	NumPages   uint32 = 32
)

// Hardware unlock key sequence, written to the key register in order.
const (
	Key1 uint32 = 0x4567_0123
	Key2 uint32 = 0xCDEF_89AB
)

// Reg identifies one controller register.
type Reg uint8

const (
	RegSR   Reg = iota // status register
	RegCR              // control register
	RegAR              // erase target address register
	RegKEYR            // unlock key register
)

// Status register bits. EOP, PGERR and WRPRTERR have write-one-to-clear
// semantics; BSY is read-only.
const (
	SrBusy     uint32 = 1 << 0
	SrPgErr    uint32 = 1 << 2
	SrWrPrtErr uint32 = 1 << 4
	SrEop      uint32 = 1 << 5
)

// Control register bits.
const (
	CrPg   uint32 = 1 << 0 // program enable
	CrPer  uint32 = 1 << 1 // page erase enable
	CrStrt uint32 = 1 << 6 // start erase
	CrLock uint32 = 1 << 7 // controller locked
)

// Device is the raw flash controller: register access plus direct loads and
// native-width stores against the memory-mapped flash range. Store addresses
// must lie inside mapped flash and be 2-byte aligned; the store is what
// triggers programming once CrPg is set.
type Device interface {
	ReadReg(r Reg) uint32
	WriteReg(r Reg, v uint32)
	Load(addr uint32) byte
	Store(addr uint32, word uint16)
}

// Interrupts brackets register sequences that must not be interleaved with
// any instruction fetch from flash. RunExclusive executes fn with interrupts
// suppressed, restoring the previous state on exit.
type Interrupts interface {
	RunExclusive(fn func())
}

// NopInterrupts satisfies Interrupts without masking anything. Only suitable
// for hosts where no code executes from the flash being programmed.
type NopInterrupts struct{}

func (NopInterrupts) RunExclusive(fn func()) { fn() }

// FlashPage is a page index into the flash array. The controller can only
// erase on a page basis.
type FlashPage uint32

// Geometry describes one device's flash layout.
type Geometry struct {
	Base     uint32
	PageSize uint32
	NumPages uint32
}

// DefaultGeometry matches the reference part.
var DefaultGeometry = Geometry{
	Base:     FlashStart,
	PageSize: PageSize,
	NumPages: NumPages,
}

// PageAddress computes the byte address of the start of a page.
func (g Geometry) PageAddress(p FlashPage) uint32 {
	return g.Base + uint32(p)*g.PageSize
}

// Size is the total byte size of the flash array.
func (g Geometry) Size() uint32 {
	return g.PageSize * g.NumPages
}

// Contains reports whether [addr, addr+length) lies inside the flash array.
func (g Geometry) Contains(addr uint32, length uint32) bool {
	return addr >= g.Base && addr+length <= g.Base+g.Size() && addr+length >= addr
}
