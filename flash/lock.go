package flash

type config struct {
	geo Geometry
}

// Option configures a driver handle at construction time.
type Option func(*config)

// WithGeometry selects a flash layout other than DefaultGeometry, usually
// taken from a device profile (see LoadProfile).
func WithGeometry(g Geometry) Option {
	return func(c *config) {
		c.geo = g
	}
}

// Locked wraps the raw controller while erase and write are disabled. The
// only thing you can do with it is Unlock.
type Locked struct {
	dev Device
	irq Interrupts
	geo Geometry
}

// Unlocked is the capability to erase, write and read flash. At most one
// usable Unlocked exists at a time: it is created by Locked.Unlock and
// consumed by Lock.
type Unlocked struct {
	dev Device
	irq Interrupts
	geo Geometry
}

// NewLocked takes ownership of the raw controller. irq may be nil on hosts
// where nothing executes from the flash being programmed.
func NewLocked(dev Device, irq Interrupts, opts ...Option) *Locked {
	if dev == nil {
		panic("device cannot be nil")
	}
	if irq == nil {
		irq = NopInterrupts{}
	}
	cfg := config{geo: DefaultGeometry}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Locked{dev: dev, irq: irq, geo: cfg.geo}
}

// Unlock waits for the controller to go idle, writes the two-word key
// sequence and verifies the lock bit cleared. On success the Locked handle
// is consumed and must not be used again. On failure it returns ErrFailure
// and the Locked handle stays valid, untouched.
func (l *Locked) Unlock() (*Unlocked, error) {
	// wait while the memory interface is busy
	for l.dev.ReadReg(RegSR)&SrBusy != 0 {
	}

	l.dev.WriteReg(RegKEYR, Key1)
	l.dev.WriteReg(RegKEYR, Key2)

	if l.dev.ReadReg(RegCR)&CrLock != 0 {
		return nil, ErrFailure
	}

	u := &Unlocked{dev: l.dev, irq: l.irq, geo: l.geo}
	l.dev = nil
	return u, nil
}

// Lock sets the lock bit and yields the raw controller back. Setting the
// lock bit always succeeds, so there is no failure path. The Unlocked handle
// is consumed.
func (u *Unlocked) Lock() Device {
	u.setControl(CrLock)
	dev := u.dev
	u.dev = nil
	return dev
}

// Geometry returns the flash layout this handle was built with.
func (u *Unlocked) Geometry() Geometry {
	return u.geo
}

func (u *Unlocked) setControl(mask uint32) {
	u.dev.WriteReg(RegCR, u.dev.ReadReg(RegCR)|mask)
}

func (u *Unlocked) clearControl(mask uint32) {
	u.dev.WriteReg(RegCR, u.dev.ReadReg(RegCR)&^mask)
}
