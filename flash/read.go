package flash

// ReadNative copies bytes straight out of memory-mapped flash. Reads need no
// command sequencing and no status checks, so they cannot fail.
func (u *Unlocked) ReadNative(address uint32, buf []byte) {
	for i := range buf {
		buf[i] = u.dev.Load(address + uint32(i))
	}
}

// Read fills buf from flash starting at address.
func (u *Unlocked) Read(address uint32, buf []byte) {
	u.ReadNative(address, buf)
}
