package flash

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml"
)

// Profile is one device entry from a toml profile file. Addresses are hex
// strings because toml integers are decimal and nobody writes flash bases in
// decimal.
//
//	name = "stm32f030c8"
//	flash_base = "0x08000000"
//	page_size = 1024
//	num_pages = 64
type Profile struct {
	Name      string `toml:"name"`
	FlashBase string `toml:"flash_base"`
	PageSize  uint32 `toml:"page_size"`
	NumPages  uint32 `toml:"num_pages"`
}

// LoadProfile reads a device profile from a toml file.
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := toml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Geometry converts the profile into a driver geometry, filling missing
// fields from the reference part.
func (p *Profile) Geometry() (Geometry, error) {
	g := DefaultGeometry
	if p.FlashBase != "" {
		base, err := strconv.ParseUint(p.FlashBase, 0, 32)
		if err != nil {
			return g, fmt.Errorf("bad flash_base %q: %w", p.FlashBase, err)
		}
		g.Base = uint32(base)
	}
	if p.PageSize > 0 {
		g.PageSize = p.PageSize
	}
	if p.NumPages > 0 {
		g.NumPages = p.NumPages
	}
	if g.PageSize%NativeSize != 0 {
		return g, fmt.Errorf("page size %d is not a multiple of the native word", g.PageSize)
	}
	return g, nil
}
