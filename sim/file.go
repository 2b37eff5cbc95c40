package sim

import (
	"fmt"
	"os"

	"github.com/stmtools/flashgo/flash"
)

// LoadImage builds a controller over the contents of a flash image file. A
// short file is padded with erased bytes; a long one is rejected instead of
// silently truncated.
func LoadImage(path string, geo flash.Geometry) (*Controller, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if uint32(len(raw)) > geo.Size() {
		return nil, fmt.Errorf("image %s is %d bytes, flash is only %d", path, len(raw), geo.Size())
	}
	c := New(geo)
	copy(c.mem, raw)
	return c, nil
}

// SaveImage writes the full flash array back out to a file.
func (c *Controller) SaveImage(path string) error {
	return os.WriteFile(path, c.mem, 0644)
}

// NewImageFile creates an all-erased image file of the geometry's size.
func NewImageFile(path string, geo flash.Geometry) error {
	c := New(geo)
	return c.SaveImage(path)
}
