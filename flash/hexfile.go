package flash

import (
	"io"

	"github.com/marcinbor85/gohex"
)

// Segment is one contiguous run of firmware bytes at an absolute address.
type Segment struct {
	Address uint32
	Data    []byte
}

// ParseHex reads Intel HEX and returns its data segments sorted by address.
func ParseHex(r io.Reader) ([]Segment, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, err
	}
	var segments []Segment
	for _, s := range mem.GetDataSegments() {
		segments = append(segments, Segment{Address: s.Address, Data: s.Data})
	}
	return segments, nil
}

// DumpHex writes segments out as Intel HEX, 16 data bytes per record.
func DumpHex(w io.Writer, segments []Segment) error {
	mem := gohex.NewMemory()
	for _, s := range segments {
		if err := mem.AddBinary(s.Address, s.Data); err != nil {
			return err
		}
	}
	return mem.DumpIntelHex(w, 16)
}

// Pages returns the set of page indices a segment touches under the given
// geometry, so callers know what to erase before programming.
func (s Segment) Pages(g Geometry) []FlashPage {
	if len(s.Data) == 0 || s.Address < g.Base {
		return nil
	}
	first := (s.Address - g.Base) / g.PageSize
	last := (s.Address + uint32(len(s.Data)) - 1 - g.Base) / g.PageSize
	var pages []FlashPage
	for p := first; p <= last; p++ {
		pages = append(pages, FlashPage(p))
	}
	return pages
}
