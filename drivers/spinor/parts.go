package spinor

import "math"

// Info is the cached probe result.
type Info struct {
	ManufacturerID uint8
	DeviceID       uint8
	Size           uint32 // bytes; zero unless Supported
	Supported      bool
}

type part struct {
	manf, dev uint8
	size      uint32
}

// supportedParts lists the chips this driver knows.
var supportedParts = [...]part{
	{0xC2, 0x15, 0x200000}, // Macronix MX25R1635F, 16 Mbit
	{0xC2, 0x14, 0x100000}, // Macronix MX25R8035F, 8 Mbit
	{0xEF, 0x12, 0x080000}, // Winbond W25X40CL, 4 Mbit
	{0xEF, 0x11, 0x040000}, // Winbond W25X20CL, 2 Mbit
}

// Lookup returns the device size for an id pair.
func Lookup(manf, dev uint8) (size uint32, ok bool) {
	for _, p := range supportedParts {
		if p.manf == manf && p.dev == dev {
			return p.size, true
		}
	}
	return 0, false
}

// Fits reports whether [offset, offset+length) is addressable on the chip.
// The end is computed in 64 bits so a wrapping 32-bit sum is rejected.
// Unknown parts fail closed.
func (i Info) Fits(offset, length uint32) bool {
	end := uint64(offset) + uint64(length)
	if end > math.MaxUint32 {
		return false
	}
	if !i.Supported {
		return false
	}
	return end <= uint64(i.Size)
}
