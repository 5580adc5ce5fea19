package geometry

import (
	"github.com/kbinani/screenshot"
)

// PrimaryDisplay returns the size of the first active display. ok is false in
// headless environments where no display can be enumerated.
func PrimaryDisplay() (size Size, ok bool) {
	defer func() {
		// Some platforms panic when no display server is reachable.
		if r := recover(); r != nil {
			size, ok = Size{}, false
		}
	}()
	if screenshot.NumActiveDisplays() < 1 {
		return Size{}, false
	}
	b := screenshot.GetDisplayBounds(0)
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Size{}, false
	}
	return Size{W: b.Dx(), H: b.Dy()}, true
}
