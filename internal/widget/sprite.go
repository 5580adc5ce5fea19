package widget

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// Sprite colors
var (
	bodyColor  = color.NRGBA{R: 122, G: 92, B: 64, A: 255}
	spineColor = color.NRGBA{R: 78, G: 56, B: 38, A: 255}
	faceColor  = color.NRGBA{R: 236, G: 212, B: 176, A: 255}
	eyeColor   = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
)

// DefaultSprite draws the stock hedgehog on a transparent square canvas.
// Everything outside the body stays fully transparent, which is what the
// alpha hit test relies on.
func DefaultSprite(size int) image.Image {
	if size <= 0 {
		size = 128
	}
	s := float64(size)
	dc := gg.NewContext(size, size)

	// spines
	dc.SetColor(spineColor)
	for i := 0; i < 7; i++ {
		a := gg.Radians(float64(160 + i*22))
		dc.DrawEllipse(s*0.46+s*0.30*math.Cos(a), s*0.56+s*0.30*math.Sin(a), s*0.12, s*0.12)
		dc.Fill()
	}

	dc.SetColor(bodyColor)
	dc.DrawEllipse(s*0.46, s*0.58, s*0.32, s*0.24)
	dc.Fill()

	dc.SetColor(faceColor)
	dc.DrawEllipse(s*0.70, s*0.62, s*0.16, s*0.13)
	dc.Fill()

	dc.SetColor(eyeColor)
	dc.DrawCircle(s*0.72, s*0.57, s*0.025)
	dc.Fill()
	dc.DrawCircle(s*0.86, s*0.64, s*0.03)
	dc.Fill()

	return dc.Image()
}
