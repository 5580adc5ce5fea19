package widget

import (
	"image"
	"image/color"
)

// MinOpaqueAlpha is the lowest 8-bit alpha that still counts as a hit.
const MinOpaqueAlpha = 24

// AlphaHitTester samples a sprite drawn fit-center inside a view box.
// Touches on the letterbox or on transparent pixels miss.
type AlphaHitTester struct {
	Sprite image.Image
	View   func() (w, h int)
}

// Opaque implements HitTester. Missing images and degenerate sizes count as
// hits so a broken sprite never makes the widget untouchable.
func (a AlphaHitTester) Opaque(x, y float64) bool {
	if a.Sprite == nil || a.View == nil {
		return true
	}
	vw, vh := a.View()
	b := a.Sprite.Bounds()
	dw, dh := b.Dx(), b.Dy()
	if vw <= 0 || vh <= 0 || dw <= 0 || dh <= 0 {
		return true
	}
	scale := min(float64(vw)/float64(dw), float64(vh)/float64(dh))
	rw, rh := float64(dw)*scale, float64(dh)*scale
	left, top := (float64(vw)-rw)/2, (float64(vh)-rh)/2
	if x < left || y < top || x > left+rw || y > top+rh {
		return false
	}
	px := min(max(int((x-left)/rw*float64(dw)), 0), dw-1)
	py := min(max(int((y-top)/rh*float64(dh)), 0), dh-1)
	c := color.NRGBAModel.Convert(a.Sprite.At(b.Min.X+px, b.Min.Y+py)).(color.NRGBA)
	return c.A >= MinOpaqueAlpha
}
