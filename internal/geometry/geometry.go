// Package geometry converts density-independent units to pixels and keeps
// positions inside the visible screen rectangle.
package geometry

import "math"

// Point is a top-left position in pixels.
type Point struct {
	X, Y int
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Size is a width/height pair in pixels.
type Size struct {
	W, H int
}

// Density is the display scale factor (pixels per dp).
type Density float64

// Px converts a dp value to pixels, rounding half away from zero.
func (d Density) Px(dp int) int {
	return int(math.Round(float64(dp) * float64(d)))
}

// PxF converts a fractional dp value to pixels.
func (d Density) PxF(dp float64) float64 {
	return dp * float64(d)
}

// Clamp bounds v to [lo, hi]. When hi < lo the lower bound wins.
func Clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// MaxOrigin is the largest top-left coordinate that keeps an item of length
// item inside a screen of length screen, never negative.
func MaxOrigin(screen, item int) int {
	return max(0, screen-item)
}

// ClampToScreen keeps a box of size box fully visible on screen.
func ClampToScreen(p Point, box Size, screen Size) Point {
	return Point{
		X: Clamp(p.X, 0, MaxOrigin(screen.W, box.W)),
		Y: Clamp(p.Y, 0, MaxOrigin(screen.H, box.H)),
	}
}

// Within reports whether a box at p lies fully on screen.
func Within(p Point, box Size, screen Size) bool {
	return p.X >= 0 && p.Y >= 0 &&
		p.X <= MaxOrigin(screen.W, box.W) &&
		p.Y <= MaxOrigin(screen.H, box.H)
}
