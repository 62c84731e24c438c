/**
 * Geometry helpers for the annotation surface
 *
 * All boxes live in source-image pixel space. Screen space is only reached
 * through a (origin, scale) pair, see ScreenToImage and ImageToScreen.
 */

package geometry

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale multiplies both coordinates by s.
func (p Point) Scale(s float64) Point { return Point{X: p.X * s, Y: p.Y * s} }

// Box is an axis-aligned bounding box in image pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the box has a positive area.
func (b Box) Valid() bool { return b.Width > 0 && b.Height > 0 }

// Area returns width*height.
func (b Box) Area() float64 { return b.Width * b.Height }

// Right returns the x coordinate of the right edge.
func (b Box) Right() float64 { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b Box) Bottom() float64 { return b.Y + b.Height }

// Translate moves the box by d.
func (b Box) Translate(d Point) Box {
	b.X += d.X
	b.Y += d.Y
	return b
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.Right() && p.Y >= b.Y && p.Y <= b.Bottom()
}

// Corner returns the position of corner c.
func (b Box) Corner(c Corner) Point {
	switch c {
	case TopRight:
		return Point{X: b.Right(), Y: b.Y}
	case BottomRight:
		return Point{X: b.Right(), Y: b.Bottom()}
	case BottomLeft:
		return Point{X: b.X, Y: b.Bottom()}
	default:
		return Point{X: b.X, Y: b.Y}
	}
}

// Corner identifies one of the four box corners.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

// Corners lists all corners in hit-test order.
var Corners = [4]Corner{TopLeft, TopRight, BottomRight, BottomLeft}

// Opposite returns the diagonally opposite corner.
func (c Corner) Opposite() Corner {
	return (c + 2) % 4
}

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomRight:
		return "bottom-right"
	case BottomLeft:
		return "bottom-left"
	}
	return "unknown"
}

// FromCorners builds the normalized box spanned by two points, in any order.
func FromCorners(a, b Point) Box {
	return Box{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
	}
}

// FitScale returns the largest scale not above 1 at which an image fits
// inside the container minus padding on every side. Returns 1 when any
// dimension is zero, negative, or not a number.
func FitScale(imageW, imageH, containerW, containerH, padding float64) float64 {
	for _, v := range []float64{imageW, imageH, containerW, containerH} {
		if !(v > 0) || math.IsInf(v, 0) {
			return 1
		}
	}

	availW := containerW - 2*padding
	availH := containerH - 2*padding
	if availW <= 0 || availH <= 0 {
		availW, availH = containerW, containerH
	}

	return math.Min(1, math.Min(availW/imageW, availH/imageH))
}

// ScreenToImage converts a screen position to image coordinates.
func ScreenToImage(p, origin Point, scale float64) Point {
	return p.Sub(origin).Scale(1 / scale)
}

// ImageToScreen is the inverse of ScreenToImage.
func ImageToScreen(p, origin Point, scale float64) Point {
	return p.Scale(scale).Add(origin)
}

// Clamp constrains the top-left corner of a w x h box so the box stays
// inside [0, imageW] x [0, imageH]. A box larger than the image is pinned
// at the origin.
func Clamp(x, y, w, h, imageW, imageH float64) Point {
	return Point{
		X: clampRange(x, 0, math.Max(0, imageW-w)),
		Y: clampRange(y, 0, math.Max(0, imageH-h)),
	}
}

// ClampBox limits the box size to the image and then clamps its position.
// Non-positive image dimensions leave that axis unbounded above.
func ClampBox(b Box, imageW, imageH float64) Box {
	if imageW > 0 && b.Width > imageW {
		b.Width = imageW
	}
	if imageH > 0 && b.Height > imageH {
		b.Height = imageH
	}
	if imageW <= 0 {
		imageW = math.Inf(1)
	}
	if imageH <= 0 {
		imageH = math.Inf(1)
	}
	p := Clamp(b.X, b.Y, b.Width, b.Height, imageW, imageH)
	b.X, b.Y = p.X, p.Y
	return b
}

// ClampPoint keeps p inside [0, imageW] x [0, imageH].
func ClampPoint(p Point, imageW, imageH float64) Point {
	if imageW > 0 {
		p.X = clampRange(p.X, 0, imageW)
	} else {
		p.X = math.Max(0, p.X)
	}
	if imageH > 0 {
		p.Y = clampRange(p.Y, 0, imageH)
	} else {
		p.Y = math.Max(0, p.Y)
	}
	return p
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
