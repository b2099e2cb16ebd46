package nn

import (
	"github.com/chewxy/math32"
)

// Point is a position in source image pixels
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y))
}

// Rect is an axis aligned box, in source image pixels
type Rect struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

func (r Rect) X2() float32 {
	return r.X + r.Width
}

func (r Rect) Y2() float32 {
	return r.Y + r.Height
}

func (r Rect) Area() float32 {
	return r.Width * r.Height
}

// Longest side of the rectangle
func (r Rect) MaxSide() float32 {
	return max(r.Width, r.Height)
}

func (r Rect) Center() Point {
	return Point{
		X: r.X + r.Width/2,
		Y: r.Y + r.Height/2,
	}
}

// IsFinite returns false if any of the four values are NaN or Inf
func (r Rect) IsFinite() bool {
	return isFinite(r.X) && isFinite(r.Y) && isFinite(r.Width) && isFinite(r.Height)
}

func isFinite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
