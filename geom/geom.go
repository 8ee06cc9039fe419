// SPDX-License-Identifier: EPL-2.0

// Package geom holds the exhibition-space geometry shared by the layout,
// spatializer and movement models. Coordinates are metres; vectors are
// gonum r2.Vec values.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Rect is an axis-aligned rectangle. The zero Rect is the point at the origin.
type Rect struct {
	Min r2.Vec `json:"min"`
	Max r2.Vec `json:"max"`
}

// RectFromPoints returns the smallest Rect containing pts, or false when pts
// is empty.
func RectFromPoints(pts []r2.Vec) (Rect, bool) {
	if len(pts) == 0 {
		return Rect{}, false
	}

	r := Rect{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r = r.With(p)
	}

	return r, true
}

// With extends r to include p.
func (r Rect) With(p r2.Vec) Rect {
	return Rect{
		Min: r2.Vec{X: math.Min(r.Min.X, p.X), Y: math.Min(r.Min.Y, p.Y)},
		Max: r2.Vec{X: math.Max(r.Max.X, p.X), Y: math.Max(r.Max.Y, p.Y)},
	}
}

// Union is the smallest Rect containing r and o.
func (r Rect) Union(o Rect) Rect {
	return r.With(o.Min).With(o.Max)
}

// Expand grows r by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{
		Min: r2.Vec{X: r.Min.X - d, Y: r.Min.Y - d},
		Max: r2.Vec{X: r.Max.X + d, Y: r.Max.Y + d},
	}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Middle is the centre of r.
func (r Rect) Middle() r2.Vec {
	return r2.Vec{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// At maps a normalised point (0..1 on both axes) into r.
func (r Rect) At(n r2.Vec) r2.Vec {
	return r2.Vec{X: r.Min.X + n.X*r.Width(), Y: r.Min.Y + n.Y*r.Height()}
}

func (r Rect) Contains(p r2.Vec) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Clamp moves p to the nearest point inside r.
func (r Rect) Clamp(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: math.Min(math.Max(p.X, r.Min.X), r.Max.X),
		Y: math.Min(math.Max(p.Y, r.Min.Y), r.Max.Y),
	}
}

// Distance between a and b.
func Distance(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// Limit scales v down so its length does not exceed max.
func Limit(v r2.Vec, max float64) r2.Vec {
	n := r2.Norm(v)
	if n <= max || n == 0 {
		return v
	}

	return r2.Scale(max/n, v)
}

// FromPolar returns the vector with the given angle (radians) and length.
func FromPolar(radians, length float64) r2.Vec {
	return r2.Vec{X: length * math.Cos(radians), Y: length * math.Sin(radians)}
}

// Heading is the angle of v in radians; zero for the zero vector.
func Heading(v r2.Vec) float64 {
	if v.X == 0 && v.Y == 0 {
		return 0
	}

	return math.Atan2(v.Y, v.X)
}

// WrapAngle maps a to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}

	return a - math.Pi
}
