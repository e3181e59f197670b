package geom

import (
	"math"

	"golang.org/x/exp/constraints"
)

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

// Intersect solves for the parameters of the crossing point of the infinite
// lines through two segments: the point equals s1 + lambda*(e1-s1) and
// s2 + mu*(e2-s2). Parallel lines yield (0, 0), which cannot be told apart
// from segments that genuinely meet at both start points.
func Intersect(s1, e1, s2, e2 Vec2) (lambda, mu float64) {
	d1x := s1.X - e1.X
	d2x := s2.X - e2.X
	d1y := s1.Y - e1.Y
	d2y := s2.Y - e2.Y
	denominator := d1x*d2y - d1y*d2x
	if denominator == 0 {
		return 0, 0
	}
	lambda = ((s1.X-s2.X)*d2y - (s1.Y-s2.Y)*d2x) / denominator
	mu = -(d1x*(s1.Y-s2.Y) - d1y*(s1.X-s2.X)) / denominator
	return lambda, mu
}

// IsSentinel reports whether an Intersect result is the (0, 0) parallel marker.
func IsSentinel(lambda, mu float64) bool {
	return lambda == 0 && mu == 0
}

// Pose is a position plus a heading in degrees; 0 points along +X and
// positive angles turn towards +Y.
type Pose struct {
	Position Vec2    `json:"position"`
	Heading  float64 `json:"heading"`
}

// Local maps an offset in the pose's frame to world coordinates.
func (p Pose) Local(lx, ly float64) Vec2 {
	sin, cos := math.Sincos(Radians(p.Heading))
	return Vec2{
		X: p.Position.X + cos*lx - sin*ly,
		Y: p.Position.Y + sin*lx + cos*ly,
	}
}

// Direction is the unit vector along the heading.
func (p Pose) Direction() Vec2 {
	sin, cos := math.Sincos(Radians(p.Heading))
	return Vec2{X: cos, Y: sin}
}

func Radians[T constraints.Float](degrees T) T {
	return degrees * math.Pi / 180
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees[T constraints.Float](degrees T) T {
	wrapped := T(math.Mod(float64(degrees), 360))
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped
}
