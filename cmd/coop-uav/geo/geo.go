// Package geo holds the planar geometry shared by the swarm components.
// Positions are metres in a local north/east frame; headings are degrees
// clockwise from north.
package geo

import "math"

// Point is a position in the local frame
type Point struct {
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// DistanceTo returns the straight-line distance to o
func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(o.North-p.North, o.East-p.East)
}

// HeadingTo returns the bearing from p to o in [0, 360)
func (p Point) HeadingTo(o Point) float64 {
	deg := math.Atan2(o.East-p.East, o.North-p.North) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Interpolate returns p + frac*(o - p)
func (p Point) Interpolate(o Point, frac float64) Point {
	return Point{
		North: p.North + frac*(o.North-p.North),
		East:  p.East + frac*(o.East-p.East),
	}
}

// MoveTowards advances p at most dist metres toward o without overshooting
func (p Point) MoveTowards(o Point, dist float64) Point {
	d := p.DistanceTo(o)
	if d <= dist || d == 0 {
		return o
	}
	return p.Interpolate(o, dist/d)
}

// Pose is a position with a heading
type Pose struct {
	Point
	Heading float64 `json:"heading"`
}

// Circle is a coverage area
type Circle struct {
	Center Point
	Radius float64
}

// Contains reports whether p lies inside or on the circle
func (c Circle) Contains(p Point) bool {
	return c.Center.DistanceTo(p) <= c.Radius
}
