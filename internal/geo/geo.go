// Package geo holds the planar lat/lng geometry used by the timezone lookup.
package geo

import (
	"fmt"
	"math"
)

// Scale is the fixed-point grid used by Cmp: coordinates are compared at
// 8 decimal digits.
const Scale = 1e8

type Point struct {
	Lat float64
	Lng float64
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Cmp compares a and b on the 1e-8 grid. Both values are scaled by Scale
// and rounded to the nearest integer before comparing, so two values that
// round to the same grid point (distance below 5e-9 around it) are equal.
func Cmp(a, b float64) int {
	ia, ib := fixed(a), fixed(b)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}

func fixed(v float64) int64 {
	return int64(math.Round(v * Scale))
}

type BBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Contains reports whether p lies inside the closed box.
func (b BBox) Contains(p Point) bool {
	return !(Cmp(p.Lat, b.South) < 0 ||
		Cmp(p.Lat, b.North) > 0 ||
		Cmp(p.Lng, b.East) > 0 ||
		Cmp(p.Lng, b.West) < 0)
}

// Overlaps reports whether the two closed boxes share at least one point.
func (b BBox) Overlaps(o BBox) bool {
	return b.North >= o.South &&
		b.South <= o.North &&
		b.East >= o.West &&
		b.West <= o.East
}

func (b BBox) String() string {
	return fmt.Sprintf("n=%.6f s=%.6f e=%.6f w=%.6f", b.North, b.South, b.East, b.West)
}
