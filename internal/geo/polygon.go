package geo

// Polygon is a set of rings: ring 0 is the outer boundary, every other
// ring is a hole. The bounding box is fixed at construction and the
// polygon is never mutated afterwards.
type Polygon struct {
	rings    [][]Point
	bbox     BBox
	hasCoord bool
}

// NewPolygon builds a polygon and computes its bounding box from ring 0.
func NewPolygon(rings [][]Point) Polygon {
	p := Polygon{rings: copyRings(rings)}
	if len(p.rings) == 0 || len(p.rings[0]) == 0 {
		return p
	}
	p.hasCoord = true
	first := p.rings[0][0]
	p.bbox = BBox{North: first.Lat, South: first.Lat, East: first.Lng, West: first.Lng}
	for _, v := range p.rings[0][1:] {
		if Cmp(v.Lat, p.bbox.South) < 0 {
			p.bbox.South = v.Lat
		}
		if Cmp(v.Lat, p.bbox.North) > 0 {
			p.bbox.North = v.Lat
		}
		if Cmp(v.Lng, p.bbox.East) > 0 {
			p.bbox.East = v.Lng
		}
		if Cmp(v.Lng, p.bbox.West) < 0 {
			p.bbox.West = v.Lng
		}
	}
	return p
}

// NewPolygonWithBBox builds a polygon around a precomputed bounding box,
// as stored by the preparation pipeline. The box is trusted as-is.
func NewPolygonWithBBox(rings [][]Point, bb BBox) Polygon {
	p := Polygon{rings: copyRings(rings), bbox: bb}
	p.hasCoord = len(p.rings) > 0 && len(p.rings[0]) > 0
	return p
}

func copyRings(rings [][]Point) [][]Point {
	if len(rings) == 0 {
		return nil
	}
	out := make([][]Point, len(rings))
	for i, r := range rings {
		out[i] = append([]Point(nil), r...)
	}
	return out
}

// Empty reports whether the polygon has no coordinate. Empty polygons
// never contain any point.
func (p Polygon) Empty() bool { return !p.hasCoord }

// BBox returns the bounding box of ring 0; ok is false for empty polygons.
func (p Polygon) BBox() (bb BBox, ok bool) {
	return p.bbox, p.hasCoord
}

// Rings exposes the ring slices. Callers must not modify them.
func (p Polygon) Rings() [][]Point { return p.rings }

func (p Polygon) NumRings() int { return len(p.rings) }

func (p Polygon) NumVertices() int {
	n := 0
	for _, r := range p.rings {
		n += len(r)
	}
	return n
}

// BoundingBoxContains fails fast for points outside [south,north]x[west,east].
func (p Polygon) BoundingBoxContains(pt Point) bool {
	if !p.hasCoord {
		return false
	}
	return p.bbox.Contains(pt)
}

// Contains is the exact point-in-polygon test. Vertices and edges belong to
// the polygon; otherwise the even-odd rule runs over all rings together so
// holes subtract.
func (p Polygon) Contains(pt Point) bool {
	if !p.hasCoord {
		return false
	}
	if !p.bbox.Contains(pt) {
		return false
	}
	if p.OnVertex(pt) {
		return true
	}
	if p.OnBoundary(pt) {
		return true
	}

	crossings := 0
	for _, ring := range p.rings {
		n := len(ring)
		for i := 1; i <= n; i++ {
			a, b := ring[i-1], ring[i%n]
			if !spansLatitude(pt, a, b) {
				continue
			}
			if Cmp(a.Lng, b.Lng) == 0 || Cmp(pt.Lng, crossingLng(pt, a, b)) <= 0 {
				crossings++
			}
		}
	}
	return crossings%2 != 0
}

// OnVertex reports whether pt coincides with any vertex of any ring.
func (p Polygon) OnVertex(pt Point) bool {
	for _, ring := range p.rings {
		for _, v := range ring {
			if Cmp(v.Lat, pt.Lat) == 0 && Cmp(v.Lng, pt.Lng) == 0 {
				return true
			}
		}
	}
	return false
}

// OnBoundary reports whether pt lies in the interior of any ring edge,
// horizontal edges included.
func (p Polygon) OnBoundary(pt Point) bool {
	for _, ring := range p.rings {
		n := len(ring)
		for i := 1; i <= n; i++ {
			a, b := ring[i-1], ring[i%n]

			if Cmp(a.Lat, b.Lat) == 0 &&
				Cmp(a.Lat, pt.Lat) == 0 &&
				Cmp(pt.Lng, min(a.Lng, b.Lng)) > 0 &&
				Cmp(pt.Lng, max(a.Lng, b.Lng)) < 0 {
				return true
			}

			if spansLatitude(pt, a, b) && Cmp(crossingLng(pt, a, b), pt.Lng) == 0 {
				return true
			}
		}
	}
	return false
}

// spansLatitude is the half-open crossing condition of the ray test: the
// edge is not horizontal, pt.Lat is in (minLat, maxLat] and the edge is not
// entirely west of pt.
func spansLatitude(pt, a, b Point) bool {
	return Cmp(pt.Lat, min(a.Lat, b.Lat)) > 0 &&
		Cmp(pt.Lat, max(a.Lat, b.Lat)) <= 0 &&
		Cmp(pt.Lng, max(a.Lng, b.Lng)) <= 0 &&
		Cmp(a.Lat, b.Lat) != 0
}

// longitude of edge a-b at pt's latitude
func crossingLng(pt, a, b Point) float64 {
	return (pt.Lat-a.Lat)*(b.Lng-a.Lng)/(b.Lat-a.Lat) + a.Lng
}
