package dataset

import (
	"fmt"

	"github.com/mohammed-shakir/tzwhere/internal/blob"
	"github.com/mohammed-shakir/tzwhere/internal/geo"
)

type wireDataset struct {
	Zones []wireZone
}

type wireZone struct {
	Name     string
	Polygons []wirePolygon
}

type wirePolygon struct {
	Rings [][][2]float64 // [ring][vertex]{lat, lng}
	BBox  *geo.BBox
}

// Marshal encodes d with ring and vertex order preserved; ray-casting
// parity depends on edge traversal order.
func Marshal(d *Dataset) ([]byte, error) {
	w := wireDataset{Zones: make([]wireZone, 0, len(d.names))}
	for _, name := range d.names {
		polys := d.polys[name]
		z := wireZone{Name: name, Polygons: make([]wirePolygon, len(polys))}
		for i, p := range polys {
			z.Polygons[i] = toWire(p)
		}
		w.Zones = append(w.Zones, z)
	}
	b, err := blob.Marshal(blob.KindDataset, w)
	if err != nil {
		return nil, fmt.Errorf("dataset marshal: %w", err)
	}
	return b, nil
}

func Unmarshal(data []byte) (*Dataset, error) {
	var w wireDataset
	if err := blob.Unmarshal(blob.KindDataset, data, &w); err != nil {
		return nil, fmt.Errorf("dataset unmarshal: %w", err)
	}
	d := New()
	for _, z := range w.Zones {
		polys := make([]geo.Polygon, len(z.Polygons))
		for i, wp := range z.Polygons {
			polys[i] = fromWire(wp)
		}
		d.Add(z.Name, polys...)
	}
	return d, nil
}

func toWire(p geo.Polygon) wirePolygon {
	if p.Empty() {
		return wirePolygon{}
	}
	rings := p.Rings()
	out := wirePolygon{Rings: make([][][2]float64, len(rings))}
	for i, r := range rings {
		vs := make([][2]float64, len(r))
		for j, v := range r {
			vs[j] = [2]float64{v.Lat, v.Lng}
		}
		out.Rings[i] = vs
	}
	if bb, ok := p.BBox(); ok {
		out.BBox = &bb
	}
	return out
}

func fromWire(w wirePolygon) geo.Polygon {
	rings := make([][]geo.Point, len(w.Rings))
	for i, r := range w.Rings {
		vs := make([]geo.Point, len(r))
		for j, v := range r {
			vs[j] = geo.Point{Lat: v[0], Lng: v[1]}
		}
		rings[i] = vs
	}
	if w.BBox != nil {
		return geo.NewPolygonWithBBox(rings, *w.BBox)
	}
	return geo.NewPolygon(rings)
}
