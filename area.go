/*
Copyright © 2026 the GeoCat authors.
This file is part of GeoCat.

GeoCat is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GeoCat is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GeoCat.  If not, see <http://www.gnu.org/licenses/>.
*/

package geocat

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Area is the geolocation of a dataset: either a single AreaDefinition
// or several of them stacked vertically.
type Area interface {
	// Shape returns the number of rows and columns the area covers.
	Shape() (rows, cols int)

	// Bounds returns the projected bounding box of the area.
	Bounds() *geom.Bounds

	// Polygon returns the projected footprint of the area.
	Polygon() geom.Polygon

	// Proj4 returns the PROJ.4 definition of the area's projection.
	Proj4() string
}

// GeosProjection holds the parameters of a geostationary satellite
// projection. Distances are in metres and longitudes in degrees.
type GeosProjection struct {
	A    float64 `json:"a"`
	B    float64 `json:"b"`
	H    float64 `json:"h"`
	Lon0 float64 `json:"lon_0"`
}

// Proj4 returns the PROJ.4 definition of p.
func (p GeosProjection) Proj4() string {
	return fmt.Sprintf("+proj=geos +a=%g +b=%g +h=%g +lon_0=%g +units=m +no_defs", p.A, p.B, p.H, p.Lon0)
}

// AreaDefinition is a regular grid in a geostationary projection.
type AreaDefinition struct {
	AreaID      string         `json:"area_id"`
	Description string         `json:"description"`
	ProjID      string         `json:"proj_id"`
	Projection  GeosProjection `json:"projection"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`

	// Extent holds the outer edges of the corner pixels as
	// (lower-left x, lower-left y, upper-right x, upper-right y), in
	// projection metres. Depending on the scan direction of the instrument
	// the "lower-left" corner may have the larger coordinates.
	Extent [4]float64 `json:"area_extent"`
}

// Shape implements Area.
func (a *AreaDefinition) Shape() (rows, cols int) { return a.Height, a.Width }

// Proj4 implements Area.
func (a *AreaDefinition) Proj4() string { return a.Projection.Proj4() }

// PixelSize returns the size of a pixel in the x and y directions.
func (a *AreaDefinition) PixelSize() (dx, dy float64) {
	return (a.Extent[2] - a.Extent[0]) / float64(a.Width),
		(a.Extent[3] - a.Extent[1]) / float64(a.Height)
}

// Bounds implements Area.
func (a *AreaDefinition) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	b.Extend(geom.Point{X: a.Extent[0], Y: a.Extent[1]}.Bounds())
	b.Extend(geom.Point{X: a.Extent[2], Y: a.Extent[3]}.Bounds())
	return b
}

// Polygon implements Area.
func (a *AreaDefinition) Polygon() geom.Polygon {
	return boundsPolygon(a.Bounds())
}

func (a *AreaDefinition) String() string {
	return fmt.Sprintf("%s (%s): %dx%d %v %s", a.AreaID, a.Description, a.Width, a.Height, a.Extent, a.Proj4())
}

func boundsPolygon(b *geom.Bounds) geom.Polygon {
	return geom.Polygon{{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Min.Y},
	}}
}

// StackedAreaDefinition is a vertical stack of area definitions that could
// not be merged into one, such as the two windows of a full disk SEVIRI
// HRV image.
type StackedAreaDefinition struct {
	Defs []*AreaDefinition `json:"defs"`
}

// Shape implements Area.
func (s *StackedAreaDefinition) Shape() (rows, cols int) {
	for _, d := range s.Defs {
		rows += d.Height
		if d.Width > cols {
			cols = d.Width
		}
	}
	return rows, cols
}

// Proj4 implements Area.
func (s *StackedAreaDefinition) Proj4() string {
	if len(s.Defs) == 0 {
		return ""
	}
	return s.Defs[0].Proj4()
}

// Bounds implements Area.
func (s *StackedAreaDefinition) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, d := range s.Defs {
		b.Extend(d.Bounds())
	}
	return b
}

// Polygon implements Area. The footprint is the union of the footprints
// of the stacked definitions.
func (s *StackedAreaDefinition) Polygon() geom.Polygon {
	if len(s.Defs) == 0 {
		return nil
	}
	o := s.Defs[0].Polygon()
	for _, d := range s.Defs[1:] {
		o = o.Union(d.Polygon()).(geom.Polygon)
	}
	return o
}

// Squeeze returns the only definition in s if there is exactly one,
// and s otherwise.
func (s *StackedAreaDefinition) Squeeze() Area {
	if len(s.Defs) == 1 {
		return s.Defs[0]
	}
	return s
}

// StackAreas stacks areas vertically, in order, merging neighbours that
// share a projection and width and whose extents are contiguous. The
// result is a single *AreaDefinition when everything merges.
func StackAreas(areas ...Area) (Area, error) {
	var defs []*AreaDefinition
	for _, a := range areas {
		switch t := a.(type) {
		case *AreaDefinition:
			defs = append(defs, t)
		case *StackedAreaDefinition:
			defs = append(defs, t.Defs...)
		case nil:
			return nil, fmt.Errorf("geocat: cannot stack a nil area")
		default:
			return nil, fmt.Errorf("geocat: cannot stack area of type %T", a)
		}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("geocat: no areas to stack")
	}
	s := &StackedAreaDefinition{Defs: []*AreaDefinition{defs[0]}}
	for _, d := range defs[1:] {
		last := s.Defs[len(s.Defs)-1]
		if merged, ok := concatenateVertical(last, d); ok {
			s.Defs[len(s.Defs)-1] = merged
		} else {
			s.Defs = append(s.Defs, d)
		}
	}
	return s.Squeeze(), nil
}

// concatenateVertical merges b below a if they are compatible.
func concatenateVertical(a, b *AreaDefinition) (*AreaDefinition, bool) {
	if a.Projection != b.Projection || a.Width != b.Width {
		return nil, false
	}
	if !closeTo(a.Extent[0], b.Extent[0]) || !closeTo(a.Extent[2], b.Extent[2]) {
		return nil, false
	}
	o := *a
	o.Height = a.Height + b.Height
	switch {
	case closeTo(a.Extent[1], b.Extent[3]):
		o.Extent[1] = b.Extent[1]
	case closeTo(a.Extent[3], b.Extent[1]):
		o.Extent[3] = b.Extent[3]
	default:
		return nil, false
	}
	return &o, true
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= 1e-8+1e-5*math.Abs(b)
}
