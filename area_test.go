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
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
)

var testProj = GeosProjection{A: 6378169, B: 6356583.8, H: 35785831, Lon0: 0}

func segmentArea(s int) *AreaDefinition {
	return &AreaDefinition{
		AreaID:     "test",
		Projection: testProj,
		Width:      3,
		Height:     2,
		Extent:     [4]float64{300, float64(s) * 200, 0, float64(s-1) * 200},
	}
}

func TestAreaDefinition(t *testing.T) {
	a := segmentArea(2)
	dx, dy := a.PixelSize()
	if dx != -100 || dy != -100 {
		t.Errorf("pixel size (%g, %g)", dx, dy)
	}
	b := a.Bounds()
	want := &geom.Bounds{Min: geom.Point{X: 0, Y: 200}, Max: geom.Point{X: 300, Y: 400}}
	if !reflect.DeepEqual(b, want) {
		t.Errorf("bounds: have %v, want %v", b, want)
	}
	p := a.Polygon()
	if len(p) != 1 || len(p[0]) != 5 || p[0][0] != p[0][4] {
		t.Errorf("polygon %v", p)
	}
	if math.Abs(p.Area()-300*200) > 1e-9 {
		t.Errorf("polygon area %g", p.Area())
	}
	wantProj := "+proj=geos +a=6.378169e+06 +b=6.3565838e+06 +h=3.5785831e+07 +lon_0=0 +units=m +no_defs"
	if a.Proj4() != wantProj {
		t.Errorf("proj4: have %q, want %q", a.Proj4(), wantProj)
	}
}

func TestStackAreas(t *testing.T) {
	t.Run("contiguous", func(t *testing.T) {
		a, err := StackAreas(segmentArea(1), segmentArea(2), segmentArea(3))
		if err != nil {
			t.Fatal(err)
		}
		ad, ok := a.(*AreaDefinition)
		if !ok {
			t.Fatalf("have %T, want *AreaDefinition", a)
		}
		if ad.Height != 6 || ad.Width != 3 {
			t.Errorf("shape %dx%d", ad.Height, ad.Width)
		}
		if want := [4]float64{300, 600, 0, 0}; ad.Extent != want {
			t.Errorf("extent: have %v, want %v", ad.Extent, want)
		}
	})
	t.Run("reverse order", func(t *testing.T) {
		a, err := StackAreas(segmentArea(2), segmentArea(1))
		if err != nil {
			t.Fatal(err)
		}
		if want := [4]float64{300, 400, 0, 0}; a.(*AreaDefinition).Extent != want {
			t.Errorf("extent: have %v, want %v", a.(*AreaDefinition).Extent, want)
		}
	})
	t.Run("gap", func(t *testing.T) {
		a, err := StackAreas(segmentArea(1), segmentArea(3))
		if err != nil {
			t.Fatal(err)
		}
		s, ok := a.(*StackedAreaDefinition)
		if !ok {
			t.Fatalf("have %T, want *StackedAreaDefinition", a)
		}
		if len(s.Defs) != 2 {
			t.Fatalf("have %d definitions", len(s.Defs))
		}
		if r, c := s.Shape(); r != 4 || c != 3 {
			t.Errorf("shape %dx%d", r, c)
		}
		want := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 300, Y: 600}}
		if b := s.Bounds(); !reflect.DeepEqual(b, want) {
			t.Errorf("bounds: have %v, want %v", b, want)
		}
		if math.Abs(s.Polygon().Area()-2*300*200) > 1e-6 {
			t.Errorf("polygon area %g", s.Polygon().Area())
		}
	})
	t.Run("different width", func(t *testing.T) {
		b := segmentArea(2)
		b.Width = 4
		a, err := StackAreas(segmentArea(1), b)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := a.(*StackedAreaDefinition); !ok {
			t.Errorf("have %T, want *StackedAreaDefinition", a)
		}
	})
	t.Run("errors", func(t *testing.T) {
		if _, err := StackAreas(); err == nil {
			t.Error("empty stack should be an error")
		}
		if _, err := StackAreas(segmentArea(1), nil); err == nil {
			t.Error("nil area should be an error")
		}
	})
}

func TestSqueeze(t *testing.T) {
	a := segmentArea(1)
	s := &StackedAreaDefinition{Defs: []*AreaDefinition{a}}
	if s.Squeeze() != Area(a) {
		t.Error("single definition should squeeze to itself")
	}
	s.Defs = append(s.Defs, segmentArea(3))
	if s.Squeeze() != Area(s) {
		t.Error("two definitions should not squeeze")
	}
}
