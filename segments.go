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

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// assemble joins the pieces of a dataset read from handles. Pieces of a
// segmented file type are placed in segment order, and segments missing
// from the time slot are filled with NaN rows and padded areas.
func (r *Reader) assemble(id DatasetID, handles []*fileHandle, pieces []loadResult) (*Dataset, error) {
	d := &Dataset{ID: id, Attrs: make(map[string]interface{})}
	for k, v := range pieces[0].dataset.Attrs {
		d.Attrs[k] = v
	}

	expected := handles[0].FileType.Segments()
	if expected == 1 {
		ms := make([]*mat.Dense, len(pieces))
		areas := make([]Area, 0, len(pieces))
		for i, p := range pieces {
			ms[i] = p.dataset.Data
			if p.area != nil {
				areas = append(areas, p.area)
			}
		}
		if len(ms) == 1 {
			d.Data = mat.DenseCopyOf(ms[0])
		} else if err := checkColumns(ms); err != nil {
			return nil, err
		} else {
			d.Data = stackRows(ms)
		}
		if len(areas) == len(pieces) {
			area, err := StackAreas(areas...)
			if err != nil {
				return nil, err
			}
			d.Area = area
		}
		return d, nil
	}

	bySegment := make(map[int]loadResult, len(pieces))
	first := expected + 1
	for i, h := range handles {
		s := h.segment()
		if s < 1 || s > expected {
			return nil, fmt.Errorf("geocat: %s: segment %d outside of 1-%d", h.Filename, s, expected)
		}
		if _, dup := bySegment[s]; dup {
			return nil, fmt.Errorf("geocat: more than one file for segment %d of %s; "+
				"restrict the time range to a single time slot", s, id.Name)
		}
		bySegment[s] = pieces[i]
		if s < first {
			first = s
		}
	}

	_, cols := pieces[0].dataset.Shape()
	ms := make([]*mat.Dense, 0, expected)
	areas := make([]Area, 0, expected)
	withArea := pieces[0].area != nil

	// Segments before the first one present are padded backwards from it.
	ref := bySegment[first]
	refRows, _ := ref.dataset.Shape()
	var earlier []Area
	refArea := lastDef(ref.area)
	firstArea := firstDef(ref.area)
	for s := first - 1; s >= 1; s-- {
		r.logPadding(id, s)
		ms = append(ms, nanDense(refRows, cols))
		if withArea {
			firstArea = padEarlier(firstArea)
			earlier = append(earlier, firstArea)
		}
	}
	for i := len(earlier) - 1; i >= 0; i-- {
		areas = append(areas, earlier[i])
	}

	rows := refRows
	for s := first; s <= expected; s++ {
		p, ok := bySegment[s]
		if !ok {
			r.logPadding(id, s)
			ms = append(ms, nanDense(rows, cols))
			if withArea {
				refArea = padLater(refArea)
				areas = append(areas, refArea)
			}
			continue
		}
		if _, c := p.dataset.Shape(); c != cols {
			return nil, fmt.Errorf("geocat: segment %d of %s has %d columns, want %d", s, id.Name, c, cols)
		}
		rows, _ = p.dataset.Shape()
		ms = append(ms, p.dataset.Data)
		if withArea {
			if p.area == nil {
				return nil, fmt.Errorf("geocat: segment %d of %s has no area", s, id.Name)
			}
			areas = append(areas, p.area)
			refArea = lastDef(p.area)
		}
	}
	d.Data = stackRows(ms)
	if len(ms) == 1 {
		d.Data = mat.DenseCopyOf(d.Data)
	}
	if withArea {
		area, err := StackAreas(areas...)
		if err != nil {
			return nil, err
		}
		d.Area = area
	}
	return d, nil
}

func (r *Reader) logPadding(id DatasetID, segment int) {
	r.log.WithFields(logrus.Fields{
		"dataset": id.Name,
		"segment": segment,
	}).Debug("padding missing segment")
}

func checkColumns(ms []*mat.Dense) error {
	_, cols := ms[0].Dims()
	for i, m := range ms[1:] {
		if _, c := m.Dims(); c != cols {
			return fmt.Errorf("geocat: piece %d has %d columns, want %d", i+1, c, cols)
		}
	}
	return nil
}

func nanDense(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nanSlice(rows*cols))
}

func firstDef(a Area) *AreaDefinition {
	switch t := a.(type) {
	case *AreaDefinition:
		return t
	case *StackedAreaDefinition:
		return t.Defs[0]
	}
	return nil
}

func lastDef(a Area) *AreaDefinition {
	switch t := a.(type) {
	case *AreaDefinition:
		return t
	case *StackedAreaDefinition:
		return t.Defs[len(t.Defs)-1]
	}
	return nil
}

// padLater returns the area of the segment following ref.
func padLater(ref *AreaDefinition) *AreaDefinition {
	diff := ref.Extent[1] - ref.Extent[3]
	o := fillArea(ref)
	o.Extent = [4]float64{ref.Extent[0], ref.Extent[1] + diff, ref.Extent[2], ref.Extent[1]}
	return o
}

// padEarlier returns the area of the segment preceding ref.
func padEarlier(ref *AreaDefinition) *AreaDefinition {
	diff := ref.Extent[1] - ref.Extent[3]
	o := fillArea(ref)
	o.Extent = [4]float64{ref.Extent[0], ref.Extent[3], ref.Extent[2], ref.Extent[3] - diff}
	return o
}

func fillArea(ref *AreaDefinition) *AreaDefinition {
	return &AreaDefinition{
		AreaID:      "fill",
		Description: "fill",
		ProjID:      "fill",
		Projection:  ref.Projection,
		Width:       ref.Width,
		Height:      ref.Height,
	}
}
