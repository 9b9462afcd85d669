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

package seviri

import (
	"fmt"

	"github.com/geocat/geocat"
)

var gridOrigins = map[uint8]string{0: "NW", 1: "SW", 2: "SE", 3: "NE"}

// projection returns the geostationary projection of the file.
func (h *Handler) projection() geocat.GeosProjection {
	return geocat.GeosProjection{
		A:    h.hdr.EquatorialRadius * 1000,
		B:    (h.hdr.NorthPolarRadius + h.hdr.SouthPolarRadius) * 500,
		H:    projectionHeight,
		Lon0: float64(h.hdr.LongitudeOfSSP),
	}
}

// areaExtent returns the extent of the rectangle of lines south..north and
// columns east..west, which are numbered from the south-east corner.
func areaExtent(centerPoint, north, east, south, west, weOffset, nsOffset, columnStep, lineStep float64) [4]float64 {
	return [4]float64{
		(centerPoint - east + 0.5 + weOffset) * columnStep,
		(north - centerPoint + 0.5 + nsOffset) * lineStep,
		(centerPoint - west - 0.5 + weOffset) * columnStep,
		(south - centerPoint - 0.5 + nsOffset) * lineStep,
	}
}

// AreaDef returns the area of the channel of id. The HRV channel of a full
// disk file covers two windows with different east-west offsets; their
// areas are stacked.
func (h *Handler) AreaDef(id geocat.DatasetID) (geocat.Area, error) {
	hrv := id.Name == "HRV"

	// The Earth model determines whether the grid is offset by half a
	// VISIR pixel.
	var nsOffset, weOffset float64
	switch h.hdr.TypeOfEarthModel {
	case 2:
	case 1:
		nsOffset, weOffset = -0.5, 0.5
		if hrv {
			nsOffset, weOffset = -1.5, 1.5
		}
	default:
		return nil, fmt.Errorf("seviri: unrecognised earth model %d", h.hdr.TypeOfEarthModel)
	}

	grid := h.hdr.ReferenceGridVISIR
	centerPoint := float64(visirNumColumns) / 2
	coeff := 1.0
	if hrv {
		grid = h.hdr.ReferenceGridHRV
		centerPoint = float64(hrvNumColumns)/2 - 2
		coeff = 3
	}
	if grid.GridOrigin != 2 {
		return nil, fmt.Errorf("seviri: grid origin %d (%s corner) not supported", grid.GridOrigin, gridOrigins[grid.GridOrigin])
	}
	columnStep := float64(grid.ColumnDirGridStep) * 1000
	lineStep := float64(grid.LineDirGridStep) * 1000

	def := func(desc string, lines, cols int, extent [4]float64) *geocat.AreaDefinition {
		a := &geocat.AreaDefinition{
			AreaID:      "geos_seviri_visir",
			Description: desc,
			ProjID:      "seviri_visir",
			Projection:  h.projection(),
			Width:       cols,
			Height:      lines,
			Extent:      extent,
		}
		if hrv {
			a.AreaID, a.ProjID = "geos_seviri_hrv", "seviri_hrv"
		}
		return a
	}

	rapidScan := h.trl.ReducedScan != 0
	if hrv && (h.fullDisk || rapidScan) {
		t := h.trl
		lower := def("SEVIRI high resolution channel, lower window",
			int(t.LowerNorthLineActual-t.LowerSouthLineActual+1),
			int(t.LowerWestColumnActual-t.LowerEastColumnActual+1),
			areaExtent(centerPoint, float64(t.LowerNorthLineActual), float64(t.LowerEastColumnActual),
				float64(t.LowerSouthLineActual), float64(t.LowerWestColumnActual),
				weOffset, nsOffset, columnStep, lineStep))
		if rapidScan {
			lower.Description = "SEVIRI high resolution channel area"
			lower.Height, lower.Width = h.hrvLines, h.hrvColumns
			return lower, nil
		}
		upper := def("SEVIRI high resolution channel, upper window",
			int(t.UpperNorthLineActual-t.UpperSouthLineActual+1),
			int(t.UpperWestColumnActual-t.UpperEastColumnActual+1),
			areaExtent(centerPoint, float64(t.UpperNorthLineActual), float64(t.UpperEastColumnActual),
				float64(t.UpperSouthLineActual), float64(t.UpperWestColumnActual),
				weOffset, nsOffset, columnStep, lineStep))
		return geocat.StackAreas(lower, upper)
	}

	// Region of interest files use the selected rectangle, which is given
	// in VISIR pixels.
	extent := areaExtent(centerPoint,
		coeff*float64(h.hdr.NorthLineSelectedRectangle),
		coeff*float64(h.hdr.EastColumnSelectedRectangle),
		coeff*float64(h.hdr.SouthLineSelectedRectangle),
		coeff*float64(h.hdr.WestColumnSelectedRectangle),
		weOffset, nsOffset, columnStep, lineStep)
	if hrv {
		return def("SEVIRI high resolution channel area", h.hrvLines, h.hrvColumns, extent), nil
	}
	return def("SEVIRI low resolution channel area", h.lines, h.columns, extent), nil
}
