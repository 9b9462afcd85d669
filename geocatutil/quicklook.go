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

package geocatutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ctessum/geom/encoding/geojson"
	"github.com/geocat/geocat"
	"github.com/geocat/geocat/cloud"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// grid adapts a dataset to plotter.GridXYZ. Coordinates are pixel centres
// in projection metres when the dataset has a single area definition and
// pixel indices otherwise. Columns and rows are reordered so that both
// coordinates increase.
type grid struct {
	d              *geocat.Dataset
	rows, cols     int
	x0, dx, y0, dy float64
	flipX, flipY   bool
	min, max       float64
}

func newGrid(d *geocat.Dataset) *grid {
	g := &grid{d: d, x0: 0.5, dx: 1, y0: 0.5, dy: 1}
	g.rows, g.cols = d.Shape()
	if a, ok := d.Area.(*geocat.AreaDefinition); ok && a.Width == g.cols && a.Height == g.rows {
		g.dx, g.dy = a.PixelSize()
		g.x0 = a.Extent[0] + g.dx/2
		g.y0 = a.Extent[1] + g.dy/2
	}
	if g.dx < 0 {
		g.x0 += g.dx * float64(g.cols-1)
		g.dx = -g.dx
		g.flipX = true
	}
	if g.dy < 0 {
		g.y0 += g.dy * float64(g.rows-1)
		g.dy = -g.dy
		g.flipY = true
	}
	s := d.Stats()
	g.min, g.max = s.Min, s.Max
	return g
}

func (g *grid) Dims() (c, r int) { return g.cols, g.rows }

func (g *grid) Z(c, r int) float64 {
	if g.flipX {
		c = g.cols - 1 - c
	}
	if g.flipY {
		r = g.rows - 1 - r
	}
	return g.d.Data.At(r, c)
}

func (g *grid) X(c int) float64 { return g.x0 + float64(c)*g.dx }
func (g *grid) Y(r int) float64 { return g.y0 + float64(r)*g.dy }
func (g *grid) Min() float64    { return g.min }
func (g *grid) Max() float64    { return g.max }

// Quicklook draws d as a heat map and saves it to path, which may be a
// blob storage URL. The image format follows from the file extension.
func Quicklook(ctx context.Context, path string, d *geocat.Dataset) error {
	if d.Valid() == 0 {
		return fmt.Errorf("geocat: %s has no valid pixels to draw", d.ID)
	}
	g := newGrid(d)
	p := plot.New()
	p.Title.Text = d.ID.String()
	if start, ok := d.Attrs["start_time"]; ok {
		p.Title.Text = fmt.Sprintf("%s %v", p.Title.Text, start)
	}
	if _, ok := d.Area.(*geocat.AreaDefinition); ok {
		p.X.Label.Text = "x (m)"
		p.Y.Label.Text = "y (m)"
	} else {
		p.X.Label.Text = "column"
		p.Y.Label.Text = "row"
	}
	hm := plotter.NewHeatMap(g, palette.Heat(256, 1))
	if g.min == g.max {
		hm.Max = g.max + 1
	}
	p.Add(hm)

	local := path
	if cloud.IsBlob(path) {
		dir, err := os.MkdirTemp("", "geocat")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		local = filepath.Join(dir, filepath.Base(path))
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, local); err != nil {
		return fmt.Errorf("geocat: saving quicklook: %v", err)
	}
	if local != path {
		return cloud.Upload(ctx, local, path)
	}
	return nil
}

// PrintArea writes area to w as indented JSON, or its footprint as
// GeoJSON.
func PrintArea(w io.Writer, area geocat.Area, asGeoJSON bool) error {
	if area == nil {
		return fmt.Errorf("geocat: dataset has no area")
	}
	if asGeoJSON {
		b, err := geojson.Encode(area.Polygon())
		if err != nil {
			return fmt.Errorf("geocat: encoding area: %v", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(area)
}
