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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dataset is a loaded two-dimensional field. Invalid pixels are NaN.
type Dataset struct {
	ID    DatasetID
	Data  *mat.Dense
	Attrs map[string]interface{}
	Area  Area
}

// NewDataset returns a dataset of the given shape filled with NaN.
func NewDataset(id DatasetID, rows, cols int) *Dataset {
	d := &Dataset{
		ID:    id,
		Data:  mat.NewDense(rows, cols, nanSlice(rows*cols)),
		Attrs: make(map[string]interface{}),
	}
	return d
}

func nanSlice(n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = math.NaN()
	}
	return o
}

// Shape returns the number of rows and columns in d.
func (d *Dataset) Shape() (rows, cols int) {
	if d.Data == nil {
		return 0, 0
	}
	return d.Data.Dims()
}

// Valid returns the number of non-NaN pixels in d.
func (d *Dataset) Valid() int {
	n := 0
	for _, v := range d.raw() {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// raw returns the backing data of d in row-major order.
func (d *Dataset) raw() []float64 {
	if d.Data == nil {
		return nil
	}
	r, c := d.Data.Dims()
	raw := d.Data.RawMatrix()
	if raw.Stride == c {
		return raw.Data[:r*c]
	}
	o := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		o = append(o, raw.Data[i*raw.Stride:i*raw.Stride+c]...)
	}
	return o
}

// Stats holds summary statistics over the valid pixels of a dataset.
type Stats struct {
	Valid          int
	Min, Max, Mean float64
}

// Stats returns summary statistics over the valid pixels of d. The
// statistics are NaN if d has no valid pixels.
func (d *Dataset) Stats() Stats {
	vals := make([]float64, 0)
	for _, v := range d.raw() {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	}
	return Stats{
		Valid: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Mean:  floats.Sum(vals) / float64(len(vals)),
	}
}

// Apply replaces every valid pixel v of d with f(v).
func (d *Dataset) Apply(f func(v float64) float64) {
	d.Data.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) {
			return v
		}
		return f(v)
	}, d.Data)
}

// stackRows stacks the rows of the given matrices. All matrices must have
// the same number of columns.
func stackRows(ms []*mat.Dense) *mat.Dense {
	if len(ms) == 1 {
		return ms[0]
	}
	var rows, cols int
	for _, m := range ms {
		r, c := m.Dims()
		rows += r
		cols = c
	}
	o := mat.NewDense(rows, cols, nil)
	row := 0
	for _, m := range ms {
		r, _ := m.Dims()
		o.Slice(row, row+r, 0, cols).(*mat.Dense).Copy(m)
		row += r
	}
	return o
}
