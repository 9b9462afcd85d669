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
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestDatasetStats(t *testing.T) {
	nan := math.NaN()
	d := &Dataset{Data: mat.NewDense(2, 3, []float64{1, nan, 3, 4, 5, nan})}
	if r, c := d.Shape(); r != 2 || c != 3 {
		t.Errorf("shape %dx%d", r, c)
	}
	if v := d.Valid(); v != 4 {
		t.Errorf("valid: have %d, want 4", v)
	}
	s := d.Stats()
	want := Stats{Valid: 4, Min: 1, Max: 5, Mean: 13.0 / 4}
	if s != want {
		t.Errorf("stats: have %+v, want %+v", s, want)
	}

	d.Apply(func(v float64) float64 { return v * 2 })
	if s := d.Stats(); s.Max != 10 || s.Valid != 4 {
		t.Errorf("after apply: %+v", s)
	}
}

func TestDatasetStatsEmpty(t *testing.T) {
	d := NewDataset(DatasetID{Name: "x"}, 2, 2)
	if d.Valid() != 0 {
		t.Errorf("valid %d", d.Valid())
	}
	s := d.Stats()
	if s.Valid != 0 || !math.IsNaN(s.Min) || !math.IsNaN(s.Max) || !math.IsNaN(s.Mean) {
		t.Errorf("stats %+v", s)
	}
	var empty Dataset
	if r, c := empty.Shape(); r != 0 || c != 0 {
		t.Errorf("empty shape %dx%d", r, c)
	}
}

func TestStackRows(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	have := stackRows([]*mat.Dense{a, b})
	want := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	if !mat.Equal(have, want) {
		t.Errorf("have %v, want %v", mat.Formatted(have), mat.Formatted(want))
	}
}
