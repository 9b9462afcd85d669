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
	"testing"

	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		s     string
		value float64
		dims  unit.Dimensions
	}{
		{s: "K", value: 1, dims: unit.Kelvin},
		{s: "%", value: 0.01, dims: unit.Dimless},
		{s: "1", value: 1, dims: unit.Dimless},
		{s: "count", value: 1, dims: unit.Dimless},
		{
			s:     "mW m-2 sr-1 (cm-1)-1",
			value: 1e-5,
			dims:  unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 1, unit.TimeDim: -3, unit.AngleDim: -2},
		},
		{
			s:     "W m-2 sr-1 um-1",
			value: 1e6,
			dims:  unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -1, unit.TimeDim: -3, unit.AngleDim: -2},
		},
		{s: "km^2", value: 1e6, dims: unit.Dimensions{unit.LengthDim: 2}},
		{s: "kg m s-2", value: 1, dims: unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 1, unit.TimeDim: -2}},
	}
	for _, test := range tests {
		t.Run(test.s, func(t *testing.T) {
			u, err := ParseUnits(test.s)
			if err != nil {
				t.Fatal(err)
			}
			if !scalar.EqualWithinRel(u.Value(), test.value, 1e-12) {
				t.Errorf("value: have %g, want %g", u.Value(), test.value)
			}
			if !u.Dimensions().Matches(test.dims) {
				t.Errorf("dimensions: have %v, want %v", u.Dimensions(), test.dims)
			}
		})
	}
}

func TestParseUnitsErrors(t *testing.T) {
	for _, s := range []string{"", "furlong", "(m", "m)", "m-x"} {
		if _, err := ParseUnits(s); err == nil {
			t.Errorf("%q: expected an error", s)
		}
	}
}

func TestCheckUnits(t *testing.T) {
	tests := []struct {
		cal   Calibration
		units string
		ok    bool
	}{
		{Counts, "count", true},
		{Counts, "1", true},
		{Counts, "K", false},
		{Reflectance, "%", true},
		{Reflectance, "W m-2", false},
		{BrightnessTemperature, "K", true},
		{BrightnessTemperature, "%", false},
		{Radiance, "mW m-2 sr-1 (cm-1)-1", true},
		{Radiance, "W m-2 sr-1 um-1", true},
		{Radiance, "K", false},
		{Calibration("albedo"), "1", false},
	}
	for _, test := range tests {
		err := test.cal.CheckUnits(test.units)
		if (err == nil) != test.ok {
			t.Errorf("%s %q: have error %v, want ok=%v", test.cal, test.units, err, test.ok)
		}
	}
}

func TestParseCalibration(t *testing.T) {
	c, err := ParseCalibration(" Brightness_Temperature ")
	if err != nil {
		t.Fatal(err)
	}
	if c != BrightnessTemperature {
		t.Errorf("have %q", c)
	}
	if _, err := ParseCalibration("albedo"); err == nil {
		t.Error("expected an error")
	}
}
