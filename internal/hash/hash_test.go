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

package hash

import (
	"math"
	"testing"
)

type id struct {
	Name        string
	Resolution  float64
	Calibration string
}

type opaque struct {
	name string
}

func TestKey(t *testing.T) {
	a := Key("file.nc", id{Name: "ir_105", Resolution: 2000, Calibration: "brightness_temperature"})
	b := Key("file.nc", id{Name: "ir_105", Resolution: 2000, Calibration: "brightness_temperature"})
	if a != b {
		t.Errorf("equal inputs gave different keys %s and %s", a, b)
	}
	c := Key("file.nc", id{Name: "ir_105", Resolution: 2000, Calibration: "radiance"})
	if a == c {
		t.Error("different inputs gave the same key")
	}
	if len(a) != 32 {
		t.Errorf("key length %d", len(a))
	}
}

func TestKeyOrder(t *testing.T) {
	if Key("a", "b") == Key("b", "a") {
		t.Error("key should depend on argument order")
	}
	if Key("ab") == Key("a", "b") {
		t.Error("key should depend on argument boundaries")
	}
}

func TestKeyFallback(t *testing.T) {
	a := Key(opaque{name: "x"}, math.NaN(), nil)
	b := Key(opaque{name: "x"}, math.NaN(), nil)
	if a != b {
		t.Errorf("spew fallback is not deterministic: %s != %s", a, b)
	}
	if a == Key(opaque{name: "y"}, math.NaN(), nil) {
		t.Error("spew fallback ignores unexported fields")
	}
}
