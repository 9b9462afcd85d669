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

	"gopkg.in/yaml.v3"
)

// Wavelength is the spectral range of a channel in µm.
type Wavelength struct {
	Min, Central, Max float64
}

// Contains returns whether the wavelength w (in µm) falls within the
// range of the channel.
func (wl Wavelength) Contains(w float64) bool {
	return w >= wl.Min && w <= wl.Max
}

// Distance returns the absolute difference between w and the central
// wavelength.
func (wl Wavelength) Distance(w float64) float64 {
	return math.Abs(wl.Central - w)
}

// IsZero returns whether wl is unset.
func (wl Wavelength) IsZero() bool {
	return wl == Wavelength{}
}

// Check returns an error if wl is not a valid range.
func (wl Wavelength) Check() error {
	if wl.Min <= 0 || wl.Central <= 0 || wl.Max <= 0 {
		return fmt.Errorf("wavelengths must be positive: %v", wl)
	}
	if wl.Min > wl.Central || wl.Central > wl.Max {
		return fmt.Errorf("wavelengths must satisfy min <= central <= max: %v", wl)
	}
	return nil
}

func (wl Wavelength) String() string {
	return fmt.Sprintf("%g µm (%g-%g µm)", wl.Central, wl.Min, wl.Max)
}

// Triplet returns wl as a [min, central, max] slice.
func (wl Wavelength) Triplet() []float64 {
	return []float64{wl.Min, wl.Central, wl.Max}
}

// UnmarshalYAML decodes a [min, central, max] sequence.
func (wl *Wavelength) UnmarshalYAML(value *yaml.Node) error {
	var v []float64
	if err := value.Decode(&v); err != nil {
		return err
	}
	return wl.fromTriplet(v)
}

// MarshalYAML encodes wl as a [min, central, max] sequence.
func (wl Wavelength) MarshalYAML() (interface{}, error) {
	return wl.Triplet(), nil
}

func (wl *Wavelength) fromTriplet(v []float64) error {
	if len(v) != 3 {
		return fmt.Errorf("wavelength must have 3 elements (min, central, max), got %d", len(v))
	}
	wl.Min, wl.Central, wl.Max = v[0], v[1], v[2]
	return nil
}
