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
	"strings"

	"github.com/ctessum/unit"
)

// Calibration is a radiometric calibration level.
type Calibration string

// These are the calibration levels a channel may support.
const (
	Counts                Calibration = "counts"
	Radiance              Calibration = "radiance"
	Reflectance           Calibration = "reflectance"
	BrightnessTemperature Calibration = "brightness_temperature"
)

// CalibrationPreference is the order in which calibration levels are
// chosen when a query does not ask for a specific one.
var CalibrationPreference = []Calibration{
	BrightnessTemperature,
	Reflectance,
	Radiance,
	Counts,
}

// String returns the underlying string value.
func (c Calibration) String() string {
	return string(c)
}

// rank returns the position of c in CalibrationPreference, or
// len(CalibrationPreference) if c is not a known level.
func (c Calibration) rank() int {
	for i, cc := range CalibrationPreference {
		if cc == c {
			return i
		}
	}
	return len(CalibrationPreference)
}

// Valid returns whether c is one of the known calibration levels.
func (c Calibration) Valid() bool {
	return c.rank() < len(CalibrationPreference)
}

// ParseCalibration converts s into a Calibration.
func ParseCalibration(s string) (Calibration, error) {
	c := Calibration(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("geocat: invalid calibration level %q", s)
	}
	return c, nil
}

// CalibrationInfo holds the physical labelling of one calibration level
// of a channel.
type CalibrationInfo struct {
	StandardName string `yaml:"standard_name" toml:"standard_name"`
	Units        string `yaml:"units" toml:"units"`
}

// CheckUnits returns an error if the units given by s are not
// dimensionally appropriate for calibration level c.
func (c Calibration) CheckUnits(s string) error {
	u, err := ParseUnits(s)
	if err != nil {
		return err
	}
	d := u.Dimensions()
	switch c {
	case Counts, Reflectance:
		if !d.Matches(unit.Dimless) {
			return fmt.Errorf("geocat: %s units %q should be dimensionless but are %s", c, s, d)
		}
	case BrightnessTemperature:
		if !d.Matches(unit.Kelvin) {
			return fmt.Errorf("geocat: %s units %q should be a temperature but are %s", c, s, d)
		}
	case Radiance:
		// Spectral radiance is power per area per solid angle per spectral
		// unit; the length dimension depends on whether the spectral unit
		// is a wavelength or a wavenumber.
		if d[unit.MassDim] != 1 || d[unit.TimeDim] != -3 {
			return fmt.Errorf("geocat: %s units %q should be a radiance but are %s", c, s, d)
		}
	default:
		return fmt.Errorf("geocat: invalid calibration level %q", c)
	}
	return nil
}
