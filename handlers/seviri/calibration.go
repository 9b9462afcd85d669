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
	"math"
	"strings"
	"time"

	"github.com/geocat/geocat"
	"github.com/sirupsen/logrus"
)

// Radiation constants for radiances in mW m-2 sr-1 (cm-1)-1.
const (
	c1 = 1.19104273e-5
	c2 = 1.43877523
)

// Calibration modes.
const (
	Nominal = "nominal"
	GSICS   = "gsics"
)

// channelCalib holds the solar irradiance of a visible channel, or the
// central wavenumber and band correction coefficients of an infrared
// channel.
type channelCalib struct {
	F           float64 // solar irradiance
	VC          float64 // cm-1
	Alpha, Beta float64
}

// calib holds the per-platform calibration constants, keyed by satellite
// ID.
var calib = map[uint16]map[string]channelCalib{
	321: { // Meteosat-8
		"HRV":    {F: 78.7599},
		"VIS006": {F: 65.2296},
		"VIS008": {F: 73.0127},
		"IR_016": {F: 62.3715},
		"IR_039": {VC: 2567.33, Alpha: 0.9956, Beta: 3.41},
		"WV_062": {VC: 1598.103, Alpha: 0.9962, Beta: 2.218},
		"WV_073": {VC: 1362.081, Alpha: 0.9991, Beta: 0.478},
		"IR_087": {VC: 1149.069, Alpha: 0.9996, Beta: 0.179},
		"IR_097": {VC: 1034.343, Alpha: 0.9999, Beta: 0.06},
		"IR_108": {VC: 930.647, Alpha: 0.9983, Beta: 0.625},
		"IR_120": {VC: 839.66, Alpha: 0.9988, Beta: 0.397},
		"IR_134": {VC: 752.387, Alpha: 0.9981, Beta: 0.578},
	},
	322: { // Meteosat-9
		"HRV":    {F: 79.0113},
		"VIS006": {F: 65.2065},
		"VIS008": {F: 73.1869},
		"IR_016": {F: 61.9923},
		"IR_039": {VC: 2568.832, Alpha: 0.9954, Beta: 3.438},
		"WV_062": {VC: 1600.548, Alpha: 0.9963, Beta: 2.185},
		"WV_073": {VC: 1360.330, Alpha: 0.9991, Beta: 0.47},
		"IR_087": {VC: 1148.620, Alpha: 0.9996, Beta: 0.179},
		"IR_097": {VC: 1035.289, Alpha: 0.9999, Beta: 0.056},
		"IR_108": {VC: 931.7, Alpha: 0.9983, Beta: 0.64},
		"IR_120": {VC: 836.445, Alpha: 0.9988, Beta: 0.408},
		"IR_134": {VC: 751.792, Alpha: 0.9981, Beta: 0.561},
	},
	323: { // Meteosat-10
		"HRV":    {F: 78.9416},
		"VIS006": {F: 65.5148},
		"VIS008": {F: 73.1807},
		"IR_016": {F: 62.0208},
		"IR_039": {VC: 2547.771, Alpha: 0.9915, Beta: 2.9002},
		"WV_062": {VC: 1595.621, Alpha: 0.9960, Beta: 2.0337},
		"WV_073": {VC: 1360.337, Alpha: 0.9991, Beta: 0.4340},
		"IR_087": {VC: 1148.130, Alpha: 0.9996, Beta: 0.1714},
		"IR_097": {VC: 1034.715, Alpha: 0.9999, Beta: 0.0527},
		"IR_108": {VC: 929.842, Alpha: 0.9983, Beta: 0.6084},
		"IR_120": {VC: 838.659, Alpha: 0.9988, Beta: 0.3882},
		"IR_134": {VC: 750.653, Alpha: 0.9982, Beta: 0.5390},
	},
	324: { // Meteosat-11
		"HRV":    {F: 79.0035},
		"VIS006": {F: 65.2656},
		"VIS008": {F: 73.1692},
		"IR_016": {F: 61.9416},
		"IR_039": {VC: 2555.280, Alpha: 0.9916, Beta: 2.9438},
		"WV_062": {VC: 1596.080, Alpha: 0.9959, Beta: 2.0780},
		"WV_073": {VC: 1361.748, Alpha: 0.9990, Beta: 0.4929},
		"IR_087": {VC: 1147.433, Alpha: 0.9996, Beta: 0.1731},
		"IR_097": {VC: 1034.851, Alpha: 0.9998, Beta: 0.0597},
		"IR_108": {VC: 931.122, Alpha: 0.9983, Beta: 0.6256},
		"IR_120": {VC: 839.113, Alpha: 0.9988, Beta: 0.4002},
		"IR_134": {VC: 748.585, Alpha: 0.9981, Beta: 0.5635},
	},
}

// btFit holds the quadratic coefficients that convert the brightness
// temperature of a spectral radiance to the channel brightness
// temperature.
var btFit = map[string][3]float64{
	"IR_039": {0.0, 1.011751900, -3.550400},
	"WV_062": {0.00001805700, 1.000255533, -1.790930},
	"WV_073": {0.00000231818, 1.000668281, -0.456166},
	"IR_087": {-0.00002332000, 1.011803400, -1.507390},
	"IR_097": {-0.00002055330, 1.009370670, -1.030600},
	"IR_108": {-0.00007392770, 1.032889800, -3.296740},
	"IR_120": {-0.00007009840, 1.031314600, -3.181090},
	"IR_134": {-0.00007293450, 1.030424800, -2.645950},
}

// parseCalibMode returns the normalized calibration mode.
func parseCalibMode(s string) (string, error) {
	switch m := strings.ToLower(s); m {
	case Nominal, GSICS:
		return m, nil
	}
	return "", fmt.Errorf("seviri: unknown calibration mode %q; must be %s or %s", s, Nominal, GSICS)
}

// tl15 inverts the Planck function.
func tl15(rad, wavenumber float64) float64 {
	return c2 * wavenumber / math.Log(c1*wavenumber*wavenumber*wavenumber/rad+1)
}

// calibrate converts the counts in d to the calibration level of d.ID.
func (h *Handler) calibrate(d *geocat.Dataset) error {
	start := time.Now()
	ch := d.ID.Name
	i := channelIndex(ch)
	switch d.ID.Calibration {
	case geocat.Counts:
		return nil
	case geocat.Radiance, geocat.Reflectance, geocat.BrightnessTemperature:
	default:
		return fmt.Errorf("seviri: unsupported calibration %q", d.ID.Calibration)
	}

	var gain, offset float64
	if h.calibMode != GSICS || visChannels[ch] {
		gain, offset = h.hdr.CalSlope[i], h.hdr.CalOffset[i]
	} else {
		gain = h.hdr.GSICSCalCoeff[i]
		offset = h.hdr.GSICSOffsetCount[i] * gain
	}
	d.Apply(func(v float64) float64 { return v*gain + offset })

	cc, ok := calib[h.hdr.SatelliteID][ch]
	if !ok {
		return fmt.Errorf("seviri: no calibration constants for %s on satellite %d", ch, h.hdr.SatelliteID)
	}
	switch d.ID.Calibration {
	case geocat.Reflectance:
		if cc.F == 0 {
			return fmt.Errorf("seviri: %s has no solar irradiance", ch)
		}
		d.Apply(func(v float64) float64 { return v * 100 / cc.F })
	case geocat.BrightnessTemperature:
		if cc.VC == 0 {
			return fmt.Errorf("seviri: %s has no central wavenumber", ch)
		}
		switch calType := h.hdr.PlannedChanProcessing[i]; calType {
		case 1:
			fit, ok := btFit[ch]
			if !ok {
				return fmt.Errorf("seviri: no brightness temperature fit for %s", ch)
			}
			d.Apply(func(v float64) float64 {
				t := tl15(v, cc.VC)
				return fit[0]*t*t + fit[1]*t + fit[2]
			})
		case 2:
			d.Apply(func(v float64) float64 { return (tl15(v, cc.VC) - cc.Beta) / cc.Alpha })
		default:
			return fmt.Errorf("seviri: unknown calibration type %d for %s", calType, ch)
		}
	}
	h.log.WithFields(logrus.Fields{
		"channel":     ch,
		"calibration": d.ID.Calibration,
		"mode":        h.calibMode,
		"time":        time.Since(start),
	}).Debug("calibrated channel")
	return nil
}
