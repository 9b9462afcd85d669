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

// Package geocat is a dataset catalogue and reader for geostationary
// satellite imagery.
//
// A Catalogue enumerates the spectral channels of an instrument: their
// names, wavelength ranges, nominal ground resolutions and the calibration
// levels each channel supports, together with the physical units of each
// level. Channels are tied to file types, each of which carries a set of
// filename patterns and the name of the file handler that knows how to
// decode files of that type. File handlers register themselves with
// RegisterFileHandler, and a Reader uses the catalogue to select files,
// create handlers and load calibrated, segment-assembled datasets.
package geocat

// Version gives the version number.
const Version = "0.3.0"
