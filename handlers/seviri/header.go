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
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Number of lines and columns of a full disk image.
const (
	visirNumLines   = 3712
	visirNumColumns = 3712
	hrvNumColumns   = 11136
)

// channelNames lists the channels in the order of their band IDs.
var channelNames = []string{
	"VIS006", "VIS008", "IR_016", "IR_039", "WV_062", "WV_073",
	"IR_087", "IR_097", "IR_108", "IR_120", "IR_134", "HRV",
}

// visChannels are calibrated from the nominal coefficients in every
// calibration mode.
var visChannels = map[string]bool{"HRV": true, "VIS006": true, "VIS008": true, "IR_016": true}

// channelIndex returns the band index of the named channel, or -1.
func channelIndex(name string) int {
	for i, n := range channelNames {
		if n == name {
			return i
		}
	}
	return -1
}

// cdsTime is a CCSDS day segmented time.
type cdsTime struct {
	Days         uint16 // since 1958-01-01
	Milliseconds uint32 // of the day
}

var cdsEpoch = time.Date(1958, 1, 1, 0, 0, 0, 0, time.UTC)

func (t cdsTime) Time() time.Time {
	return cdsEpoch.AddDate(0, 0, int(t.Days)).Add(time.Duration(t.Milliseconds) * time.Millisecond)
}

// referenceGrid describes the pixel grid of the VISIR or HRV channels.
type referenceGrid struct {
	NumberOfLines     int32
	NumberOfColumns   int32
	LineDirGridStep   float32 // km
	ColumnDirGridStep float32 // km
	GridOrigin        uint8   // 0 NW, 1 SW, 2 SE, 3 NE
}

// header is the level-1.5 header record at the start of a file. It holds
// the subset of the product, image description and radiometric
// processing sections that the handler uses. All values are big-endian.
type header struct {
	SatelliteID           uint16
	TrueRepeatCycleStart  cdsTime
	PlannedRepeatCycleEnd cdsTime

	TypeOfEarthModel uint8
	EquatorialRadius float64 // km
	NorthPolarRadius float64 // km
	SouthPolarRadius float64 // km
	LongitudeOfSSP   float32 // degrees

	ReferenceGridVISIR referenceGrid
	ReferenceGridHRV   referenceGrid

	// PlannedChanProcessing gives the calibration type of each channel:
	// 1 for spectral radiances, 2 for effective radiances.
	PlannedChanProcessing [12]uint8

	CalSlope         [12]float64
	CalOffset        [12]float64
	GSICSCalCoeff    [12]float64
	GSICSOffsetCount [12]float64

	// SelectedBandIDs has an X for each channel present in the file.
	SelectedBandIDs [12]byte

	NorthLineSelectedRectangle  int32
	SouthLineSelectedRectangle  int32
	EastColumnSelectedRectangle int32
	WestColumnSelectedRectangle int32

	NumberLinesVISIR   int32
	NumberColumnsVISIR int32
	NumberLinesHRV     int32
	NumberColumnsHRV   int32
}

// lineHeader precedes the packed samples of each line record.
type lineHeader struct {
	GPPKHeader   [22]byte
	GPPKSH1      [16]byte
	Version      uint8
	SatID        uint16
	Time         [5]uint16
	LineNo       uint32
	ChanID       uint8
	AcqTime      [3]uint16
	LineValidity uint8
	LineRQuality uint8
	LineGQuality uint8
}

// trailer is the record following the image data.
type trailer struct {
	// ReducedScan is 1 for rapid scanning service files.
	ReducedScan uint8

	LowerSouthLineActual  int32
	LowerNorthLineActual  int32
	LowerEastColumnActual int32
	LowerWestColumnActual int32
	UpperSouthLineActual  int32
	UpperNorthLineActual  int32
	UpperEastColumnActual int32
	UpperWestColumnActual int32
}

var (
	headerSize     = int64(binary.Size(header{}))
	lineHeaderSize = int64(binary.Size(lineHeader{}))
	trailerSize    = int64(binary.Size(trailer{}))
)

func readRecord(r io.Reader, v interface{}, what string) error {
	if err := binary.Read(r, binary.BigEndian, v); err != nil {
		return fmt.Errorf("seviri: reading %s: %v", what, err)
	}
	return nil
}

// availableChannels returns the names of the channels in the file in band
// order.
func (h *header) availableChannels() []string {
	var o []string
	for i, c := range h.SelectedBandIDs {
		if c == 'X' {
			o = append(o, channelNames[i])
		}
	}
	return o
}

// satNum maps satellite IDs to Meteosat numbers.
var satNum = map[uint16]string{
	321: "8",
	322: "9",
	323: "10",
	324: "11",
}

// dec10216 unpacks 10-bit samples, four from every five bytes.
func dec10216(dst []float64, b []byte) {
	for i := 0; i+4 < len(b) && 4*(i/5)+3 < len(dst); i += 5 {
		a0, a1, a2, a3, a4 := uint16(b[i]), uint16(b[i+1]), uint16(b[i+2]), uint16(b[i+3]), uint16(b[i+4])
		j := 4 * (i / 5)
		dst[j] = float64(a0<<2 | a1>>6)
		dst[j+1] = float64((a1&63)<<4 | a2>>4)
		dst[j+2] = float64((a2&15)<<6 | a3>>2)
		dst[j+3] = float64((a3&3)<<8 | a4)
	}
}
