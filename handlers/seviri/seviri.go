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

// Package seviri reads MSG SEVIRI level-1.5 image data in native format.
//
// A native file holds a header record, one line record per channel for
// every VISIR image line (plus three HRV line records when the HRV channel
// was selected) and a trailer record. Samples are packed at 10 bits.
package seviri

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/geocat/geocat"
	"github.com/sirupsen/logrus"
)

// Name is the name the handler is registered under.
const Name = "seviri_l1b_native"

// projectionHeight is the nominal altitude of the satellite above the
// Earth's surface in metres.
const projectionHeight = 35785831.0

func init() {
	geocat.RegisterFileHandler(Name, New)
}

// Handler reads a single SEVIRI native file.
type Handler struct {
	filename  string
	calibMode string
	log       logrus.FieldLogger

	hdr      header
	trl      trailer
	channels []string
	fullDisk bool

	// Dimensions of the image data. VISIR columns include the padding to
	// a multiple of four.
	lines, columns       int
	hrvLines, hrvColumns int

	mu sync.Mutex
	f  *os.File
}

// New opens filename and reads its header and trailer. The "calib_mode"
// option selects nominal or GSICS calibration coefficients.
func New(filename string, info map[string]interface{}, ft *geocat.FileType, opts geocat.HandlerOptions) (geocat.FileHandler, error) {
	mode, err := parseCalibMode(opts.String("calib_mode", Nominal))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("seviri: %v", err)
	}
	h := &Handler{
		filename:  filename,
		calibMode: mode,
		log:       logrus.WithField("handler", Name),
		f:         f,
	}
	if err := h.readHeader(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%v in %s", err, filename)
	}
	if err := h.readTrailer(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%v in %s", err, filename)
	}
	return h, nil
}

func (h *Handler) readHeader() error {
	if err := readRecord(io.NewSectionReader(h.f, 0, headerSize), &h.hdr, "header"); err != nil {
		return err
	}
	if _, ok := satNum[h.hdr.SatelliteID]; !ok {
		return fmt.Errorf("seviri: unknown satellite id %d", h.hdr.SatelliteID)
	}
	h.channels = h.hdr.availableChannels()
	if len(h.channels) == 0 {
		return fmt.Errorf("seviri: no channels selected")
	}

	ncolumns := int(h.hdr.WestColumnSelectedRectangle - h.hdr.EastColumnSelectedRectangle + 1)
	nrows := int(h.hdr.NorthLineSelectedRectangle - h.hdr.SouthLineSelectedRectangle + 1)
	h.fullDisk = nrows >= visirNumLines && ncolumns >= visirNumColumns

	// Columns are padded to a multiple of four.
	cols := ncolumns
	if m := ncolumns % 4; m > 0 {
		cols += 4 - m
	}
	if hdrCols := int(h.hdr.NumberColumnsVISIR); hdrCols != cols {
		h.log.WithFields(logrus.Fields{
			"file":       h.filename,
			"header":     hdrCols,
			"calculated": cols,
		}).Warn("number of VISIR columns from the header is incorrect")
	}
	h.lines = int(h.hdr.NumberLinesVISIR)
	h.columns = cols
	h.hrvLines = int(h.hdr.NumberLinesHRV)
	h.hrvColumns = int(h.hdr.NumberColumnsHRV)
	if ncolumns >= visirNumColumns {
		h.hrvColumns /= 2
	}
	return nil
}

func (h *Handler) hasHRV() bool {
	return h.hdr.SelectedBandIDs[channelIndex("HRV")] == 'X'
}

// visirChannels returns the number of VISIR line records per line.
func (h *Handler) visirChannels() int {
	n := len(h.channels)
	if h.hasHRV() {
		n--
	}
	return n
}

func (h *Handler) visirRecordSize() int64 { return lineHeaderSize + int64(h.columns)*5/4 }
func (h *Handler) hrvRecordSize() int64   { return lineHeaderSize + int64(h.hrvColumns)*5/4 }

// lineSize returns the size of the records of one VISIR line.
func (h *Handler) lineSize() int64 {
	n := int64(h.visirChannels()) * h.visirRecordSize()
	if h.hasHRV() {
		n += 3 * h.hrvRecordSize()
	}
	return n
}

func (h *Handler) readTrailer() error {
	off := headerSize + int64(h.lines)*h.lineSize()
	return readRecord(io.NewSectionReader(h.f, off, trailerSize), &h.trl, "trailer")
}

// StartTime returns the start of the repeat cycle.
func (h *Handler) StartTime() time.Time { return h.hdr.TrueRepeatCycleStart.Time() }

// EndTime returns the planned end of the repeat cycle.
func (h *Handler) EndTime() time.Time { return h.hdr.PlannedRepeatCycleEnd.Time() }

// PlatformName returns the name of the satellite, for example Meteosat-11.
func (h *Handler) PlatformName() string { return "Meteosat-" + satNum[h.hdr.SatelliteID] }

// AvailableChannels returns the channels selected for the file.
func (h *Handler) AvailableChannels() []string {
	return append([]string(nil), h.channels...)
}

// IsFullDisk returns whether the file covers the full Earth disk.
func (h *Handler) IsFullDisk() bool { return h.fullDisk }

// Close closes the file.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

// Dataset reads and calibrates the channel identified by id.
func (h *Handler) Dataset(ctx context.Context, id geocat.DatasetID, info *geocat.DatasetInfo) (*geocat.Dataset, error) {
	available := false
	for _, c := range h.channels {
		available = available || c == id.Name
	}
	if !available {
		return nil, fmt.Errorf("seviri: %s: %w: %s", h.filename, geocat.ErrChannelNotAvailable, id.Name)
	}
	d, err := h.counts(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := h.calibrate(d); err != nil {
		return nil, err
	}
	d.Attrs["platform_name"] = h.PlatformName()
	d.Attrs["orbital_parameters"] = map[string]float64{
		"projection_longitude": float64(h.hdr.LongitudeOfSSP),
		"projection_latitude":  0,
		"projection_altitude":  projectionHeight,
	}
	return d, nil
}

// counts unpacks the samples of a channel. Zero samples are missing and
// become NaN.
func (h *Handler) counts(ctx context.Context, id geocat.DatasetID) (*geocat.Dataset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil, fmt.Errorf("seviri: %s is closed", h.filename)
	}

	var d *geocat.Dataset
	if id.Name == "HRV" {
		d = geocat.NewDataset(id, h.hrvLines, h.hrvColumns)
	} else {
		d = geocat.NewDataset(id, h.lines, h.columns)
	}
	rows, _ := d.Shape()
	data := d.Data.RawMatrix()

	// Position of the channel among the VISIR records of a line.
	visirPos := 0
	for _, c := range h.channels {
		if c == id.Name {
			break
		}
		if c != "HRV" {
			visirPos++
		}
	}

	r := bufio.NewReaderSize(io.NewSectionReader(h.f, headerSize, int64(h.lines)*h.lineSize()), 1<<20)
	visirBuf := make([]byte, h.visirRecordSize())
	hrvBuf := make([]byte, h.hrvRecordSize())
	for l := 0; l < h.lines; l++ {
		if l%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for i := 0; i < h.visirChannels(); i++ {
			if _, err := io.ReadFull(r, visirBuf); err != nil {
				return nil, fmt.Errorf("seviri: %s: line %d: %v", h.filename, l, err)
			}
			if id.Name != "HRV" && i == visirPos {
				dec10216(data.Data[l*data.Stride:l*data.Stride+h.columns], visirBuf[lineHeaderSize:])
			}
		}
		if !h.hasHRV() {
			continue
		}
		for k := 0; k < 3; k++ {
			if _, err := io.ReadFull(r, hrvBuf); err != nil {
				return nil, fmt.Errorf("seviri: %s: HRV line %d: %v", h.filename, 3*l+k, err)
			}
			if row := 3*l + k; id.Name == "HRV" && row < rows {
				dec10216(data.Data[row*data.Stride:row*data.Stride+h.hrvColumns], hrvBuf[lineHeaderSize:])
			}
		}
	}
	for i, v := range data.Data {
		if v == 0 {
			data.Data[i] = math.NaN()
		}
	}
	return d, nil
}
