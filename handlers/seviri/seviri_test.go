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
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/geocat/geocat"
	"gonum.org/v1/gonum/floats"
)

const (
	visirStep = 3.0004032 // km
	hrvStep   = 1.0001343 // km
)

func newCDSTime(t time.Time) cdsTime {
	d := t.Sub(cdsEpoch)
	days := d / (24 * time.Hour)
	return cdsTime{
		Days:         uint16(days),
		Milliseconds: uint32((d - days*24*time.Hour) / time.Millisecond),
	}
}

// pack10 packs samples at 10 bits, four to every five bytes.
func pack10(v []uint16) []byte {
	o := make([]byte, 0, len(v)*5/4)
	for i := 0; i+3 < len(v); i += 4 {
		v0, v1, v2, v3 := v[i], v[i+1], v[i+2], v[i+3]
		o = append(o,
			byte(v0>>2),
			byte((v0&3)<<6|v1>>4),
			byte((v1&15)<<4|v2>>6),
			byte((v2&63)<<2|v3>>8),
			byte(v3&255),
		)
	}
	return o
}

var testStart = time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

// testHeader describes a region of interest of four lines and six columns
// (padded to eight) holding VIS006, IR_108 and HRV.
func testHeader() header {
	h := header{
		SatelliteID:           324,
		TrueRepeatCycleStart:  newCDSTime(testStart),
		PlannedRepeatCycleEnd: newCDSTime(testStart.Add(15 * time.Minute)),
		TypeOfEarthModel:      2,
		EquatorialRadius:      6378.169,
		NorthPolarRadius:      6356.5838,
		SouthPolarRadius:      6356.5838,
		LongitudeOfSSP:        0,
		ReferenceGridVISIR: referenceGrid{
			NumberOfLines: 3712, NumberOfColumns: 3712,
			LineDirGridStep: visirStep, ColumnDirGridStep: visirStep, GridOrigin: 2,
		},
		ReferenceGridHRV: referenceGrid{
			NumberOfLines: 11136, NumberOfColumns: 11136,
			LineDirGridStep: hrvStep, ColumnDirGridStep: hrvStep, GridOrigin: 2,
		},
		NorthLineSelectedRectangle:  4,
		SouthLineSelectedRectangle:  1,
		EastColumnSelectedRectangle: 1,
		WestColumnSelectedRectangle: 6,
		NumberLinesVISIR:            4,
		NumberColumnsVISIR:          8,
		NumberLinesHRV:              12,
		NumberColumnsHRV:            24,
	}
	copy(h.SelectedBandIDs[:], "X-------X--X")
	h.PlannedChanProcessing[8] = 2
	h.CalSlope[0], h.CalOffset[0] = 0.02, -1
	h.CalSlope[8], h.CalOffset[8] = 0.2, -10
	h.CalSlope[11], h.CalOffset[11] = 0.01, -0.5
	h.GSICSCalCoeff[8], h.GSICSOffsetCount[8] = 0.25, -40
	return h
}

func vis006Count(l, j int) uint16 {
	if l == 1 && j == 2 {
		return 0
	}
	return uint16(100 + 10*l + j)
}

func ir108Count(l, j int) uint16 { return uint16(500 + 8*l + j) }

func hrvCount(row, col int) uint16 { return uint16(200 + 24*row + col) }

// writeFixture writes a native file for the test header after applying
// modify to it.
func writeFixture(t *testing.T, path string, modify func(*header)) {
	t.Helper()
	hdr := testHeader()
	if modify != nil {
		modify(&hdr)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	write := func(v interface{}) {
		if err := binary.Write(f, binary.BigEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	write(hdr)
	line := func(n int, count func(j int) uint16) {
		write(lineHeader{})
		v := make([]uint16, n)
		for j := range v {
			v[j] = count(j)
		}
		write(pack10(v))
	}
	for l := 0; l < 4; l++ {
		line(8, func(j int) uint16 { return vis006Count(l, j) })
		line(8, func(j int) uint16 { return ir108Count(l, j) })
		for k := 0; k < 3; k++ {
			line(24, func(j int) uint16 { return hrvCount(3*l+k, j) })
		}
	}
	write(trailer{})
}

func openFixture(t *testing.T, modify func(*header), opts geocat.HandlerOptions) *Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.nat")
	writeFixture(t, path, modify)
	fh, err := New(path, nil, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fh.Close() })
	return fh.(*Handler)
}

func load(t *testing.T, h *Handler, name string, cal geocat.Calibration) *geocat.Dataset {
	t.Helper()
	d, err := h.Dataset(context.Background(), geocat.DatasetID{Name: name, Calibration: cal}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestHandlerMetadata(t *testing.T) {
	h := openFixture(t, nil, nil)
	if !h.StartTime().Equal(testStart) {
		t.Errorf("start time %v", h.StartTime())
	}
	if want := testStart.Add(15 * time.Minute); !h.EndTime().Equal(want) {
		t.Errorf("end time %v, want %v", h.EndTime(), want)
	}
	if h.PlatformName() != "Meteosat-11" {
		t.Errorf("platform %s", h.PlatformName())
	}
	if want := []string{"VIS006", "IR_108", "HRV"}; !reflect.DeepEqual(h.AvailableChannels(), want) {
		t.Errorf("channels: have %v, want %v", h.AvailableChannels(), want)
	}
	if h.IsFullDisk() {
		t.Error("region of interest reported as full disk")
	}
	if h.lines != 4 || h.columns != 8 || h.hrvLines != 12 || h.hrvColumns != 24 {
		t.Errorf("dimensions %d %d %d %d", h.lines, h.columns, h.hrvLines, h.hrvColumns)
	}
}

func TestCounts(t *testing.T) {
	h := openFixture(t, nil, nil)
	d := load(t, h, "VIS006", geocat.Counts)
	if rows, cols := d.Shape(); rows != 4 || cols != 8 {
		t.Fatalf("shape %dx%d", rows, cols)
	}
	for l := 0; l < 4; l++ {
		for j := 0; j < 8; j++ {
			v := d.Data.At(l, j)
			if l == 1 && j == 2 {
				if !math.IsNaN(v) {
					t.Errorf("zero count at (1, 2) is %g, want NaN", v)
				}
				continue
			}
			if v != float64(vis006Count(l, j)) {
				t.Errorf("VIS006 (%d, %d): have %g, want %d", l, j, v, vis006Count(l, j))
			}
		}
	}
	ir := load(t, h, "IR_108", geocat.Counts)
	if v := ir.Data.At(3, 7); v != float64(ir108Count(3, 7)) {
		t.Errorf("IR_108 (3, 7): have %g", v)
	}
	hrv := load(t, h, "HRV", geocat.Counts)
	if rows, cols := hrv.Shape(); rows != 12 || cols != 24 {
		t.Fatalf("HRV shape %dx%d", rows, cols)
	}
	for _, p := range [][2]int{{0, 0}, {5, 13}, {11, 23}} {
		if v := hrv.Data.At(p[0], p[1]); v != float64(hrvCount(p[0], p[1])) {
			t.Errorf("HRV %v: have %g, want %d", p, v, hrvCount(p[0], p[1]))
		}
	}
	if d.Attrs["platform_name"] != "Meteosat-11" {
		t.Errorf("platform_name %v", d.Attrs["platform_name"])
	}
	op, ok := d.Attrs["orbital_parameters"].(map[string]float64)
	if !ok || op["projection_altitude"] != projectionHeight {
		t.Errorf("orbital parameters %v", d.Attrs["orbital_parameters"])
	}
}

func planck(rad, wn float64) float64 {
	return c2 * wn / math.Log(1+c1*wn*wn*wn/rad)
}

func TestCalibration(t *testing.T) {
	h := openFixture(t, nil, nil)

	rad := load(t, h, "VIS006", geocat.Radiance)
	if v := rad.Data.At(0, 0); math.Abs(v-1) > 1e-12 {
		t.Errorf("VIS006 radiance: have %g, want 1", v)
	}
	if !math.IsNaN(rad.Data.At(1, 2)) {
		t.Error("missing pixel was calibrated")
	}

	refl := load(t, h, "VIS006", geocat.Reflectance)
	if v, want := refl.Data.At(0, 0), 100/65.2656; math.Abs(v-want) > 1e-9 {
		t.Errorf("VIS006 reflectance: have %g, want %g", v, want)
	}

	bt := load(t, h, "IR_108", geocat.BrightnessTemperature)
	r := 500*0.2 - 10
	want := (planck(r, 931.122) - 0.6256) / 0.9983
	if v := bt.Data.At(0, 0); math.Abs(v-want) > 1e-9 {
		t.Errorf("IR_108 brightness temperature: have %g, want %g", v, want)
	}
	if want < 250 || want > 320 {
		t.Errorf("implausible brightness temperature %g", want)
	}

	hrv := load(t, h, "HRV", geocat.Radiance)
	if v, want := hrv.Data.At(1, 1), float64(hrvCount(1, 1))*0.01-0.5; math.Abs(v-want) > 1e-12 {
		t.Errorf("HRV radiance: have %g, want %g", v, want)
	}
}

func TestBTFit(t *testing.T) {
	h := openFixture(t, func(h *header) { h.PlannedChanProcessing[8] = 1 }, nil)
	bt := load(t, h, "IR_108", geocat.BrightnessTemperature)
	tl := planck(500*0.2-10, 931.122)
	fit := btFit["IR_108"]
	want := fit[0]*tl*tl + fit[1]*tl + fit[2]
	if v := bt.Data.At(0, 0); math.Abs(v-want) > 1e-9 {
		t.Errorf("have %g, want %g", v, want)
	}
}

func TestGSICS(t *testing.T) {
	h := openFixture(t, nil, geocat.HandlerOptions{"calib_mode": "GSICS"})
	ir := load(t, h, "IR_108", geocat.Radiance)
	if v := ir.Data.At(0, 0); math.Abs(v-115) > 1e-12 {
		t.Errorf("GSICS IR_108 radiance: have %g, want 115", v)
	}
	vis := load(t, h, "VIS006", geocat.Radiance)
	if v := vis.Data.At(0, 0); math.Abs(v-1) > 1e-12 {
		t.Errorf("GSICS VIS006 radiance: have %g, want nominal 1", v)
	}
}

func TestCalibrationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.nat")
	writeFixture(t, path, nil)
	if _, err := New(path, nil, nil, geocat.HandlerOptions{"calib_mode": "fancy"}); err == nil {
		t.Error("unknown calibration mode accepted")
	}

	h := openFixture(t, func(h *header) { h.PlannedChanProcessing[8] = 3 }, nil)
	if _, err := h.Dataset(context.Background(), geocat.DatasetID{Name: "IR_108", Calibration: geocat.BrightnessTemperature}, nil); err == nil {
		t.Error("unknown calibration type accepted")
	}
	if _, err := h.Dataset(context.Background(), geocat.DatasetID{Name: "VIS006", Calibration: geocat.BrightnessTemperature}, nil); err == nil {
		t.Error("brightness temperature of a visible channel")
	}
	_, err := h.Dataset(context.Background(), geocat.DatasetID{Name: "WV_062", Calibration: geocat.Radiance}, nil)
	if !errors.Is(err, geocat.ErrChannelNotAvailable) {
		t.Errorf("have error %v, want %v", err, geocat.ErrChannelNotAvailable)
	}
}

func TestBadHeader(t *testing.T) {
	for name, modify := range map[string]func(*header){
		"satellite": func(h *header) { h.SatelliteID = 55 },
		"channels":  func(h *header) { h.SelectedBandIDs = [12]byte{} },
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.nat")
			writeFixture(t, path, modify)
			if _, err := New(path, nil, nil, nil); err == nil {
				t.Error("bad header accepted")
			}
		})
	}
}

func TestCanceled(t *testing.T) {
	h := openFixture(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Dataset(ctx, geocat.DatasetID{Name: "VIS006", Calibration: geocat.Counts}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("have error %v, want %v", err, context.Canceled)
	}
}

func areaDef(t *testing.T, h *Handler, name string) *geocat.AreaDefinition {
	t.Helper()
	a, err := h.AreaDef(geocat.DatasetID{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	ad, ok := a.(*geocat.AreaDefinition)
	if !ok {
		t.Fatalf("area type %T", a)
	}
	return ad
}

func TestAreaDefRegionOfInterest(t *testing.T) {
	h := openFixture(t, nil, nil)
	vs, hs := visirStep*1000, hrvStep*1000

	vis := areaDef(t, h, "VIS006")
	want := []float64{1855.5 * vs, -1851.5 * vs, 1849.5 * vs, -1855.5 * vs}
	if !floats.EqualApprox(vis.Extent[:], want, 1e-3) {
		t.Errorf("VISIR extent: have %v, want %v", vis.Extent, want)
	}
	if vis.Width != 8 || vis.Height != 4 || vis.AreaID != "geos_seviri_visir" {
		t.Errorf("VISIR area %v", vis)
	}
	if math.Abs(vis.Projection.A-6378169) > 1e-6 || math.Abs(vis.Projection.B-6356583.8) > 1e-6 || vis.Projection.H != projectionHeight {
		t.Errorf("projection %+v", vis.Projection)
	}

	hrv := areaDef(t, h, "HRV")
	want = []float64{5563.5 * hs, -5553.5 * hs, 5547.5 * hs, -5563.5 * hs}
	if !floats.EqualApprox(hrv.Extent[:], want, 1e-3) {
		t.Errorf("HRV extent: have %v, want %v", hrv.Extent, want)
	}
	if hrv.Width != 24 || hrv.Height != 12 || hrv.ProjID != "seviri_hrv" {
		t.Errorf("HRV area %v", hrv)
	}
}

func TestAreaDefEarthModel(t *testing.T) {
	h := openFixture(t, func(h *header) { h.TypeOfEarthModel = 1 }, nil)
	vs := visirStep * 1000
	vis := areaDef(t, h, "IR_108")
	want := []float64{1856 * vs, -1852 * vs, 1850 * vs, -1856 * vs}
	if !floats.EqualApprox(vis.Extent[:], want, 1e-3) {
		t.Errorf("extent: have %v, want %v", vis.Extent, want)
	}

	h.hdr.TypeOfEarthModel = 3
	if _, err := h.AreaDef(geocat.DatasetID{Name: "IR_108"}); err == nil {
		t.Error("unknown earth model accepted")
	}
	h.hdr.TypeOfEarthModel = 2
	h.hdr.ReferenceGridVISIR.GridOrigin = 0
	if _, err := h.AreaDef(geocat.DatasetID{Name: "IR_108"}); err == nil {
		t.Error("north-west grid origin accepted")
	}
}

func TestAreaDefHRVFullDisk(t *testing.T) {
	h := &Handler{
		hdr:      testHeader(),
		fullDisk: true,
		trl: trailer{
			LowerSouthLineActual: 1, LowerNorthLineActual: 5,
			LowerEastColumnActual: 1, LowerWestColumnActual: 10,
			UpperSouthLineActual: 6, UpperNorthLineActual: 12,
			UpperEastColumnActual: 5, UpperWestColumnActual: 14,
		},
	}
	a, err := h.AreaDef(geocat.DatasetID{Name: "HRV"})
	if err != nil {
		t.Fatal(err)
	}
	s, ok := a.(*geocat.StackedAreaDefinition)
	if !ok || len(s.Defs) != 2 {
		t.Fatalf("have %T %v, want two stacked windows", a, a)
	}
	if rows, cols := s.Shape(); rows != 12 || cols != 10 {
		t.Errorf("shape %dx%d", rows, cols)
	}
	hs := hrvStep * 1000
	lower := []float64{5565.5 * hs, -5560.5 * hs, 5555.5 * hs, -5565.5 * hs}
	upper := []float64{5561.5 * hs, -5553.5 * hs, 5551.5 * hs, -5560.5 * hs}
	if !floats.EqualApprox(s.Defs[0].Extent[:], lower, 1e-3) {
		t.Errorf("lower window: have %v, want %v", s.Defs[0].Extent, lower)
	}
	if !floats.EqualApprox(s.Defs[1].Extent[:], upper, 1e-3) {
		t.Errorf("upper window: have %v, want %v", s.Defs[1].Extent, upper)
	}

	// Windows with the same columns merge.
	h.trl.UpperEastColumnActual, h.trl.UpperWestColumnActual = 1, 10
	merged := areaDef(t, h, "HRV")
	if merged.Height != 12 || merged.Width != 10 {
		t.Errorf("merged area %v", merged)
	}
}

func TestAreaDefHRVRapidScan(t *testing.T) {
	h := &Handler{
		hdr:        testHeader(),
		hrvLines:   9,
		hrvColumns: 10,
		trl: trailer{
			ReducedScan:          1,
			LowerSouthLineActual: 1, LowerNorthLineActual: 9,
			LowerEastColumnActual: 1, LowerWestColumnActual: 10,
		},
	}
	hrv := areaDef(t, h, "HRV")
	if hrv.Height != 9 || hrv.Width != 10 {
		t.Errorf("shape %dx%d", hrv.Height, hrv.Width)
	}
	hs := hrvStep * 1000
	want := []float64{5565.5 * hs, -5556.5 * hs, 5555.5 * hs, -5565.5 * hs}
	if !floats.EqualApprox(hrv.Extent[:], want, 1e-3) {
		t.Errorf("extent: have %v, want %v", hrv.Extent, want)
	}
}

func TestReader(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "MSG4-SEVI-MSG15-0100-NA-20200101121243.123000000Z-NA.nat"), nil)

	c, err := geocat.BuiltinCatalogue(Name)
	if err != nil {
		t.Fatal(err)
	}
	r, err := geocat.NewReader(c)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	files, err := r.SelectFilesFromDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateFileHandlers(context.Background(), files); err != nil {
		t.Fatal(err)
	}
	if n := len(r.AvailableIDs()); n != 9 {
		t.Errorf("have %d available IDs, want 9", n)
	}
	ds, err := r.Load(context.Background(), geocat.DatasetQuery{Name: "IR_108"})
	if err != nil {
		t.Fatal(err)
	}
	for id, d := range ds {
		if id.Calibration != geocat.BrightnessTemperature {
			t.Errorf("calibration %s", id.Calibration)
		}
		if rows, cols := d.Shape(); rows != 4 || cols != 8 {
			t.Errorf("shape %dx%d", rows, cols)
		}
		if d.Attrs["units"] != "K" || d.Attrs["platform_name"] != "Meteosat-11" {
			t.Errorf("attributes %v", d.Attrs)
		}
		if _, ok := d.Area.(*geocat.AreaDefinition); !ok {
			t.Errorf("area type %T", d.Area)
		}
	}
}
