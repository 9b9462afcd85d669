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
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var fakeReads int64

// fakeFailures is the number of upcoming fakeHandler reads that fail.
var fakeFailures int64

// fakeHandler serves constant-valued segments without reading any file.
type fakeHandler struct {
	start   time.Time
	segment int
}

func newFakeHandler(filename string, info map[string]interface{}, ft *FileType, opts HandlerOptions) (FileHandler, error) {
	if opts.Bool("fail", false) {
		return nil, fmt.Errorf("cannot open %s", filename)
	}
	return &fakeHandler{
		start:   info["start_time"].(time.Time),
		segment: info["segment"].(int),
	}, nil
}

func (f *fakeHandler) StartTime() time.Time { return f.start }
func (f *fakeHandler) EndTime() time.Time   { return f.start.Add(10 * time.Minute) }
func (f *fakeHandler) Close() error         { return nil }

func (f *fakeHandler) AvailableChannels() []string { return []string{"ch1", "ch2"} }

func (f *fakeHandler) Dataset(ctx context.Context, id DatasetID, info *DatasetInfo) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&fakeReads, 1)
	if atomic.AddInt64(&fakeFailures, -1) >= 0 {
		return nil, errors.New("transient read error")
	}
	atomic.StoreInt64(&fakeFailures, 0)
	d := NewDataset(id, 2, 3)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			v := float64(f.segment*10 + j)
			if id.Calibration == Radiance {
				v *= 2
			}
			d.Data.Set(i, j, v)
		}
	}
	d.Attrs["platform_name"] = "Fake-1"
	return d, nil
}

func (f *fakeHandler) AreaDef(id DatasetID) (Area, error) {
	return segmentArea(f.segment), nil
}

func init() {
	RegisterFileHandler("fake", newFakeHandler)
}

const fakeCatalogue = `
reader:
  name: fake
  sensors: [fakesensor]
file_types:
  fake:
    file_reader: fake
    file_patterns: ['fake_{start_time:%Y%m%d%H%M}_{segment:02d}.dat']
    expected_segments: 4
datasets:
  ch1:
    wavelength: [0.5, 0.6, 0.7]
    resolution: 1000
    calibration:
      counts: {standard_name: counts, units: count}
      radiance: {standard_name: toa_outgoing_radiance_per_unit_wavelength, units: W m-2 sr-1 um-1}
    file_type: fake
  ch2:
    wavelength: [10, 11, 12]
    resolution: 2000
    calibration:
      counts: {standard_name: counts, units: count}
      brightness_temperature: {standard_name: toa_brightness_temperature, units: K}
    file_type: fake
  ch3:
    wavelength: [3, 4, 5]
    resolution: 2000
    calibration:
      counts: {standard_name: counts, units: count}
    file_type: fake
`

func newFakeReader(t *testing.T, opts ...Option) *Reader {
	t.Helper()
	c, err := ReadCatalogue(strings.NewReader(fakeCatalogue), YAML)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(c, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

var fakeFiles = []string{
	"/data/fake_202001011200_02.dat",
	"/data/fake_202001011200_04.dat",
	"/data/fake_202001011300_01.dat",
	"/data/other_202001011200_01.dat",
	"/data/fake_202001011200_xx.dat",
}

func TestRegisterFileHandlerTwice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration should panic")
		}
	}()
	RegisterFileHandler("fake", newFakeHandler)
}

func TestFileHandlerNames(t *testing.T) {
	found := false
	for _, n := range FileHandlerNames() {
		if n == "fake" {
			found = true
		}
	}
	if !found {
		t.Errorf("fake handler missing from %v", FileHandlerNames())
	}
}

func TestSelectFilesFromPathnames(t *testing.T) {
	r := newFakeReader(t)
	have := r.SelectFilesFromPathnames(fakeFiles)
	want := map[string][]string{"fake": {
		"/data/fake_202001011200_02.dat",
		"/data/fake_202001011200_04.dat",
		"/data/fake_202001011300_01.dat",
	}}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestSelectFilesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, f := range fakeFiles {
		if err := os.WriteFile(filepath.Join(dir, filepath.Base(f)), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	r := newFakeReader(t)
	have, err := r.SelectFilesFromDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(have["fake"]) != 3 {
		t.Errorf("have %v", have)
	}
}

func TestCreateFileHandlers(t *testing.T) {
	r := newFakeReader(t)
	fts, err := r.CreateFileHandlers(context.Background(), r.SelectFilesFromPathnames(fakeFiles))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fts, []string{"fake"}) {
		t.Errorf("file types %v", fts)
	}
	if n := len(r.Files()); n != 3 {
		t.Errorf("have %d files, want 3", n)
	}
	if want := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC); !r.StartTime().Equal(want) {
		t.Errorf("start time %v", r.StartTime())
	}
	if want := time.Date(2020, 1, 1, 13, 10, 0, 0, time.UTC); !r.EndTime().Equal(want) {
		t.Errorf("end time %v", r.EndTime())
	}
	if err := r.Close(); err != nil {
		t.Error(err)
	}
	if len(r.Files()) != 0 {
		t.Error("handlers remain after Close")
	}
}

func TestCreateFileHandlersTimeRange(t *testing.T) {
	r := newFakeReader(t, WithTimeRange(
		time.Date(2020, 1, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 1, 12, 30, 0, 0, time.UTC)))
	if _, err := r.CreateFileHandlers(context.Background(), r.SelectFilesFromPathnames(fakeFiles)); err != nil {
		t.Fatal(err)
	}
	if n := len(r.Files()); n != 2 {
		t.Errorf("have %d files, want 2: %v", n, r.Files())
	}
}

func TestCreateFileHandlersErrors(t *testing.T) {
	t.Run("handler error", func(t *testing.T) {
		r := newFakeReader(t, WithHandlerOptions(HandlerOptions{"fail": "true"}))
		_, err := r.CreateFileHandlers(context.Background(), r.SelectFilesFromPathnames(fakeFiles))
		if err == nil || !strings.Contains(err.Error(), "cannot open") {
			t.Errorf("have error %v", err)
		}
	})
	t.Run("unknown handler", func(t *testing.T) {
		c, err := ReadCatalogue(strings.NewReader(strings.Replace(fakeCatalogue, "file_reader: fake", "file_reader: nope", 1)), YAML)
		if err != nil {
			t.Fatal(err)
		}
		r, err := NewReader(c)
		if err != nil {
			t.Fatal(err)
		}
		_, err = r.CreateFileHandlers(context.Background(), r.SelectFilesFromPathnames(fakeFiles))
		if !errors.Is(err, ErrUnknownFileHandler) {
			t.Errorf("have error %v, want ErrUnknownFileHandler", err)
		}
	})
	t.Run("canceled", func(t *testing.T) {
		r := newFakeReader(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.CreateFileHandlers(ctx, r.SelectFilesFromPathnames(fakeFiles))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("have error %v, want context.Canceled", err)
		}
	})
}

func loadedFakeReader(t *testing.T) *Reader {
	t.Helper()
	r := newFakeReader(t, WithWorkers(2), WithTimeRange(time.Time{},
		time.Date(2020, 1, 1, 12, 30, 0, 0, time.UTC)))
	if _, err := r.CreateFileHandlers(context.Background(), r.SelectFilesFromPathnames(fakeFiles)); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAvailableIDs(t *testing.T) {
	r := loadedFakeReader(t)
	var names []string
	for _, id := range r.AvailableIDs() {
		names = append(names, id.Name+":"+string(id.Calibration))
	}
	want := []string{"ch1:radiance", "ch1:counts", "ch2:brightness_temperature", "ch2:counts"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("have %v, want %v", names, want)
	}
}

func TestLoad(t *testing.T) {
	r := loadedFakeReader(t)
	before := atomic.LoadInt64(&fakeReads)
	ds, err := r.Load(context.Background(), DatasetQuery{Name: "ch1"}, DatasetQuery{Wavelength: 11, Calibration: []Calibration{Counts}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 2 {
		t.Fatalf("have %d datasets", len(ds))
	}
	if n := atomic.LoadInt64(&fakeReads) - before; n != 4 {
		t.Errorf("have %d reads, want 4", n)
	}

	var ch1 *Dataset
	for id, d := range ds {
		if id.Name == "ch1" {
			ch1 = d
		}
	}
	if ch1 == nil {
		t.Fatal("ch1 not loaded")
	}
	if ch1.ID.Calibration != Radiance {
		t.Errorf("calibration %s", ch1.ID.Calibration)
	}
	rows, cols := ch1.Shape()
	if rows != 8 || cols != 3 {
		t.Fatalf("shape %dx%d", rows, cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := ch1.Data.At(i, j)
			switch seg := i/2 + 1; seg {
			case 2, 4:
				if want := float64(2 * (seg*10 + j)); v != want {
					t.Errorf("(%d, %d): have %g, want %g", i, j, v, want)
				}
			default:
				if !math.IsNaN(v) {
					t.Errorf("(%d, %d): have %g, want NaN", i, j, v)
				}
			}
		}
	}
	area, ok := ch1.Area.(*AreaDefinition)
	if !ok {
		t.Fatalf("area type %T", ch1.Area)
	}
	if want := [4]float64{300, 800, 0, 0}; area.Extent != want || area.Height != 8 {
		t.Errorf("area: %v", area)
	}

	wantAttrs := map[string]interface{}{
		"name":          "ch1",
		"units":         "W m-2 sr-1 um-1",
		"standard_name": "toa_outgoing_radiance_per_unit_wavelength",
		"wavelength":    []float64{0.5, 0.6, 0.7},
		"resolution":    1000.0,
		"calibration":   "radiance",
		"sensor":        "fakesensor",
		"platform_name": "Fake-1",
		"start_time":    time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC),
		"end_time":      time.Date(2020, 1, 1, 12, 10, 0, 0, time.UTC),
	}
	if !reflect.DeepEqual(ch1.Attrs, wantAttrs) {
		t.Errorf("attrs: have %v, want %v", ch1.Attrs, wantAttrs)
	}

	// Loading again is served from the cache, and modifying the result
	// does not change the cached data.
	ch1.Data.Set(2, 0, -1)
	before = atomic.LoadInt64(&fakeReads)
	ds, err = r.Load(context.Background(), DatasetQuery{Name: "ch1"})
	if err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt64(&fakeReads) - before; n != 0 {
		t.Errorf("have %d reads, want 0", n)
	}
	for _, d := range ds {
		if v := d.Data.At(2, 0); v != 40 {
			t.Errorf("cached data modified: %g", v)
		}
	}
}

func TestLoadNotFound(t *testing.T) {
	r := loadedFakeReader(t)
	_, err := r.Load(context.Background(), DatasetQuery{Name: "ch3"}, DatasetQuery{Name: "ch1"})
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("have error %v, want ErrDatasetNotFound", err)
	}
	if !strings.Contains(err.Error(), "name=ch3") {
		t.Errorf("error does not name the query: %v", err)
	}
}

func TestLoadRetriesAfterError(t *testing.T) {
	r := loadedFakeReader(t)
	atomic.StoreInt64(&fakeFailures, 1)
	defer atomic.StoreInt64(&fakeFailures, 0)
	q := DatasetQuery{Name: "ch2", Calibration: []Calibration{Counts}}
	if _, err := r.Load(context.Background(), q); err == nil || !strings.Contains(err.Error(), "transient read error") {
		t.Fatalf("have error %v, want transient read error", err)
	}
	before := atomic.LoadInt64(&fakeReads)
	ds, err := r.Load(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 {
		t.Errorf("have %d datasets", len(ds))
	}
	if n := atomic.LoadInt64(&fakeReads) - before; n == 0 {
		t.Error("failed read was not retried")
	}
}

func TestLoadAfterCancel(t *testing.T) {
	r := loadedFakeReader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := DatasetQuery{Name: "ch1", Calibration: []Calibration{Counts}}
	if _, err := r.Load(ctx, q); !errors.Is(err, context.Canceled) {
		t.Fatalf("have error %v, want context.Canceled", err)
	}
	ds, err := r.Load(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 {
		t.Errorf("have %d datasets", len(ds))
	}
}
