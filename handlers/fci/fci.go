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

// Package fci reads level-1c full disk high spectral resolution imagery
// from the Flexible Combined Imager on the Meteosat Third Generation
// satellites. Each file holds one of the 40 segments of a repeat cycle in
// NetCDF4 format.
package fci

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/geocat/geocat"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Name is the name the handler is registered under.
const Name = "fci_l1c_nc"

// au is the astronomical unit in km.
const au = 149597870.7

const qualitySuffix = "_pixel_quality"

func init() {
	geocat.RegisterFileHandler(Name, New)
}

// Handler reads a single FCI level-1c segment file.
type Handler struct {
	filename string
	info     map[string]interface{}
	start    time.Time
	end      time.Time

	// clipNegative replaces negative radiances with the smallest positive
	// radiance the file can represent.
	clipNegative bool

	log logrus.FieldLogger

	mu    sync.Mutex // guards root and areas
	root  api.Group
	areas map[string]*geocat.AreaDefinition
}

// New opens filename. info holds the fields parsed from the filename. The
// "clip_negative_radiances" option enables clipping of negative
// radiances.
func New(filename string, info map[string]interface{}, ft *geocat.FileType, opts geocat.HandlerOptions) (geocat.FileHandler, error) {
	root, err := netcdf.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("fci: opening %s: %v", filename, err)
	}
	h := &Handler{
		filename:     filename,
		info:         info,
		clipNegative: opts.Bool("clip_negative_radiances", false),
		root:         root,
		areas:        make(map[string]*geocat.AreaDefinition),
	}
	h.log = logrus.WithFields(logrus.Fields{
		"handler": Name,
		"segment": h.Segment(),
	})
	h.start, _ = info["start_time"].(time.Time)
	h.end, _ = info["end_time"].(time.Time)
	return h, nil
}

// StartTime returns the start of the repeat cycle from the filename.
func (h *Handler) StartTime() time.Time { return h.start }

// EndTime returns the end of the repeat cycle from the filename.
func (h *Handler) EndTime() time.Time { return h.end }

// Segment returns the position of the file within its repeat cycle.
func (h *Handler) Segment() int {
	if v, ok := h.info["count_in_repeat_cycle"]; ok {
		return cast.ToInt(v)
	}
	return 1
}

// PlatformName returns the name of the satellite, for example MTG-I1.
func (h *Handler) PlatformName() string {
	if v, ok := h.info["spacecraft_id"]; ok {
		return "MTG-I" + cast.ToString(v)
	}
	return ""
}

// Close closes the file.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.root != nil {
		h.root.Close()
		h.root = nil
	}
	return nil
}

// AvailableChannels returns the channels with measured radiances in the
// file, plus the pixel quality datasets of those channels.
func (h *Handler) AvailableChannels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.root == nil {
		return nil
	}
	var channels []string
	if data, err := h.root.GetGroup("data"); err == nil {
		channels = data.ListSubgroups()
	} else {
		const prefix, suffix = "data_", "_measured_effective_radiance"
		for _, v := range h.root.ListVariables() {
			if strings.HasPrefix(v, prefix) && strings.HasSuffix(v, suffix) {
				channels = append(channels, strings.TrimSuffix(strings.TrimPrefix(v, prefix), suffix))
			}
		}
	}
	var o []string
	for _, ch := range channels {
		if !h.hasVariable(measured(ch, "effective_radiance")) {
			continue
		}
		o = append(o, ch)
		if h.hasVariable(measured(ch, "pixel_quality")) {
			o = append(o, ch+qualitySuffix)
		}
	}
	sort.Strings(o)
	return o
}

func measured(ch, v string) string {
	return "data/" + ch + "/measured/" + v
}

// channelOf returns the channel a dataset belongs to.
func channelOf(name string) string {
	return strings.TrimSuffix(name, qualitySuffix)
}

// Dataset reads and calibrates the dataset identified by id.
func (h *Handler) Dataset(ctx context.Context, id geocat.DatasetID, info *geocat.DatasetInfo) (*geocat.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.root == nil {
		return nil, fmt.Errorf("fci: %s is closed", h.filename)
	}
	ch := channelOf(id.Name)
	if !h.hasVariable(measured(ch, "effective_radiance")) {
		return nil, fmt.Errorf("fci: %s: %w: %s", h.filename, geocat.ErrChannelNotAvailable, ch)
	}

	var d *geocat.Dataset
	var err error
	if !info.IsChannel() {
		d, err = h.quality(id, ch)
	} else {
		d, err = h.channel(id, ch)
	}
	if err != nil {
		return nil, err
	}
	d.Attrs["platform_name"] = h.PlatformName()
	d.Attrs["segment"] = h.Segment()
	return d, nil
}

// quality returns the raw pixel quality flags of ch.
func (h *Handler) quality(id geocat.DatasetID, ch string) (*geocat.Dataset, error) {
	a, _, err := h.readArray(measured(ch, "pixel_quality"))
	if err != nil {
		return nil, err
	}
	d, err := newDataset(id, a)
	if err != nil {
		return nil, fmt.Errorf("fci: %s: %s pixel quality: %v", h.filename, ch, err)
	}
	return d, nil
}

func newDataset(id geocat.DatasetID, a *array) (*geocat.Dataset, error) {
	if len(a.shape) != 2 {
		return nil, fmt.Errorf("have %d dimensions, want 2", len(a.shape))
	}
	d := geocat.NewDataset(id, a.shape[0], a.shape[1])
	copy(d.Data.RawMatrix().Data, a.values)
	return d, nil
}

// channel reads the counts of ch, masks them and converts them to the
// calibration level of id.
func (h *Handler) channel(id geocat.DatasetID, ch string) (*geocat.Dataset, error) {
	start := time.Now()
	a, attrs, err := h.readArray(measured(ch, "effective_radiance"))
	if err != nil {
		return nil, err
	}
	d, err := newDataset(id, a)
	if err != nil {
		return nil, fmt.Errorf("fci: %s: %s: %v", h.filename, ch, err)
	}
	mask(d, attrs)

	switch id.Calibration {
	case geocat.Counts:
	case geocat.Radiance:
		h.radiance(d, attrs)
	case geocat.Reflectance:
		h.radiance(d, attrs)
		if err := h.reflectance(d, ch); err != nil {
			return nil, err
		}
	case geocat.BrightnessTemperature:
		h.radiance(d, attrs)
		if err := h.brightnessTemperature(d, ch); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("fci: unsupported calibration %q", id.Calibration)
	}
	h.log.WithFields(logrus.Fields{
		"channel":     ch,
		"calibration": id.Calibration,
		"time":        time.Since(start),
	}).Debug("calibrated channel")
	return d, nil
}

// mask sets fill values and counts outside of the valid range to NaN.
func mask(d *geocat.Dataset, attrs api.AttributeMap) {
	fill, hasFill := floatAttrs(attrs, "_FillValue")
	vr, hasRange := floatAttrs(attrs, "valid_range")
	hasRange = hasRange && len(vr) == 2
	data := d.Data.RawMatrix().Data
	for i, v := range data {
		if (hasFill && v == fill[0]) || (hasRange && (v < vr[0] || v > vr[1])) {
			data[i] = math.NaN()
		}
	}
}

func (h *Handler) radiance(d *geocat.Dataset, attrs api.AttributeMap) {
	scale := floatAttr(attrs, "scale_factor", 1)
	offset := floatAttr(attrs, "add_offset", 0)
	minPositive := math.Inf(1)
	if h.clipNegative {
		minPositive = (math.Floor(-offset/scale)+1)*scale + offset
	}
	d.Apply(func(v float64) float64 {
		r := v*scale + offset
		if h.clipNegative && r < 0 {
			return minPositive
		}
		return r
	})
}

// earthSunDistance returns the mean Earth-Sun distance over the segment in
// astronomical units, or 1 if the file does not record it. Values above
// 1e3 are in km.
func (h *Handler) earthSunDistance() float64 {
	d, err := h.scalar("state/celestial/earth_sun_distance")
	if err != nil {
		h.log.Debug("no earth_sun_distance in file; using 1 AU")
		return 1
	}
	if d > 1e3 {
		d /= au
	}
	return d
}

func (h *Handler) reflectance(d *geocat.Dataset, ch string) error {
	esi, err := h.scalar(measured(ch, "channel_effective_solar_irradiance"))
	if err != nil {
		return err
	}
	if esi <= 0 {
		return fmt.Errorf("fci: %s: %s has no solar irradiance", h.filename, ch)
	}
	dist := h.earthSunDistance()
	f := 100 * math.Pi * dist * dist / esi
	d.Apply(func(v float64) float64 { return v * f })
	return nil
}

func (h *Handler) brightnessTemperature(d *geocat.Dataset, ch string) error {
	const prefix = "radiance_to_bt_conversion_"
	coef := make(map[string]float64)
	for _, n := range []string{"coefficient_wavenumber", "coefficient_a", "coefficient_b", "constant_c1", "constant_c2"} {
		v, err := h.scalar(measured(ch, prefix+n))
		if err != nil {
			return err
		}
		coef[n] = v
	}
	vc := coef["coefficient_wavenumber"]
	a, b := coef["coefficient_a"], coef["coefficient_b"]
	c1, c2 := coef["constant_c1"], coef["constant_c2"]
	d.Apply(func(l float64) float64 {
		if l <= 0 {
			return math.NaN()
		}
		return c2*vc/(a*math.Log(1+c1*vc*vc*vc/l)) - b/a
	})
	return nil
}

// AreaDef returns the area of the channel of id in this segment.
func (h *Handler) AreaDef(id geocat.DatasetID) (geocat.Area, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := channelOf(id.Name)
	if a, ok := h.areas[ch]; ok {
		return a, nil
	}
	if h.root == nil {
		return nil, fmt.Errorf("fci: %s is closed", h.filename)
	}
	a, err := h.areaDef(id, ch)
	if err != nil {
		return nil, err
	}
	h.areas[ch] = a
	return a, nil
}

func (h *Handler) areaDef(id geocat.DatasetID, ch string) (*geocat.AreaDefinition, error) {
	pv, err := h.variable("data/mtg_geos_projection")
	if err != nil {
		return nil, err
	}
	pa := pv.Attributes
	a := floatAttr(pa, "semi_major_axis", math.NaN())
	b := floatAttr(pa, "semi_minor_axis", math.NaN())
	if math.IsNaN(b) {
		if rf := floatAttr(pa, "inverse_flattening", math.NaN()); !math.IsNaN(rf) {
			b = a * (1 - 1/rf)
		}
	}
	hgt := floatAttr(pa, "perspective_point_height", math.NaN())
	if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(hgt) {
		return nil, fmt.Errorf("fci: %s: incomplete projection definition", h.filename)
	}
	proj := geocat.GeosProjection{
		A:    a,
		B:    b,
		H:    hgt,
		Lon0: floatAttr(pa, "longitude_of_projection_origin", 0),
	}

	var edges [2][2]float64
	var n [2]int
	for i, c := range []string{"x", "y"} {
		arr, attrs, err := h.readArray(measured(ch, c))
		if err != nil {
			return nil, err
		}
		if len(arr.values) == 0 {
			return nil, fmt.Errorf("fci: %s: %s has no %s coordinates", h.filename, ch, c)
		}
		scale := floatAttr(attrs, "scale_factor", 1)
		offset := floatAttr(attrs, "add_offset", 0)
		first := arr.values[0]*scale + offset
		last := arr.values[len(arr.values)-1]*scale + offset
		// Coordinates are pixel centres in radians.
		edges[i] = [2]float64{(first - scale/2) * hgt, (last + scale/2) * hgt}
		n[i] = len(arr.values)
	}
	return &geocat.AreaDefinition{
		AreaID:      fmt.Sprintf("mtg_fci_fdss_%gkm", id.Resolution/1000),
		Description: "MTG FCI full disk scan segment",
		ProjID:      "mtg_fci_geos",
		Projection:  proj,
		Width:       n[0],
		Height:      n[1],
		Extent:      [4]float64{edges[0][1], edges[1][1], edges[0][0], edges[1][0]},
	}, nil
}
