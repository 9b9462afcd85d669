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
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrDatasetNotFound is returned when no catalogue entry matches a query.
var ErrDatasetNotFound = errors.New("geocat: dataset not found")

// DatasetID identifies one calibrated rendition of a dataset.
type DatasetID struct {
	Name        string
	Wavelength  Wavelength
	Resolution  float64
	Calibration Calibration
}

func (id DatasetID) String() string {
	var b strings.Builder
	b.WriteString(id.Name)
	if !id.Wavelength.IsZero() {
		fmt.Fprintf(&b, " (%g µm)", id.Wavelength.Central)
	}
	if id.Resolution > 0 {
		fmt.Fprintf(&b, " %g m", id.Resolution)
	}
	if id.Calibration != "" {
		fmt.Fprintf(&b, " %s", id.Calibration)
	}
	return b.String()
}

// DatasetQuery selects datasets from a catalogue. Zero-valued fields
// match anything.
type DatasetQuery struct {
	// Name selects a dataset by name.
	Name string

	// Wavelength, if Name is empty, selects channels whose spectral
	// range contains this wavelength (in µm).
	Wavelength float64

	// Resolution selects a nominal resolution in metres.
	Resolution float64

	// Calibration lists acceptable calibration levels, in order of
	// preference.
	Calibration []Calibration
}

func (q DatasetQuery) String() string {
	var parts []string
	if q.Name != "" {
		parts = append(parts, "name="+q.Name)
	}
	if q.Wavelength != 0 {
		parts = append(parts, fmt.Sprintf("wavelength=%g", q.Wavelength))
	}
	if q.Resolution != 0 {
		parts = append(parts, fmt.Sprintf("resolution=%g", q.Resolution))
	}
	if len(q.Calibration) > 0 {
		cals := make([]string, len(q.Calibration))
		for i, c := range q.Calibration {
			cals[i] = string(c)
		}
		parts = append(parts, "calibration="+strings.Join(cals, ","))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// ParseQuery parses a query of the form "name[:calibration]" or
// "wavelength[:calibration]", where wavelength is a number in µm.
func ParseQuery(s string) (DatasetQuery, error) {
	var q DatasetQuery
	parts := strings.SplitN(s, ":", 2)
	if parts[0] == "" {
		return q, fmt.Errorf("geocat: empty dataset query %q", s)
	}
	if w, err := strconv.ParseFloat(parts[0], 64); err == nil {
		q.Wavelength = w
	} else {
		q.Name = parts[0]
	}
	if len(parts) == 2 {
		c, err := ParseCalibration(parts[1])
		if err != nil {
			return q, err
		}
		q.Calibration = []Calibration{c}
	}
	return q, nil
}

// IDs returns every dataset ID c can provide, sorted by name and then
// calibration preference.
func (c *Catalogue) IDs() []DatasetID {
	var o []DatasetID
	for _, d := range c.Datasets {
		o = append(o, idsFor(d)...)
	}
	sortIDs(o)
	return o
}

func idsFor(d *DatasetInfo) []DatasetID {
	if !d.IsChannel() {
		return []DatasetID{{Name: d.Name, Resolution: d.Resolution}}
	}
	var o []DatasetID
	for _, cal := range d.Calibrations() {
		o = append(o, DatasetID{
			Name:        d.Name,
			Wavelength:  d.Wavelength,
			Resolution:  d.Resolution,
			Calibration: cal,
		})
	}
	return o
}

func sortIDs(ids []DatasetID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Name != ids[j].Name {
			return ids[i].Name < ids[j].Name
		}
		return ids[i].Calibration.rank() < ids[j].Calibration.rank()
	})
}

// Find returns the ID that best matches q. When several IDs match,
// the one with the most preferred calibration wins, then the one with
// the finest resolution, then the one whose central wavelength is closest
// to the query wavelength.
func (c *Catalogue) Find(q DatasetQuery) (DatasetID, error) {
	return findID(c.IDs(), q)
}

func findID(ids []DatasetID, q DatasetQuery) (DatasetID, error) {
	var candidates []DatasetID
	for _, id := range ids {
		if q.matches(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return DatasetID{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, q)
	}
	calRank := func(c Calibration) int {
		for i, qc := range q.Calibration {
			if qc == c {
				return i
			}
		}
		return c.rank()
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := calRank(a.Calibration), calRank(b.Calibration); ra != rb {
			return ra < rb
		}
		if a.Resolution != b.Resolution {
			return a.Resolution < b.Resolution
		}
		if q.Wavelength != 0 {
			return a.Wavelength.Distance(q.Wavelength) < b.Wavelength.Distance(q.Wavelength)
		}
		return a.Name < b.Name
	})
	return candidates[0], nil
}

func (q DatasetQuery) matches(id DatasetID) bool {
	if q.Name != "" && q.Name != id.Name {
		return false
	}
	if q.Name == "" && q.Wavelength != 0 {
		if id.Wavelength.IsZero() || !id.Wavelength.Contains(q.Wavelength) {
			return false
		}
	}
	if q.Resolution != 0 && q.Resolution != id.Resolution {
		return false
	}
	if len(q.Calibration) > 0 && id.Calibration != "" {
		found := false
		for _, c := range q.Calibration {
			if c == id.Calibration {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Info returns the catalogue entry for id.
func (c *Catalogue) Info(id DatasetID) (*DatasetInfo, error) {
	d, ok := c.Dataset(id.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id.Name)
	}
	if id.Calibration != "" {
		if _, ok := d.Calibration[id.Calibration]; !ok {
			return nil, fmt.Errorf("%w: %s has no %s calibration", ErrDatasetNotFound, id.Name, id.Calibration)
		}
	}
	return d, nil
}

// Units returns the physical units of id.
func (c *Catalogue) Units(id DatasetID) (string, error) {
	d, err := c.Info(id)
	if err != nil {
		return "", err
	}
	if id.Calibration == "" {
		return d.Units, nil
	}
	return d.Calibration[id.Calibration].Units, nil
}

// StandardName returns the CF standard name of id.
func (c *Catalogue) StandardName(id DatasetID) (string, error) {
	d, err := c.Info(id)
	if err != nil {
		return "", err
	}
	if id.Calibration == "" {
		return d.StandardName, nil
	}
	return d.Calibration[id.Calibration].StandardName, nil
}
