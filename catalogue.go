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
	"sort"
	"strings"

	"github.com/geocat/geocat/filepattern"
	"gopkg.in/yaml.v3"
)

// Catalogue is the declarative description of a file format: the
// channels it contains, how they are labelled physically, and which files
// and file handlers provide them.
type Catalogue struct {
	Reader    ReaderInfo              `yaml:"reader"`
	FileTypes map[string]*FileType    `yaml:"file_types"`
	Datasets  map[string]*DatasetInfo `yaml:"datasets"`
}

// ReaderInfo describes the reader a catalogue configures.
type ReaderInfo struct {
	Name            string     `yaml:"name"`
	Description     string     `yaml:"description,omitempty"`
	Sensors         StringList `yaml:"sensors,omitempty"`
	DefaultChannels StringList `yaml:"default_channels,omitempty"`
}

// FileType binds a set of filename patterns to a file handler.
type FileType struct {
	// Name is the key of the file type in the catalogue.
	Name string `yaml:"-"`

	// FileReader is the name under which the file handler for this file
	// type was registered with RegisterFileHandler.
	FileReader string `yaml:"file_reader"`

	// FilePatterns are the filename grammars of files of this type.
	FilePatterns StringList `yaml:"file_patterns"`

	// ExpectedSegments is the number of segments a complete time slot
	// is split into. Zero is treated as one.
	ExpectedSegments int `yaml:"expected_segments,omitempty"`

	// RequiredFileTypes lists file types that must also be present for
	// files of this type to be usable.
	RequiredFileTypes StringList `yaml:"requires,omitempty"`
}

// Segments returns the expected number of segments, at least one.
func (ft *FileType) Segments() int {
	if ft.ExpectedSegments < 1 {
		return 1
	}
	return ft.ExpectedSegments
}

// Kind distinguishes radiometric channels from ancillary datasets.
type Kind string

// These are the dataset kinds.
const (
	ChannelKind Kind = "channel"
	QualityKind Kind = "quality"
)

// DatasetInfo is the catalogue entry for a single dataset.
type DatasetInfo struct {
	Name        string                          `yaml:"name"`
	Kind        Kind                            `yaml:"kind,omitempty"`
	Sensor      string                          `yaml:"sensor,omitempty"`
	Wavelength  Wavelength                      `yaml:"wavelength,omitempty"`
	Resolution  float64                         `yaml:"resolution,omitempty"`
	Calibration map[Calibration]CalibrationInfo `yaml:"calibration,omitempty"`
	FileType    StringList                      `yaml:"file_type"`
	Coordinates StringList                      `yaml:"coordinates,omitempty"`

	// Units and StandardName label datasets that have no calibration
	// table, such as quality flags.
	Units        string `yaml:"units,omitempty"`
	StandardName string `yaml:"standard_name,omitempty"`
}

// IsChannel returns whether d is a radiometric channel.
func (d *DatasetInfo) IsChannel() bool {
	return d.Kind == "" || d.Kind == ChannelKind
}

// Calibrations returns the calibration levels d supports in order of
// preference.
func (d *DatasetInfo) Calibrations() []Calibration {
	o := make([]Calibration, 0, len(d.Calibration))
	for c := range d.Calibration {
		o = append(o, c)
	}
	sort.Slice(o, func(i, j int) bool { return o[i].rank() < o[j].rank() })
	return o
}

// StringList is a list of strings that may be written in a configuration
// file either as a single scalar or as a sequence.
type StringList []string

// UnmarshalYAML accepts a scalar, a sequence or null.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := value.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Contains returns whether v is in s.
func (s StringList) Contains(v string) bool {
	for _, ss := range s {
		if ss == v {
			return true
		}
	}
	return false
}

// ValidationError holds all the problems found in a catalogue.
type ValidationError struct {
	Reader   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("geocat: invalid catalogue %q:\n\t%s", e.Reader, strings.Join(e.Problems, "\n\t"))
}

// normalize fills in names from map keys and defaults.
func (c *Catalogue) normalize() {
	for k, ft := range c.FileTypes {
		if ft == nil {
			continue
		}
		ft.Name = k
	}
	for k, d := range c.Datasets {
		if d == nil {
			continue
		}
		if d.Name == "" {
			d.Name = k
		}
		if d.Kind == "" {
			d.Kind = ChannelKind
		}
		if d.Sensor == "" && len(c.Reader.Sensors) == 1 {
			d.Sensor = c.Reader.Sensors[0]
		}
	}
}

// Validate checks that every entry in c has the fields it requires,
// returning a *ValidationError listing all problems found.
func (c *Catalogue) Validate() error {
	c.normalize()
	var problems []string
	add := func(format string, a ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, a...))
	}
	if c.Reader.Name == "" {
		add("reader: missing name")
	}
	if len(c.FileTypes) == 0 {
		add("file_types: no file types defined")
	}
	for _, k := range sortedKeys(c.FileTypes) {
		ft := c.FileTypes[k]
		if ft == nil {
			add("file type %s: empty definition", k)
			continue
		}
		if ft.FileReader == "" {
			add("file type %s: missing file_reader", k)
		}
		if len(ft.FilePatterns) == 0 {
			add("file type %s: no file_patterns", k)
		}
		for _, p := range ft.FilePatterns {
			if _, err := filepattern.New(p); err != nil {
				add("file type %s: %v", k, err)
			}
		}
		if ft.ExpectedSegments < 0 {
			add("file type %s: expected_segments must not be negative", k)
		}
		for _, r := range ft.RequiredFileTypes {
			if _, ok := c.FileTypes[r]; !ok {
				add("file type %s: requires unknown file type %s", k, r)
			}
		}
	}
	if len(c.Datasets) == 0 {
		add("datasets: no datasets defined")
	}
	for _, k := range sortedKeys(c.Datasets) {
		d := c.Datasets[k]
		if d == nil {
			add("dataset %s: empty definition", k)
			continue
		}
		if len(d.FileType) == 0 {
			add("dataset %s: missing file_type", d.Name)
		}
		for _, ft := range d.FileType {
			if _, ok := c.FileTypes[ft]; !ok {
				add("dataset %s: unknown file_type %s", d.Name, ft)
			}
		}
		switch d.Kind {
		case ChannelKind:
			if err := d.Wavelength.Check(); err != nil {
				add("dataset %s: %v", d.Name, err)
			}
			if d.Resolution <= 0 {
				add("dataset %s: resolution must be positive", d.Name)
			}
			if len(d.Calibration) == 0 {
				add("dataset %s: no calibration levels", d.Name)
			}
			for _, cal := range d.Calibrations() {
				info := d.Calibration[cal]
				if !cal.Valid() {
					add("dataset %s: invalid calibration level %q", d.Name, cal)
					continue
				}
				if info.StandardName == "" {
					add("dataset %s: %s: missing standard_name", d.Name, cal)
				}
				if info.Units == "" {
					add("dataset %s: %s: missing units", d.Name, cal)
					continue
				}
				if err := cal.CheckUnits(info.Units); err != nil {
					add("dataset %s: %v", d.Name, err)
				}
			}
		case QualityKind:
			if len(d.Calibration) != 0 {
				add("dataset %s: quality datasets have no calibration levels", d.Name)
			}
		default:
			add("dataset %s: invalid kind %q", d.Name, d.Kind)
		}
	}
	for _, ch := range c.Reader.DefaultChannels {
		if _, ok := c.Datasets[ch]; !ok {
			add("reader: unknown default channel %s", ch)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Reader: c.Reader.Name, Problems: problems}
	}
	return nil
}

// Names returns the sorted names of all datasets in c.
func (c *Catalogue) Names() []string {
	o := make([]string, 0, len(c.Datasets))
	for _, d := range c.Datasets {
		o = append(o, d.Name)
	}
	sort.Strings(o)
	return o
}

// Dataset returns the entry for the dataset with the given name.
func (c *Catalogue) Dataset(name string) (*DatasetInfo, bool) {
	if d, ok := c.Datasets[name]; ok {
		return d, true
	}
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// FileTypeNames returns the sorted names of the file types in c.
func (c *Catalogue) FileTypeNames() []string {
	return sortedKeys(c.FileTypes)
}

func sortedKeys[V any](m map[string]V) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}
