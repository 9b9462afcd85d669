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

package geocatutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/geocat/geocat"
	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx"
)

// Readers writes the built-in catalogues and the registered file handlers
// to w.
func Readers(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "READER\tSENSORS\tDESCRIPTION")
	for _, name := range geocat.BuiltinReaders() {
		cat, err := geocat.BuiltinCatalogue(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, strings.Join(cat.Reader.Sensors, ","), cat.Reader.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nfile handlers: %s\n", strings.Join(geocat.FileHandlerNames(), ", "))
	return err
}

// datasetRow holds one line of the dataset table.
type datasetRow struct {
	name, kind, wavelength, resolution, calibration, units, fileTypes string
}

func datasetRows(cat *geocat.Catalogue) []datasetRow {
	var o []datasetRow
	for _, name := range cat.Names() {
		info, _ := cat.Dataset(name)
		row := datasetRow{
			name:      info.Name,
			kind:      string(info.Kind),
			fileTypes: strings.Join(info.FileType, ","),
		}
		if row.kind == "" {
			row.kind = string(geocat.ChannelKind)
		}
		if !info.Wavelength.IsZero() {
			row.wavelength = fmt.Sprintf("%g", info.Wavelength.Central)
		}
		if info.Resolution > 0 {
			row.resolution = fmt.Sprintf("%g", info.Resolution)
		}
		cals := info.Calibrations()
		if len(cals) == 0 {
			row.units = info.Units
			o = append(o, row)
			continue
		}
		for _, c := range cals {
			r := row
			r.calibration = string(c)
			r.units = info.Calibration[c].Units
			o = append(o, r)
		}
	}
	return o
}

var datasetHeader = []string{"name", "kind", "wavelength (µm)", "resolution (m)", "calibration", "units", "file types"}

func (r datasetRow) fields() []string {
	return []string{r.name, r.kind, r.wavelength, r.resolution, r.calibration, r.units, r.fileTypes}
}

// Datasets writes the table of datasets in cat to w, one line per
// dataset and calibration level.
func Datasets(w io.Writer, cat *geocat.Catalogue) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(datasetHeader, "\t"))
	for _, r := range datasetRows(cat) {
		fmt.Fprintln(tw, strings.Join(r.fields(), "\t"))
	}
	return tw.Flush()
}

// DatasetsXLSX writes the table of datasets in cat to a spreadsheet
// at path.
func DatasetsXLSX(path string, cat *geocat.Catalogue) error {
	f := xlsx.NewFile()
	name := cat.Reader.Name
	if len(name) > 31 {
		name = name[:31]
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return fmt.Errorf("geocat: creating spreadsheet: %v", err)
	}
	row := sheet.AddRow()
	for _, h := range datasetHeader {
		row.AddCell().SetString(h)
	}
	for _, r := range datasetRows(cat) {
		row := sheet.AddRow()
		for _, v := range r.fields() {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("geocat: writing spreadsheet: %v", err)
	}
	return nil
}

// Select writes the selected files to w, grouped by file type.
func Select(w io.Writer, files map[string][]string) error {
	if len(files) == 0 {
		return fmt.Errorf("geocat: no matching files")
	}
	types := make([]string, 0, len(files))
	for ft := range files {
		types = append(types, ft)
	}
	sort.Strings(types)
	for _, ft := range types {
		fmt.Fprintf(w, "%s:\n", ft)
		fs := append([]string(nil), files[ft]...)
		sort.Strings(fs)
		for _, f := range fs {
			if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Info writes a description of the files opened by r to w.
func Info(w io.Writer, r *geocat.Reader) error {
	fmt.Fprintf(w, "reader:     %s\n", r.Name())
	fmt.Fprintf(w, "file types: %s\n", strings.Join(r.LoadedFileTypes(), ", "))
	fmt.Fprintf(w, "files:      %d\n", len(r.Files()))
	fmt.Fprintf(w, "start time: %s\n", r.StartTime().Format(time.RFC3339))
	fmt.Fprintf(w, "end time:   %s\n", r.EndTime().Format(time.RFC3339))
	fmt.Fprintln(w, "datasets:")
	for _, id := range r.AvailableIDs() {
		if _, err := fmt.Fprintf(w, "  %s\n", id); err != nil {
			return err
		}
	}
	return nil
}

// defaultQueries returns the default channels of r that its files can
// provide.
func defaultQueries(r *geocat.Reader) []string {
	avail := make(map[string]bool)
	for _, id := range r.AvailableIDs() {
		avail[id.Name] = true
	}
	var o []string
	for _, name := range r.Catalogue.Reader.DefaultChannels {
		if avail[name] {
			o = append(o, name)
		}
	}
	return o
}

func parseQueries(r *geocat.Reader, queries []string) ([]geocat.DatasetQuery, error) {
	if len(queries) == 0 {
		queries = defaultQueries(r)
		if len(queries) == 0 {
			return nil, fmt.Errorf("geocat: no datasets requested and none of the default channels of %s are available", r.Name())
		}
		logrus.Infof("loading default channels %s", strings.Join(queries, ", "))
	}
	o := make([]geocat.DatasetQuery, len(queries))
	for i, s := range queries {
		q, err := geocat.ParseQuery(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		o[i] = q
	}
	return o, nil
}

// Load loads the datasets described by queries from r. If there are no
// queries the available default channels of the reader are loaded.
func Load(ctx context.Context, r *geocat.Reader, queries []string) (map[geocat.DatasetID]*geocat.Dataset, error) {
	qs, err := parseQueries(r, queries)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ds, err := r.Load(ctx, qs...)
	if err != nil {
		return nil, err
	}
	logrus.WithField("time", time.Since(start)).Infof("loaded %d datasets", len(ds))
	return ds, nil
}

// loadOne loads the dataset described by the first query.
func loadOne(ctx context.Context, r *geocat.Reader, queries []string) (*geocat.Dataset, error) {
	qs, err := parseQueries(r, queries)
	if err != nil {
		return nil, err
	}
	ds, err := r.Load(ctx, qs[0])
	if err != nil {
		return nil, err
	}
	for _, d := range ds {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", geocat.ErrDatasetNotFound, qs[0])
}

// sortedIDs returns the keys of ds sorted by name and calibration.
func sortedIDs(ds map[geocat.DatasetID]*geocat.Dataset) []geocat.DatasetID {
	ids := make([]geocat.DatasetID, 0, len(ds))
	for id := range ds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Name != ids[j].Name {
			return ids[i].Name < ids[j].Name
		}
		return ids[i].Calibration < ids[j].Calibration
	})
	return ids
}

// PrintStats writes the shape and summary statistics of each dataset to w.
func PrintStats(w io.Writer, ds map[geocat.DatasetID]*geocat.Dataset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tCALIBRATION\tSHAPE\tVALID\tMIN\tMAX\tMEAN\tUNITS")
	for _, id := range sortedIDs(ds) {
		d := ds[id]
		rows, cols := d.Shape()
		s := d.Stats()
		units, _ := d.Attrs["units"].(string)
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d\t%.4g\t%.4g\t%.4g\t%s\n",
			id.Name, id.Calibration, rows, cols, s.Valid, s.Min, s.Max, s.Mean, units)
	}
	return tw.Flush()
}
