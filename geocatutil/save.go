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
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/geocat/geocat"
	"github.com/geocat/geocat/cloud"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// outputVar is one variable of an output file.
type outputVar struct {
	name  string
	data  *mat.Dense
	attrs map[string]interface{}
	area  geocat.Area
}

// varNames returns output variable names for the datasets in ds: the
// dataset name, or the name followed by the calibration level when more
// than one calibration of a dataset is present.
func varNames(ds map[geocat.DatasetID]*geocat.Dataset) map[geocat.DatasetID]string {
	count := make(map[string]int)
	for id := range ds {
		count[id.Name]++
	}
	o := make(map[geocat.DatasetID]string, len(ds))
	for id := range ds {
		if count[id.Name] > 1 && id.Calibration != "" {
			o[id] = id.Name + "_" + string(id.Calibration)
		} else {
			o[id] = id.Name
		}
	}
	return o
}

// Save writes the datasets in ds and the variables derived from them
// to a NetCDF file at path, which may be a blob storage URL. derived maps
// the names of additional variables to expressions of the other variables.
func Save(ctx context.Context, path string, ds map[geocat.DatasetID]*geocat.Dataset, derived map[string]string) error {
	if len(ds) == 0 {
		return fmt.Errorf("geocat: no datasets to save")
	}
	names := varNames(ds)
	var vars []*outputVar
	byName := make(map[string]*outputVar)
	for _, id := range sortedIDs(ds) {
		d := ds[id]
		v := &outputVar{name: names[id], data: d.Data, attrs: d.Attrs, area: d.Area}
		vars = append(vars, v)
		byName[v.name] = v
	}

	derivedNames := make([]string, 0, len(derived))
	for name := range derived {
		derivedNames = append(derivedNames, name)
	}
	sort.Strings(derivedNames)
	for _, name := range derivedNames {
		if _, ok := byName[name]; ok {
			return fmt.Errorf("geocat: derived variable %s has the same name as a dataset", name)
		}
		v, err := deriveVar(name, derived[name], byName)
		if err != nil {
			return err
		}
		vars = append(vars, v)
		byName[name] = v
	}

	local := path
	if cloud.IsBlob(path) {
		dir, err := os.MkdirTemp("", "geocat")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		local = filepath.Join(dir, filepath.Base(path))
	}
	if err := writeNetCDF(local, vars); err != nil {
		return err
	}
	if local != path {
		if err := cloud.Upload(ctx, local, path); err != nil {
			return err
		}
	}
	logrus.WithField("file", path).Infof("saved %d variables", len(vars))
	return nil
}

// exprFunctions are the functions available in derived variable
// expressions.
var exprFunctions = map[string]govaluate.ExpressionFunction{
	"exp":  unaryFunc("exp", math.Exp),
	"log":  unaryFunc("log", math.Log),
	"sqrt": unaryFunc("sqrt", math.Sqrt),
	"abs":  unaryFunc("abs", math.Abs),
}

func unaryFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes 1 argument but got %d", name, len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%s: invalid argument %v", name, args[0])
		}
		return f(v), nil
	}
}

// deriveVar evaluates expression pixel by pixel over the variables it
// refers to.
func deriveVar(name, expression string, vars map[string]*outputVar) (*outputVar, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, exprFunctions)
	if err != nil {
		return nil, fmt.Errorf("geocat: derived variable %s: %v", name, err)
	}
	var inputs []*outputVar
	for _, vn := range expr.Vars() {
		v, ok := vars[vn]
		if !ok {
			return nil, fmt.Errorf("geocat: derived variable %s: unknown variable %s", name, vn)
		}
		inputs = append(inputs, v)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("geocat: derived variable %s does not refer to any variables", name)
	}
	rows, cols := inputs[0].data.Dims()
	for _, v := range inputs[1:] {
		if r, c := v.data.Dims(); r != rows || c != cols {
			return nil, fmt.Errorf("geocat: derived variable %s: %s is %dx%d but %s is %dx%d",
				name, inputs[0].name, rows, cols, v.name, r, c)
		}
	}

	out := mat.NewDense(rows, cols, nil)
	params := make(map[string]interface{}, len(inputs))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			for _, v := range inputs {
				params[v.name] = v.data.At(i, j)
			}
			r, err := expr.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("geocat: derived variable %s: %v", name, err)
			}
			f, ok := r.(float64)
			if !ok {
				return nil, fmt.Errorf("geocat: derived variable %s: expression result %v is not a number", name, r)
			}
			out.Set(i, j, f)
		}
	}
	return &outputVar{
		name: name,
		data: out,
		attrs: map[string]interface{}{
			"long_name":  expression,
			"start_time": inputs[0].attrs["start_time"],
			"end_time":   inputs[0].attrs["end_time"],
		},
		area: inputs[0].area,
	}, nil
}

// writeNetCDF writes vars to a NetCDF file at path. Variables that share
// a shape share dimensions.
func writeNetCDF(path string, vars []*outputVar) error {
	type shape struct{ r, c int }
	dimsOf := make(map[shape][]string)
	var dims []string
	var lens []int
	for _, v := range vars {
		r, c := v.data.Dims()
		s := shape{r, c}
		if _, ok := dimsOf[s]; ok {
			continue
		}
		suffix := ""
		if n := len(dimsOf); n > 0 {
			suffix = fmt.Sprint(n)
		}
		dimsOf[s] = []string{"y" + suffix, "x" + suffix}
		dims = append(dims, "y"+suffix, "x"+suffix)
		lens = append(lens, r, c)
	}

	h := cdf.NewHeader(dims, lens)
	h.AddAttribute("", "title", "geocat level-1 imagery")
	h.AddAttribute("", "history", "created by geocat v"+geocat.Version+" at "+time.Now().UTC().Format(time.RFC3339))
	for _, v := range vars {
		r, c := v.data.Dims()
		h.AddVariable(v.name, dimsOf[shape{r, c}], []float32{0})
		h.AddAttribute(v.name, "_FillValue", []float32{float32(math.NaN())})
		for _, a := range varAttributes(v) {
			h.AddAttribute(v.name, a.name, a.value)
		}
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("geocat: invalid NetCDF header: %v", errs[0])
	}

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geocat: creating output file: %v", err)
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		w.Close()
		return fmt.Errorf("geocat: creating NetCDF file: %v", err)
	}
	for _, v := range vars {
		r, c := v.data.Dims()
		data := make([]float32, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				data = append(data, float32(v.data.At(i, j)))
			}
		}
		if _, err := f.Writer(v.name, nil, nil).Write(data); err != nil {
			w.Close()
			return fmt.Errorf("geocat: writing variable %s: %v", v.name, err)
		}
	}
	return w.Close()
}

type attribute struct {
	name  string
	value interface{}
}

// varAttributes converts the attributes of v to NetCDF attribute values,
// sorted by name. Attributes of unsupported types are skipped.
func varAttributes(v *outputVar) []attribute {
	var o []attribute
	for name, val := range v.attrs {
		if a, ok := toAttribute(val); ok {
			o = append(o, attribute{name: name, value: a})
		}
	}
	if v.area != nil {
		o = append(o, attribute{name: "proj4", value: v.area.Proj4()})
		b := v.area.Bounds()
		o = append(o, attribute{name: "area_bounds", value: []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}})
		if a, ok := v.area.(*geocat.AreaDefinition); ok {
			o = append(o, attribute{name: "area_id", value: a.AreaID})
			o = append(o, attribute{name: "area_extent", value: a.Extent[:]})
		}
	}
	sort.Slice(o, func(i, j int) bool { return o[i].name < o[j].name })
	return o
}

func toAttribute(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return []float64{t}, true
	case float32:
		return []float32{t}, true
	case int:
		return []int32{int32(t)}, true
	case []float64:
		return t, len(t) > 0
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), !t.IsZero()
	case fmt.Stringer:
		s := t.String()
		return s, s != ""
	}
	return nil, false
}
