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

package fci

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// variable returns the variable at the slash-separated path p. Files
// without groups store the same variable under the flattened name, with
// underscores in place of slashes.
func (h *Handler) variable(p string) (*api.Variable, error) {
	parts := strings.Split(p, "/")
	g := h.root
	for _, name := range parts[:len(parts)-1] {
		sub, err := g.GetGroup(name)
		if err != nil {
			g = nil
			break
		}
		g = sub
	}
	if g != nil {
		if v, err := g.GetVariable(parts[len(parts)-1]); err == nil {
			return v, nil
		}
	}
	v, err := h.root.GetVariable(strings.Join(parts, "_"))
	if err != nil {
		return nil, fmt.Errorf("fci: %s: variable %s: %v", h.filename, p, err)
	}
	return v, nil
}

// hasVariable returns whether the variable at p exists.
func (h *Handler) hasVariable(p string) bool {
	_, err := h.variable(p)
	return err == nil
}

// array holds the values of a variable converted to float64, in row-major
// order.
type array struct {
	values []float64
	shape  []int
}

// readArray reads the variable at p.
func (h *Handler) readArray(p string) (*array, api.AttributeMap, error) {
	v, err := h.variable(p)
	if err != nil {
		return nil, nil, err
	}
	a := new(array)
	if err := a.flatten(reflect.ValueOf(v.Values), 0); err != nil {
		return nil, nil, fmt.Errorf("fci: %s: variable %s: %v", h.filename, p, err)
	}
	return a, v.Attributes, nil
}

// scalar reads the variable at p and returns the mean of its non-NaN
// values.
func (h *Handler) scalar(p string) (float64, error) {
	a, _, err := h.readArray(p)
	if err != nil {
		return math.NaN(), err
	}
	var sum float64
	var n int
	for _, v := range a.values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), fmt.Errorf("fci: %s: variable %s has no valid values", h.filename, p)
	}
	return sum / float64(n), nil
}

func (a *array) flatten(v reflect.Value, depth int) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if len(a.shape) == depth {
			a.shape = append(a.shape, v.Len())
		} else if a.shape[depth] != v.Len() {
			return fmt.Errorf("ragged array at dimension %d", depth)
		}
		for i := 0; i < v.Len(); i++ {
			if err := a.flatten(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface:
		return a.flatten(v.Elem(), depth)
	}
	f, err := toFloat(v)
	if err != nil {
		return err
	}
	a.values = append(a.values, f)
	return nil
}

func toFloat(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	}
	return 0, fmt.Errorf("unsupported value type %s", v.Type())
}

// floatAttrs returns the numeric values of attribute key.
func floatAttrs(attrs api.AttributeMap, key string) ([]float64, bool) {
	if attrs == nil {
		return nil, false
	}
	val, ok := attrs.Get(key)
	if !ok {
		return nil, false
	}
	a := new(array)
	if err := a.flatten(reflect.ValueOf(val), 0); err != nil || len(a.values) == 0 {
		return nil, false
	}
	return a.values, true
}

// floatAttr returns the first value of attribute key, or def.
func floatAttr(attrs api.AttributeMap, key string, def float64) float64 {
	v, ok := floatAttrs(attrs, key)
	if !ok {
		return def
	}
	return v[0]
}
