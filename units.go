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
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/unit"
)

// unitSymbols are the unit symbols ParseUnits understands, in SI.
var unitSymbols = map[string]*unit.Unit{
	"1":       unit.New(1, unit.Dimless),
	"count":   unit.New(1, unit.Dimless),
	"counts":  unit.New(1, unit.Dimless),
	"%":       unit.New(0.01, unit.Dimless),
	"m":       unit.New(1, unit.Meter),
	"g":       unit.New(1e-3, unit.Kilogram),
	"s":       unit.New(1, unit.Second),
	"K":       unit.New(1, unit.Kelvin),
	"W":       unit.New(1, unit.Watt),
	"J":       unit.New(1, unit.Joule),
	"Hz":      unit.New(1, unit.Herz),
	"rad":     unit.New(1, unit.Dimensions{unit.AngleDim: 1}),
	"sr":      unit.New(1, unit.Dimensions{unit.AngleDim: 2}),
	"degrees": unit.New(math.Pi/180, unit.Dimensions{unit.AngleDim: 1}),
	"deg":     unit.New(math.Pi/180, unit.Dimensions{unit.AngleDim: 1}),
}

var unitPrefixes = map[string]float64{
	"n": 1e-9,
	"u": 1e-6,
	"µ": 1e-6,
	"μ": 1e-6,
	"m": 1e-3,
	"c": 1e-2,
	"k": 1e3,
	"M": 1e6,
}

// ParseUnits parses a unit string in the space-separated, exponent-suffixed
// form used by CF metadata (for example "mW m-2 sr-1 (cm-1)-1" or "K") and
// returns the equivalent SI quantity. The value of the returned unit is the
// SI scale factor of the string.
func ParseUnits(s string) (*unit.Unit, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("geocat: empty unit string")
	}
	out := unit.New(1, unit.Dimless)
	for len(s) > 0 {
		var term string
		var err error
		term, s, err = nextUnitTerm(s)
		if err != nil {
			return nil, fmt.Errorf("geocat: parsing units: %v", err)
		}
		u, err := parseUnitTerm(term)
		if err != nil {
			return nil, fmt.Errorf("geocat: parsing units: %v", err)
		}
		out.Mul(u)
	}
	return out, nil
}

// nextUnitTerm splits off the first whitespace-separated term of s,
// keeping parenthesized groups together.
func nextUnitTerm(s string) (term, rest string, err error) {
	s = strings.TrimLeft(s, " \t")
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", "", fmt.Errorf("unbalanced parentheses in %q", s)
			}
		case ' ', '\t':
			if depth == 0 {
				return s[:i], strings.TrimLeft(s[i:], " \t"), nil
			}
		}
	}
	if depth != 0 {
		return "", "", fmt.Errorf("unbalanced parentheses in %q", s)
	}
	return s, "", nil
}

// parseUnitTerm parses a single term such as "m-2", "(cm-1)-1" or "mW".
func parseUnitTerm(term string) (*unit.Unit, error) {
	base, exp, err := splitExponent(term)
	if err != nil {
		return nil, err
	}
	var u *unit.Unit
	if strings.HasPrefix(base, "(") && strings.HasSuffix(base, ")") {
		u, err = ParseUnits(base[1 : len(base)-1])
		if err != nil {
			return nil, err
		}
	} else {
		u, err = lookupUnitSymbol(base)
		if err != nil {
			return nil, err
		}
	}
	return pow(u, exp), nil
}

// splitExponent separates a trailing integer exponent (optionally
// introduced by '^') from term.
func splitExponent(term string) (string, int, error) {
	i := len(term)
	for i > 0 && term[i-1] >= '0' && term[i-1] <= '9' {
		i--
	}
	if i > 0 && (term[i-1] == '-' || term[i-1] == '+') {
		i--
	}
	if i == len(term) || i == 0 {
		// No exponent, or the whole term is a number such as "1".
		return term, 1, nil
	}
	base, e := term[:i], term[i:]
	base = strings.TrimSuffix(base, "^")
	exp, err := strconv.Atoi(e)
	if err != nil {
		return "", 0, fmt.Errorf("invalid exponent in %q", term)
	}
	return base, exp, nil
}

func lookupUnitSymbol(sym string) (*unit.Unit, error) {
	if u, ok := unitSymbols[sym]; ok {
		return u.Clone(), nil
	}
	for p, scale := range unitPrefixes {
		if !strings.HasPrefix(sym, p) {
			continue
		}
		if u, ok := unitSymbols[strings.TrimPrefix(sym, p)]; ok {
			o := u.Clone()
			o.Mul(unit.New(scale, unit.Dimless))
			return o, nil
		}
	}
	return nil, fmt.Errorf("unknown unit symbol %q", sym)
}

// pow raises u to the integer power exp.
func pow(u *unit.Unit, exp int) *unit.Unit {
	d := make(unit.Dimensions)
	for k, v := range u.Dimensions() {
		d[k] = v * exp
	}
	return unit.New(math.Pow(u.Value(), float64(exp)), d)
}
