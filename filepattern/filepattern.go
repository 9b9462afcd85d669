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

// Package filepattern parses and composes filenames described by
// brace-delimited field patterns such as
//
//	{platform:4s}-{channel}_{start_time:%Y%m%d_%H%M}_{segment:>04d}.nc
//
// Each field is written {name} or {name:spec}, where spec is either a
// Python-style format specification ([[fill]align][0][width][.precision][type]
// with type s, d, x or f) or a strftime layout containing %Y, %m, %d, %H,
// %M, %S, %j, %f, %y or %b directives. A field without a spec matches any
// string that does not contain a path separator.
package filepattern

import (
	"fmt"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/spf13/cast"
)

// Pattern is a compiled filename pattern.
type Pattern struct {
	raw    string
	parts  []part
	fields []*field
	keys   []string
	re     *regexp.Regexp
}

// part is either literal text or a field.
type part struct {
	literal string
	field   *field
}

type fieldKind int

const (
	stringField fieldKind = iota
	intField
	hexField
	floatField
	timeField
)

type field struct {
	name string
	spec string
	kind fieldKind

	fill      rune
	align     byte
	zero      bool
	width     int
	precision int

	// Time fields.
	layout []timeToken
	timeRe *regexp.Regexp
}

// timeToken is a strftime directive, or literal text when directive is 0.
type timeToken struct {
	directive byte
	literal   string
}

var (
	cacheMu sync.Mutex
	cache   = lru.New(256)
)

// New compiles pattern. Compiled patterns are cached, so calling New
// repeatedly with the same pattern is cheap.
func New(pattern string) (*Pattern, error) {
	cacheMu.Lock()
	if p, ok := cache.Get(pattern); ok {
		cacheMu.Unlock()
		return p.(*Pattern), nil
	}
	cacheMu.Unlock()

	p, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cache.Add(pattern, p)
	cacheMu.Unlock()
	return p, nil
}

// MustNew is like New but panics if the pattern is invalid.
func MustNew(pattern string) *Pattern {
	p, err := New(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func compile(pattern string) (*Pattern, error) {
	p := &Pattern{raw: pattern}
	var re strings.Builder
	re.WriteString("^")
	seen := make(map[string]bool)
	rest := pattern
	for len(rest) > 0 {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			p.parts = append(p.parts, part{literal: rest})
			re.WriteString(regexp.QuoteMeta(rest))
			break
		}
		if i > 0 {
			p.parts = append(p.parts, part{literal: rest[:i]})
			re.WriteString(regexp.QuoteMeta(rest[:i]))
		}
		j := strings.IndexByte(rest[i:], '}')
		if j < 0 {
			return nil, fmt.Errorf("filepattern: unclosed field in %q", pattern)
		}
		f, err := parseField(rest[i+1 : i+j])
		if err != nil {
			return nil, fmt.Errorf("filepattern: %q: %v", pattern, err)
		}
		p.parts = append(p.parts, part{field: f})
		p.fields = append(p.fields, f)
		if !seen[f.name] {
			seen[f.name] = true
			p.keys = append(p.keys, f.name)
		}
		re.WriteString("(" + f.regex() + ")")
		rest = rest[i+j+1:]
	}
	re.WriteString("$")
	var err error
	p.re, err = regexp.Compile(re.String())
	if err != nil {
		return nil, fmt.Errorf("filepattern: %q: %v", pattern, err)
	}
	return p, nil
}

var specRE = regexp.MustCompile(`^(?:(.)?([<>=^]))?(0)?(\d+)?(?:\.(\d+))?([sdxf])?$`)

func parseField(s string) (*field, error) {
	name, spec := s, ""
	if i := strings.IndexByte(s, ':'); i >= 0 {
		name, spec = s[:i], s[i+1:]
	}
	if name == "" {
		return nil, fmt.Errorf("field {%s} has no name", s)
	}
	f := &field{name: name, spec: spec, fill: ' '}
	if spec == "" {
		return f, nil
	}
	if strings.Contains(spec, "%") {
		return f, f.parseLayout()
	}
	m := specRE.FindStringSubmatch(spec)
	if m == nil {
		return nil, fmt.Errorf("field %s: invalid format specification %q", name, spec)
	}
	if m[1] != "" {
		f.fill = []rune(m[1])[0]
	}
	if m[2] != "" {
		f.align = m[2][0]
	}
	if m[3] != "" {
		f.zero = true
		if m[1] == "" {
			f.fill = '0'
		}
	}
	if m[4] != "" {
		f.width, _ = strconv.Atoi(m[4])
	}
	if m[5] != "" {
		f.precision, _ = strconv.Atoi(m[5])
	} else {
		f.precision = -1
	}
	switch m[6] {
	case "", "s":
		f.kind = stringField
	case "d":
		f.kind = intField
	case "x":
		f.kind = hexField
	case "f":
		f.kind = floatField
	}
	return f, nil
}

// directives gives the regular expression and fixed width of each
// supported strftime directive. A width of -1 means variable width.
var directives = map[byte]struct {
	re    string
	width int
}{
	'Y': {`\d{4}`, 4},
	'm': {`\d{2}`, 2},
	'd': {`\d{2}`, 2},
	'H': {`\d{2}`, 2},
	'M': {`\d{2}`, 2},
	'S': {`\d{2}`, 2},
	'j': {`\d{3}`, 3},
	'y': {`\d{2}`, 2},
	'b': {`[A-Za-z]{3}`, 3},
	'f': {`\d+`, -1},
}

func (f *field) parseLayout() error {
	f.kind = timeField
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			f.layout = append(f.layout, timeToken{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(f.spec); i++ {
		c := f.spec[i]
		if c != '%' {
			lit.WriteByte(c)
			continue
		}
		if i+1 == len(f.spec) {
			return fmt.Errorf("field %s: dangling %% in %q", f.name, f.spec)
		}
		i++
		d := f.spec[i]
		if d == '%' {
			lit.WriteByte('%')
			continue
		}
		if _, ok := directives[d]; !ok {
			return fmt.Errorf("field %s: unsupported directive %%%c", f.name, d)
		}
		flush()
		f.layout = append(f.layout, timeToken{directive: d})
	}
	flush()
	var re strings.Builder
	re.WriteString("^")
	for _, t := range f.layout {
		if t.directive == 0 {
			re.WriteString(regexp.QuoteMeta(t.literal))
		} else {
			re.WriteString("(" + directives[t.directive].re + ")")
		}
	}
	re.WriteString("$")
	var err error
	f.timeRe, err = regexp.Compile(re.String())
	return err
}

// regex returns the regular expression, without a capturing group, that
// matches the field.
func (f *field) regex() string {
	switch f.kind {
	case timeField:
		var re strings.Builder
		for _, t := range f.layout {
			if t.directive == 0 {
				re.WriteString(regexp.QuoteMeta(t.literal))
			} else {
				re.WriteString(directives[t.directive].re)
			}
		}
		return re.String()
	case intField:
		if f.width > 0 {
			return fmt.Sprintf(`[-+ \d%s]{%d}`, quoteFill(f.fill), f.width)
		}
		return `[-+]?\d+`
	case hexField:
		if f.width > 0 {
			return fmt.Sprintf(`[ \da-fA-F%s]{%d}`, quoteFill(f.fill), f.width)
		}
		return `[\da-fA-F]+`
	case floatField:
		if f.width > 0 {
			return fmt.Sprintf(`[-+ \d.eE%s]{%d}`, quoteFill(f.fill), f.width)
		}
		return `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`
	default:
		if f.width > 0 {
			return fmt.Sprintf(`.{%d}`, f.width)
		}
		return `[^/]*?`
	}
}

func quoteFill(r rune) string {
	return regexp.QuoteMeta(string(r))
}

// globWidth returns the number of characters the field occupies, or -1
// if it is variable.
func (f *field) globWidth() int {
	if f.kind != timeField {
		if f.width > 0 {
			return f.width
		}
		return -1
	}
	w := 0
	for _, t := range f.layout {
		if t.directive == 0 {
			w += len(t.literal)
			continue
		}
		dw := directives[t.directive].width
		if dw < 0 {
			return -1
		}
		w += dw
	}
	return w
}

// String returns the pattern text.
func (p *Pattern) String() string { return p.raw }

// Keys returns the field names of p in order of first appearance.
func (p *Pattern) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Parse extracts the field values from s. String fields are returned as
// string, integer fields as int, float fields as float64 and strftime
// fields as time.Time in UTC.
func (p *Pattern) Parse(s string) (map[string]interface{}, error) {
	m := p.re.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("filepattern: %q does not match pattern %q", s, p.raw)
	}
	o := make(map[string]interface{}, len(p.keys))
	for i, f := range p.fields {
		v, err := f.parse(m[i+1])
		if err != nil {
			return nil, fmt.Errorf("filepattern: parsing %q with pattern %q: %v", s, p.raw, err)
		}
		if prev, ok := o[f.name]; ok && !reflect.DeepEqual(prev, v) {
			return nil, fmt.Errorf("filepattern: %q: field %s has inconsistent values %v and %v", s, f.name, prev, v)
		}
		o[f.name] = v
	}
	return o, nil
}

// Validate returns whether s matches p.
func (p *Pattern) Validate(s string) bool {
	_, err := p.Parse(s)
	return err == nil
}

func (f *field) trim(s string) string {
	s = strings.Trim(s, " ")
	if f.fill != ' ' && f.fill != '0' {
		s = strings.Trim(s, string(f.fill))
	}
	return s
}

func (f *field) parse(s string) (interface{}, error) {
	switch f.kind {
	case stringField:
		if f.align != 0 {
			return f.trim(s), nil
		}
		return s, nil
	case intField:
		v, err := strconv.Atoi(f.trim(s))
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", f.name, err)
		}
		return v, nil
	case hexField:
		v, err := strconv.ParseInt(f.trim(s), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", f.name, err)
		}
		return int(v), nil
	case floatField:
		v, err := strconv.ParseFloat(f.trim(s), 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", f.name, err)
		}
		return v, nil
	case timeField:
		return f.parseTime(s)
	}
	panic("unreachable")
}

var months = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

func (f *field) parseTime(s string) (time.Time, error) {
	m := f.timeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("field %s: %q does not match %q", f.name, s, f.spec)
	}
	year, month, day := 1900, 1, 1
	var hour, minute, sec, nsec, yday int
	g := 1
	for _, t := range f.layout {
		if t.directive == 0 {
			continue
		}
		v := m[g]
		g++
		var n int
		if t.directive != 'b' && t.directive != 'f' {
			n, _ = strconv.Atoi(v)
		}
		switch t.directive {
		case 'Y':
			year = n
		case 'y':
			if n < 69 {
				year = 2000 + n
			} else {
				year = 1900 + n
			}
		case 'm':
			month = n
		case 'd':
			day = n
		case 'H':
			hour = n
		case 'M':
			minute = n
		case 'S':
			sec = n
		case 'j':
			yday = n
		case 'b':
			month = 0
			for i, mm := range months {
				if strings.EqualFold(v, mm) {
					month = i + 1
				}
			}
			if month == 0 {
				return time.Time{}, fmt.Errorf("field %s: invalid month %q", f.name, v)
			}
		case 'f':
			// Fractional seconds with up to nanosecond precision.
			if len(v) > 9 {
				v = v[:9]
			}
			v += strings.Repeat("0", 9-len(v))
			nsec, _ = strconv.Atoi(v)
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 60 {
		return time.Time{}, fmt.Errorf("field %s: %q is not a valid time", f.name, s)
	}
	if yday > 0 {
		month, day = 1, yday
	}
	// time.Date normalizes out-of-range days, so 20200230 would become
	// 1 March.
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || (yday == 0 && (int(date.Month()) != month || date.Day() != day)) {
		return time.Time{}, fmt.Errorf("field %s: %q is not a valid date", f.name, s)
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, nsec, time.UTC), nil
}

// Compose fills the fields of p with values. Every field must have a
// value.
func (p *Pattern) Compose(values map[string]interface{}) (string, error) {
	return p.compose(values, false)
}

// Globify fills the fields of p with values, replacing fields that have no
// value with '?' wildcards when their width is fixed and with '*'
// otherwise. The result can be passed to filepath.Glob.
func (p *Pattern) Globify(values map[string]interface{}) (string, error) {
	return p.compose(values, true)
}

func (p *Pattern) compose(values map[string]interface{}, glob bool) (string, error) {
	var b strings.Builder
	for _, pt := range p.parts {
		if pt.field == nil {
			b.WriteString(pt.literal)
			continue
		}
		f := pt.field
		v, ok := values[f.name]
		if !ok || v == nil {
			if !glob {
				return "", fmt.Errorf("filepattern: no value for field %s in pattern %q", f.name, p.raw)
			}
			if w := f.globWidth(); w > 0 {
				b.WriteString(strings.Repeat("?", w))
			} else {
				b.WriteString("*")
			}
			continue
		}
		s, err := f.format(v)
		if err != nil {
			return "", fmt.Errorf("filepattern: pattern %q: %v", p.raw, err)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func (f *field) format(v interface{}) (string, error) {
	var s string
	switch f.kind {
	case stringField:
		str, err := cast.ToStringE(v)
		if err != nil {
			return "", fmt.Errorf("field %s: %v", f.name, err)
		}
		return f.pad(str, '<'), nil
	case intField, hexField:
		n, err := cast.ToIntE(v)
		if err != nil {
			return "", fmt.Errorf("field %s: %v", f.name, err)
		}
		verb := "d"
		if f.kind == hexField {
			verb = "x"
		}
		if f.zero && f.align == 0 {
			return fmt.Sprintf("%0*"+verb, f.width, n), nil
		}
		s = fmt.Sprintf("%"+verb, n)
	case floatField:
		x, err := cast.ToFloat64E(v)
		if err != nil {
			return "", fmt.Errorf("field %s: %v", f.name, err)
		}
		prec := f.precision
		if prec < 0 {
			prec = 6
		}
		if f.zero && f.align == 0 {
			return fmt.Sprintf("%0*.*f", f.width, prec, x), nil
		}
		s = fmt.Sprintf("%.*f", prec, x)
	case timeField:
		t, err := cast.ToTimeE(v)
		if err != nil {
			return "", fmt.Errorf("field %s: %v", f.name, err)
		}
		return f.formatTime(t.UTC()), nil
	}
	return f.pad(s, '>'), nil
}

// pad pads s to the field width using the field's fill and alignment, or
// defaultAlign if none was given.
func (f *field) pad(s string, defaultAlign byte) string {
	n := f.width - len([]rune(s))
	if n <= 0 {
		return s
	}
	align := f.align
	if align == 0 {
		align = defaultAlign
	}
	fill := string(f.fill)
	switch align {
	case '<':
		return s + strings.Repeat(fill, n)
	case '^':
		return strings.Repeat(fill, n/2) + s + strings.Repeat(fill, n-n/2)
	default:
		return strings.Repeat(fill, n) + s
	}
}

func (f *field) formatTime(t time.Time) string {
	var b strings.Builder
	for _, tk := range f.layout {
		switch tk.directive {
		case 0:
			b.WriteString(tk.literal)
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'y':
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", t.Second())
		case 'j':
			fmt.Fprintf(&b, "%03d", t.YearDay())
		case 'b':
			b.WriteString(t.Month().String()[:3])
		case 'f':
			fmt.Fprintf(&b, "%06d", t.Nanosecond()/1000)
		}
	}
	return b.String()
}

// FileBase returns the trailing components of path that pattern describes:
// one more than the number of separators in pattern.
func FileBase(path, pattern string) string {
	n := strings.Count(pattern, "/") + 1
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return strings.Join(parts, "/")
}

// MatchFilenames returns the elements of filenames whose trailing
// components match pattern.
func MatchFilenames(filenames []string, pattern string) ([]string, error) {
	p, err := New(pattern)
	if err != nil {
		return nil, err
	}
	var o []string
	for _, f := range filenames {
		if p.Validate(FileBase(f, pattern)) {
			o = append(o, f)
		}
	}
	return o, nil
}
