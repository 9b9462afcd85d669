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
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a catalogue file format.
type Format string

// These are the supported catalogue file formats.
const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatFromPath determines the catalogue format from a file extension.
func FormatFromPath(p string) (Format, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("geocat: unknown catalogue format for file %s", p)
	}
}

//go:embed catalogues/*.yaml
var builtinFS embed.FS

// BuiltinReaders returns the names of the catalogues compiled into the
// package.
func BuiltinReaders() []string {
	entries, err := builtinFS.ReadDir("catalogues")
	if err != nil {
		panic(err)
	}
	var o []string
	for _, e := range entries {
		o = append(o, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(o)
	return o
}

// BuiltinCatalogue returns the compiled-in catalogue with the given name.
// Files named "<name>.yaml", "<name>.yml" or "<name>.toml" in any of
// overrideDirs are merged over the built-in definition, in order, so that
// individual entries can be changed without copying the whole catalogue.
func BuiltinCatalogue(name string, overrideDirs ...string) (*Catalogue, error) {
	b, err := builtinFS.ReadFile("catalogues/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("geocat: no built-in catalogue named %q (available: %s)",
			name, strings.Join(BuiltinReaders(), ", "))
	}
	docs := make([]map[string]interface{}, 0, 1+len(overrideDirs))
	doc, err := decodeDocument(bytes.NewReader(b), YAML)
	if err != nil {
		return nil, fmt.Errorf("geocat: built-in catalogue %s: %v", name, err)
	}
	docs = append(docs, doc)
	for _, dir := range overrideDirs {
		dir = os.ExpandEnv(dir)
		for _, ext := range []string{".yaml", ".yml", ".toml"} {
			p := filepath.Join(dir, name+ext)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			doc, err := readDocumentFile(p)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return fromDocuments(docs)
}

// LoadCatalogue reads the catalogue files at paths, recursively merging
// each file over the ones before it, and validates the result.
func LoadCatalogue(paths ...string) (*Catalogue, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("geocat: no catalogue files specified")
	}
	docs := make([]map[string]interface{}, len(paths))
	for i, p := range paths {
		var err error
		docs[i], err = readDocumentFile(os.ExpandEnv(p))
		if err != nil {
			return nil, err
		}
	}
	return fromDocuments(docs)
}

// ReadCatalogue reads and validates a single catalogue from r.
func ReadCatalogue(r io.Reader, f Format) (*Catalogue, error) {
	doc, err := decodeDocument(r, f)
	if err != nil {
		return nil, fmt.Errorf("geocat: reading catalogue: %v", err)
	}
	return fromDocuments([]map[string]interface{}{doc})
}

func readDocumentFile(p string) (map[string]interface{}, error) {
	f, err := FormatFromPath(p)
	if err != nil {
		return nil, err
	}
	r, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("geocat: opening catalogue: %v", err)
	}
	defer r.Close()
	doc, err := decodeDocument(r, f)
	if err != nil {
		return nil, fmt.Errorf("geocat: reading catalogue %s: %v", p, err)
	}
	return doc, nil
}

// decodeDocument decodes a YAML or TOML document into generic maps.
func decodeDocument(r io.Reader, f Format) (map[string]interface{}, error) {
	doc := make(map[string]interface{})
	switch f {
	case YAML:
		b, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, err
		}
	case TOML:
		if _, err := toml.DecodeReader(r, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid format %q", f)
	}
	return doc, nil
}

// fromDocuments merges docs in order and decodes the result into a
// validated Catalogue.
func fromDocuments(docs []map[string]interface{}) (*Catalogue, error) {
	merged := make(map[string]interface{})
	for _, d := range docs {
		merged = MergeDocuments(merged, d)
	}
	b, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("geocat: re-encoding merged catalogue: %v", err)
	}
	c := new(Catalogue)
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("geocat: decoding catalogue: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MergeDocuments recursively merges src into dst and returns dst.
// Nested maps are merged key by key; any other value in src replaces the
// value in dst.
func MergeDocuments(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{})
	}
	for k, sv := range src {
		sm, sIsMap := asStringMap(sv)
		dm, dIsMap := asStringMap(dst[k])
		if sIsMap && dIsMap {
			dst[k] = MergeDocuments(dm, sm)
			continue
		}
		if sIsMap {
			dst[k] = MergeDocuments(nil, sm)
			continue
		}
		dst[k] = sv
	}
	return dst
}

// asStringMap converts the map types produced by the YAML and TOML
// decoders into map[string]interface{}.
func asStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		o := make(map[string]interface{}, len(m))
		for k, vv := range m {
			o[fmt.Sprint(k)] = vv
		}
		return o, true
	default:
		return nil, false
	}
}
