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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/geocat/geocat"
	"github.com/geocat/geocat/cloud"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	o := make([]string, len(s))
	for i := range s {
		o[i] = os.ExpandEnv(s[i])
	}
	return o
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("geocat: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("geocat: invalid type for %s: %#v", varName, i)
	}
}

// parseTime parses an optional time option.
func parseTime(varName string, cfg *viper.Viper) (time.Time, error) {
	s := strings.TrimSpace(cfg.GetString(varName))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("geocat: parsing %s: %v", varName, err)
	}
	return t.UTC(), nil
}

// Catalogue returns the catalogue specified by the Catalogues option or,
// if that is empty, the built-in catalogue named by the Reader option
// merged with any overrides in ConfigDirs.
func Catalogue(cfg *viper.Viper) (*geocat.Catalogue, error) {
	if files := expandStringSlice(cfg.GetStringSlice("Catalogues")); len(files) > 0 {
		return geocat.LoadCatalogue(files...)
	}
	name := cfg.GetString("Reader")
	if name == "" {
		return nil, fmt.Errorf("geocat: no Reader specified; available readers are %s",
			strings.Join(geocat.BuiltinReaders(), ", "))
	}
	return geocat.BuiltinCatalogue(name, expandStringSlice(cfg.GetStringSlice("ConfigDirs"))...)
}

// newReader creates a reader from the configuration and selects its
// input files, which are given by the Files option and args.
func newReader(ctx context.Context, cfg *viper.Viper, args []string) (*geocat.Reader, map[string][]string, error) {
	cat, err := Catalogue(cfg)
	if err != nil {
		return nil, nil, err
	}
	hopts, err := GetStringMapString("HandlerOptions", cfg)
	if err != nil {
		return nil, nil, err
	}
	ho := make(geocat.HandlerOptions, len(hopts))
	for k, v := range hopts {
		ho[k] = os.ExpandEnv(v)
	}
	start, err := parseTime("StartTime", cfg)
	if err != nil {
		return nil, nil, err
	}
	end, err := parseTime("EndTime", cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []geocat.Option{
		geocat.WithLogger(logrus.StandardLogger()),
		geocat.WithHandlerOptions(ho),
		geocat.WithTimeRange(start, end),
	}
	if n := cfg.GetInt("Workers"); n > 0 {
		opts = append(opts, geocat.WithWorkers(n))
	}
	r, err := geocat.NewReader(cat, opts...)
	if err != nil {
		return nil, nil, err
	}

	paths := expandStringSlice(append(cfg.GetStringSlice("Files"), args...))
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("geocat: no input files specified")
	}
	local, err := fetch(ctx, paths, os.ExpandEnv(cfg.GetString("DownloadDir")))
	if err != nil {
		return nil, nil, err
	}
	files, err := selectFiles(r, local)
	if err != nil {
		return nil, nil, err
	}
	return r, files, nil
}

// fetch downloads any remote paths into dir, which is created if it
// is empty.
func fetch(ctx context.Context, paths []string, dir string) ([]string, error) {
	remote := false
	for _, p := range paths {
		remote = remote || cloud.IsBlob(p) || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
	}
	if !remote {
		return paths, nil
	}
	if dir == "" {
		var err error
		if dir, err = os.MkdirTemp("", "geocat"); err != nil {
			return nil, fmt.Errorf("geocat: creating download directory: %v", err)
		}
	} else if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("geocat: creating download directory: %v", err)
	}
	return cloud.FetchAll(ctx, paths, dir)
}

// selectFiles selects the files among paths, and in the directories among
// paths, that r can read.
func selectFiles(r *geocat.Reader, paths []string) (map[string][]string, error) {
	o := make(map[string][]string)
	var names []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("geocat: %v", err)
		}
		if !fi.IsDir() {
			names = append(names, p)
			continue
		}
		sel, err := r.SelectFilesFromDirectory(p)
		if err != nil {
			return nil, err
		}
		for ft, fs := range sel {
			o[ft] = append(o[ft], fs...)
		}
	}
	for ft, fs := range r.SelectFilesFromPathnames(names) {
		o[ft] = append(o[ft], fs...)
	}
	return o, nil
}

// Open creates a reader from the configuration and creates file handlers
// for its input files.
func Open(ctx context.Context, cfg *viper.Viper, args []string) (*geocat.Reader, error) {
	r, files, err := newReader(ctx, cfg, args)
	if err != nil {
		return nil, err
	}
	loaded, err := r.CreateFileHandlers(ctx, files)
	if err != nil {
		r.Close()
		return nil, err
	}
	if len(loaded) == 0 {
		r.Close()
		return nil, fmt.Errorf("geocat: none of the input files can be read by %s", r.Name())
	}
	return r, nil
}
