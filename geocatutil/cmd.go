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

// Package geocatutil holds the command-line interface to geocat.
package geocatutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/geocat/geocat"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	// File handlers register themselves with geocat.
	_ "github.com/geocat/geocat/handlers/fci"
	_ "github.com/geocat/geocat/handlers/seviri"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	readerFlags := []*pflag.FlagSet{datasetsCmd.Flags(), selectCmd.Flags(), infoCmd.Flags(),
		loadCmd.Flags(), saveCmd.Flags(), quicklookCmd.Flags(), areaCmd.Flags()}
	fileFlags := []*pflag.FlagSet{selectCmd.Flags(), infoCmd.Flags(),
		loadCmd.Flags(), saveCmd.Flags(), quicklookCmd.Flags(), areaCmd.Flags()}
	loadFlags := []*pflag.FlagSet{loadCmd.Flags(), saveCmd.Flags(), quicklookCmd.Flags(), areaCmd.Flags()}

	// Options are the configuration options available to geocat.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to print: one of
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Reader",
			usage: `
              Reader is the name of the built-in catalogue describing the
              files to read. Run 'geocat readers' for a list.`,
			shorthand:  "r",
			defaultVal: "seviri_l1b_native",
			flagsets:   readerFlags,
		},
		{
			name: "ConfigDirs",
			usage: `
              ConfigDirs are directories searched for catalogue files named
              after the Reader, which are merged over the built-in catalogue.
              They can include environment variables.`,
			defaultVal: []string{},
			flagsets:   readerFlags,
		},
		{
			name: "Catalogues",
			usage: `
              Catalogues are paths to YAML or TOML catalogue files, merged in
              order, that are used instead of a built-in catalogue. They can
              include environment variables.`,
			defaultVal: []string{},
			flagsets:   readerFlags,
		},
		{
			name: "Files",
			usage: `
              Files are the input files or directories. Blob storage URLs
              (s3://, gs:// or file://) and http(s) URLs are downloaded first;
              a blob URL ending in a slash stands for every blob under it.
              Positional arguments are added to Files.`,
			shorthand:  "f",
			defaultVal: []string{},
			flagsets:   fileFlags,
		},
		{
			name: "DownloadDir",
			usage: `
              DownloadDir is the directory remote files are downloaded to. If
              it is empty a temporary directory is used.`,
			defaultVal: "",
			flagsets:   fileFlags,
		},
		{
			name: "StartTime",
			usage: `
              StartTime excludes files that end before it, for example
              2020-01-01T12:00:00Z.`,
			defaultVal: "",
			flagsets:   fileFlags,
		},
		{
			name: "EndTime",
			usage: `
              EndTime excludes files that start after it.`,
			defaultVal: "",
			flagsets:   fileFlags,
		},
		{
			name: "HandlerOptions",
			usage: `
              HandlerOptions are passed to the file handlers, for example
              {"calib_mode": "gsics"} or {"clip_negative_radiances": "true"}.`,
			defaultVal: map[string]string{},
			flagsets:   fileFlags,
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of files read concurrently. Zero means
              one per CPU.`,
			defaultVal: 0,
			flagsets:   loadFlags,
		},
		{
			name: "Datasets",
			usage: `
              Datasets are the datasets to load, each given as a name or a
              wavelength in µm, optionally followed by a colon and a
              calibration level (for example IR_108:radiance or 10.8). If
              empty, the default channels of the reader are loaded.`,
			shorthand:  "d",
			defaultVal: []string{},
			flagsets:   loadFlags,
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the NetCDF file to write. It can be a
              blob storage URL and can include environment variables.`,
			shorthand:  "o",
			defaultVal: "geocat.nc",
			flagsets:   []*pflag.FlagSet{saveCmd.Flags()},
		},
		{
			name: "DerivedVariables",
			usage: `
              DerivedVariables are additional output variables computed pixel
              by pixel from expressions of the loaded datasets, for example
              {"split_window": "IR_108 - IR_120"}. The functions exp, log,
              sqrt and abs are available.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{saveCmd.Flags()},
		},
		{
			name: "QuicklookFile",
			usage: `
              QuicklookFile is the path of the image to write. The format
              follows from the extension (png, jpg, svg, pdf or tiff).`,
			defaultVal: "quicklook.png",
			flagsets:   []*pflag.FlagSet{quicklookCmd.Flags()},
		},
		{
			name: "xlsx",
			usage: `
              xlsx is the path of a spreadsheet to export the dataset table
              to, instead of printing it.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{datasetsCmd.Flags()},
		},
		{
			name: "geojson",
			usage: `
              geojson prints the footprint of the area as GeoJSON in
              projection coordinates instead of the area definition.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{areaCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GEOCAT")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(readersCmd)
	Root.AddCommand(datasetsCmd)
	Root.AddCommand(selectCmd)
	Root.AddCommand(infoCmd)
	Root.AddCommand(loadCmd)
	Root.AddCommand(saveCmd)
	Root.AddCommand(quicklookCmd)
	Root.AddCommand(areaCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("geocat: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("geocat: LogLevel: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "geocat",
	Short: "A reader for geostationary satellite imagery.",
	Long: `geocat selects, reads and calibrates level-1 imagery from geostationary
satellite instruments such as MSG SEVIRI and MTG FCI. Use the subcommands
specified below to access its functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GEOCAT_var' where 'var' is the
name of the variable to be set. Paths are additionally allowed to contain
environment variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	SilenceUsage:      true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of geocat.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "geocat v%s\n", geocat.Version)
	},
	DisableAutoGenTag: true,
}

var readersCmd = &cobra.Command{
	Use:   "readers",
	Short: "List the available readers",
	Long: `readers lists the built-in catalogues and the file handlers compiled
into this program.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Readers(cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Print the datasets of a reader",
	Long: `datasets prints the table of datasets in the catalogue of a reader: their
wavelength ranges, resolutions and the calibration levels they support, with
the units of each. With --xlsx the table is exported to a spreadsheet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := Catalogue(Cfg)
		if err != nil {
			return err
		}
		if path := os.ExpandEnv(Cfg.GetString("xlsx")); path != "" {
			return DatasetsXLSX(path, cat)
		}
		return Datasets(cmd.OutOrStdout(), cat)
	},
	DisableAutoGenTag: true,
}

var selectCmd = &cobra.Command{
	Use:   "select [files or directories...]",
	Short: "Select the files a reader can read",
	Long: `select prints the input files that match the file patterns of the reader,
grouped by file type.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, files, err := newReader(context.Background(), Cfg, args)
		if err != nil {
			return err
		}
		defer r.Close()
		return Select(cmd.OutOrStdout(), files)
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info [files or directories...]",
	Short: "Describe a set of files",
	Long: `info opens the selected files and prints their time span and the datasets
they can provide.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Open(context.Background(), Cfg, args)
		if err != nil {
			return err
		}
		defer r.Close()
		return Info(cmd.OutOrStdout(), r)
	},
	DisableAutoGenTag: true,
}

var loadCmd = &cobra.Command{
	Use:   "load [files or directories...]",
	Short: "Load datasets and print statistics",
	Long: `load reads, calibrates and assembles the requested datasets and prints
summary statistics of each.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Open(context.Background(), Cfg, args)
		if err != nil {
			return err
		}
		defer r.Close()
		ds, err := Load(context.Background(), r, Cfg.GetStringSlice("Datasets"))
		if err != nil {
			return err
		}
		return PrintStats(cmd.OutOrStdout(), ds)
	},
	DisableAutoGenTag: true,
}

var saveCmd = &cobra.Command{
	Use:   "save [files or directories...]",
	Short: "Save datasets to NetCDF",
	Long: `save loads the requested datasets and writes them, together with any
derived variables, to a NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		derived, err := GetStringMapString("DerivedVariables", Cfg)
		if err != nil {
			return err
		}
		r, err := Open(context.Background(), Cfg, args)
		if err != nil {
			return err
		}
		defer r.Close()
		ds, err := Load(context.Background(), r, Cfg.GetStringSlice("Datasets"))
		if err != nil {
			return err
		}
		return Save(context.Background(), os.ExpandEnv(Cfg.GetString("OutputFile")), ds, derived)
	},
	DisableAutoGenTag: true,
}

var quicklookCmd = &cobra.Command{
	Use:   "quicklook [files or directories...]",
	Short: "Draw an image of a dataset",
	Long: `quicklook loads the first requested dataset and draws it as a heat map
in projection coordinates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Open(context.Background(), Cfg, args)
		if err != nil {
			return err
		}
		defer r.Close()
		d, err := loadOne(context.Background(), r, Cfg.GetStringSlice("Datasets"))
		if err != nil {
			return err
		}
		return Quicklook(context.Background(), os.ExpandEnv(Cfg.GetString("QuicklookFile")), d)
	},
	DisableAutoGenTag: true,
}

var areaCmd = &cobra.Command{
	Use:   "area [files or directories...]",
	Short: "Print the area of a dataset",
	Long: `area loads the first requested dataset and prints its area definition as
JSON, or with --geojson its footprint as GeoJSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Open(context.Background(), Cfg, args)
		if err != nil {
			return err
		}
		defer r.Close()
		d, err := loadOne(context.Background(), r, Cfg.GetStringSlice("Datasets"))
		if err != nil {
			return err
		}
		return PrintArea(cmd.OutOrStdout(), d.Area, Cfg.GetBool("geojson"))
	},
	DisableAutoGenTag: true,
}
