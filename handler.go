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
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// ErrUnknownFileHandler is returned when a catalogue refers to a file
// handler that has not been registered.
var ErrUnknownFileHandler = errors.New("geocat: unknown file handler")

// ErrChannelNotAvailable is returned by file handlers asked for a dataset
// that is not present in their file.
var ErrChannelNotAvailable = errors.New("geocat: channel not available in file")

// FileHandler decodes the datasets in a single file.
type FileHandler interface {
	// StartTime and EndTime give the nominal time span of the file.
	StartTime() time.Time
	EndTime() time.Time

	// Dataset reads, masks and calibrates the dataset identified by id.
	// info is the catalogue entry for id.
	Dataset(ctx context.Context, id DatasetID, info *DatasetInfo) (*Dataset, error)

	// AreaDef returns the geolocation of the dataset identified by id.
	AreaDef(id DatasetID) (Area, error)

	// Close releases any resources held by the handler.
	Close() error
}

// ChannelLister is implemented by file handlers whose files may contain
// only a subset of the channels in the catalogue.
type ChannelLister interface {
	AvailableChannels() []string
}

// Segmenter is implemented by file handlers whose files hold one segment
// of a segmented time slot. Segments are numbered from one.
type Segmenter interface {
	Segment() int
}

// HandlerOptions holds reader keyword arguments that are passed through to
// file handlers, for example "calib_mode".
type HandlerOptions map[string]interface{}

// String returns the value of key as a string, or def if it is not set.
func (o HandlerOptions) String(key, def string) string {
	v, ok := o[key]
	if !ok {
		return def
	}
	return cast.ToString(v)
}

// Bool returns the value of key as a bool, or def if it is not set.
func (o HandlerOptions) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	return cast.ToBool(v)
}

// Float returns the value of key as a float64, or def if it is not set.
func (o HandlerOptions) Float(key string, def float64) float64 {
	v, ok := o[key]
	if !ok {
		return def
	}
	return cast.ToFloat64(v)
}

// NewFileHandlerFunc creates a FileHandler for filename. info holds the
// fields parsed from the filename and ft is the catalogue file type the
// file was matched against.
type NewFileHandlerFunc func(filename string, info map[string]interface{}, ft *FileType, opts HandlerOptions) (FileHandler, error)

var (
	handlersMu sync.RWMutex
	handlers   = make(map[string]NewFileHandlerFunc)
)

// RegisterFileHandler makes a file handler available under name, which
// catalogues refer to in their file_reader fields. It panics if f is nil
// or if name is already registered.
func RegisterFileHandler(name string, f NewFileHandlerFunc) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	if f == nil {
		panic("geocat: RegisterFileHandler function is nil")
	}
	if _, dup := handlers[name]; dup {
		panic("geocat: RegisterFileHandler called twice for " + name)
	}
	handlers[name] = f
}

// FileHandlerNames returns the sorted names of the registered file
// handlers.
func FileHandlerNames() []string {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	return handlerNames()
}

func lookupFileHandler(name string) (NewFileHandlerFunc, error) {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	f, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownFileHandler, name, handlerNames())
	}
	return f, nil
}

// handlerNames requires handlersMu to be held.
func handlerNames() []string {
	o := make([]string, 0, len(handlers))
	for n := range handlers {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}
