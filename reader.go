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
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/requestcache"
	"github.com/golang/groupcache/lru"
	"github.com/geocat/geocat/filepattern"
	"github.com/geocat/geocat/internal/hash"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Reader selects files described by a Catalogue, creates file handlers
// for them and loads datasets from the handlers.
type Reader struct {
	Catalogue *Catalogue

	log        logrus.FieldLogger
	opts       HandlerOptions
	start, end time.Time
	workers    int

	patterns map[string][]*filepattern.Pattern
	handles  map[string][]*fileHandle

	cache     *requestcache.Cache
	cacheOnce sync.Once

	// pieces holds successfully read pieces only, so that failed
	// reads are retried by later loads.
	pieces   *lru.Cache
	piecesMu sync.Mutex
}

// fileHandle is an open file handler and the file it reads.
type fileHandle struct {
	Filename string
	Info     map[string]interface{}
	FileType *FileType
	Handler  FileHandler
}

// segment returns the segment number of the file, starting at one.
func (f *fileHandle) segment() int {
	if s, ok := f.Handler.(Segmenter); ok {
		return s.Segment()
	}
	if v, ok := f.Info["segment"]; ok {
		return cast.ToInt(v)
	}
	return 1
}

// provides returns whether the file contains the named dataset.
func (f *fileHandle) provides(name string) bool {
	cl, ok := f.Handler.(ChannelLister)
	if !ok {
		return true
	}
	for _, c := range cl.AvailableChannels() {
		if c == name {
			return true
		}
	}
	return false
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used by the reader. The default is the
// logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Reader) { r.log = l }
}

// WithHandlerOptions sets options passed to every file handler.
func WithHandlerOptions(o HandlerOptions) Option {
	return func(r *Reader) { r.opts = o }
}

// WithTimeRange restricts the reader to files whose filename time span
// overlaps [start, end]. A zero time leaves that side unbounded.
func WithTimeRange(start, end time.Time) Option {
	return func(r *Reader) { r.start, r.end = start, end }
}

// WithWorkers sets the number of files that are read concurrently. The
// default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Reader) { r.workers = n }
}

// NewReader validates cat and returns a reader for it.
func NewReader(cat *Catalogue, opts ...Option) (*Reader, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	r := &Reader{
		Catalogue: cat,
		log:       logrus.StandardLogger(),
		opts:      make(HandlerOptions),
		workers:   runtime.GOMAXPROCS(0),
		patterns:  make(map[string][]*filepattern.Pattern),
		handles:   make(map[string][]*fileHandle),
	}
	for _, o := range opts {
		o(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	for name, ft := range cat.FileTypes {
		for _, p := range ft.FilePatterns {
			pp, err := filepattern.New(p)
			if err != nil {
				return nil, err
			}
			r.patterns[name] = append(r.patterns[name], pp)
		}
	}
	return r, nil
}

// Name returns the name of the reader.
func (r *Reader) Name() string { return r.Catalogue.Reader.Name }

// SelectFilesFromPathnames returns the files in names that match the
// patterns of each file type, keyed by file type name. Patterns with
// directory components are matched against the same number of trailing
// path components.
func (r *Reader) SelectFilesFromPathnames(names []string) map[string][]string {
	o := make(map[string][]string)
	for _, ftName := range r.Catalogue.FileTypeNames() {
		seen := make(map[string]bool)
		for _, p := range r.patterns[ftName] {
			matched, err := filepattern.MatchFilenames(names, p.String())
			if err != nil {
				// Patterns were compiled in NewReader.
				panic(err)
			}
			for _, m := range matched {
				if !seen[m] {
					seen[m] = true
					o[ftName] = append(o[ftName], m)
				}
			}
		}
		sort.Strings(o[ftName])
	}
	return o
}

// SelectFilesFromDirectory searches dir for files matching the patterns
// of each file type.
func (r *Reader) SelectFilesFromDirectory(dir string) (map[string][]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, ftName := range r.Catalogue.FileTypeNames() {
		for _, p := range r.patterns[ftName] {
			glob, err := p.Globify(nil)
			if err != nil {
				return nil, err
			}
			matches, err := filepath.Glob(filepath.Join(dir, glob))
			if err != nil {
				return nil, fmt.Errorf("geocat: searching %s: %v", dir, err)
			}
			for _, m := range matches {
				if !seen[m] {
					seen[m] = true
					names = append(names, m)
				}
			}
		}
	}
	return r.SelectFilesFromPathnames(names), nil
}

// parse returns the fields of the first pattern of ft that matches
// filename.
func (r *Reader) parse(ftName, filename string) (map[string]interface{}, bool) {
	for _, p := range r.patterns[ftName] {
		info, err := p.Parse(filepattern.FileBase(filename, p.String()))
		if err == nil {
			return info, true
		}
	}
	return nil, false
}

// inTimeRange returns whether the filename time span overlaps the time
// range of the reader. Files without times in their names always match.
func (r *Reader) inTimeRange(info map[string]interface{}) bool {
	st, hasStart := info["start_time"].(time.Time)
	et, hasEnd := info["end_time"].(time.Time)
	switch {
	case !hasStart && !hasEnd:
		return true
	case !hasStart:
		st = et
	case !hasEnd:
		et = st
	}
	if !r.end.IsZero() && st.After(r.end) {
		return false
	}
	if !r.start.IsZero() && et.Before(r.start) {
		return false
	}
	return true
}

// CreateFileHandlers creates file handlers for files, which is keyed by
// file type name as returned by SelectFilesFromPathnames. It returns the
// names of the file types that have handlers.
func (r *Reader) CreateFileHandlers(ctx context.Context, files map[string][]string) ([]string, error) {
	ftNames := make([]string, 0, len(files))
	for n := range files {
		ftNames = append(ftNames, n)
	}
	sort.Strings(ftNames)
	for _, ftName := range ftNames {
		ft, ok := r.Catalogue.FileTypes[ftName]
		if !ok {
			return nil, fmt.Errorf("geocat: reader %s has no file type %s", r.Name(), ftName)
		}
		newHandler, err := lookupFileHandler(ft.FileReader)
		if err != nil {
			return nil, err
		}
		for _, filename := range files[ftName] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			info, ok := r.parse(ftName, filename)
			if !ok {
				r.log.WithField("file", filename).Debugf("file does not match any %s pattern", ftName)
				continue
			}
			if !r.inTimeRange(info) {
				r.log.WithField("file", filename).Debug("file is outside of the requested time range")
				continue
			}
			fh, err := newHandler(filename, info, ft, r.opts)
			if err != nil {
				return nil, fmt.Errorf("geocat: creating %s handler for %s: %w", ft.FileReader, filename, err)
			}
			r.handles[ftName] = append(r.handles[ftName], &fileHandle{
				Filename: filename,
				Info:     info,
				FileType: ft,
				Handler:  fh,
			})
			r.log.WithFields(logrus.Fields{
				"file":      filepath.Base(filename),
				"file_type": ftName,
				"handler":   ft.FileReader,
			}).Debug("created file handler")
		}
		hs := r.handles[ftName]
		sort.SliceStable(hs, func(i, j int) bool {
			ti, tj := hs[i].Handler.StartTime(), hs[j].Handler.StartTime()
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return hs[i].segment() < hs[j].segment()
		})
	}
	r.dropIncomplete()
	return r.LoadedFileTypes(), nil
}

// dropIncomplete removes the handlers of file types whose required file
// types have no handlers.
func (r *Reader) dropIncomplete() {
	for _, ftName := range r.Catalogue.FileTypeNames() {
		ft := r.Catalogue.FileTypes[ftName]
		if len(r.handles[ftName]) == 0 {
			continue
		}
		for _, req := range ft.RequiredFileTypes {
			if len(r.handles[req]) > 0 {
				continue
			}
			r.log.WithFields(logrus.Fields{
				"file_type": ftName,
				"requires":  req,
			}).Warn("required file type missing; dropping files")
			for _, h := range r.handles[ftName] {
				h.Handler.Close()
			}
			delete(r.handles, ftName)
			break
		}
	}
}

// LoadedFileTypes returns the sorted names of the file types that have
// handlers.
func (r *Reader) LoadedFileTypes() []string {
	var o []string
	for n, hs := range r.handles {
		if len(hs) > 0 {
			o = append(o, n)
		}
	}
	sort.Strings(o)
	return o
}

// Files returns the names of the files that have handlers.
func (r *Reader) Files() []string {
	var o []string
	for _, ftName := range r.LoadedFileTypes() {
		for _, h := range r.handles[ftName] {
			o = append(o, h.Filename)
		}
	}
	return o
}

// Close closes all file handlers.
func (r *Reader) Close() error {
	var errs []string
	for ftName, hs := range r.handles {
		for _, h := range hs {
			if err := h.Handler.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		delete(r.handles, ftName)
	}
	if len(errs) > 0 {
		return fmt.Errorf("geocat: closing file handlers: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StartTime returns the earliest start time of all file handlers.
func (r *Reader) StartTime() time.Time {
	var t time.Time
	for _, hs := range r.handles {
		for _, h := range hs {
			if st := h.Handler.StartTime(); t.IsZero() || st.Before(t) {
				t = st
			}
		}
	}
	return t
}

// EndTime returns the latest end time of all file handlers.
func (r *Reader) EndTime() time.Time {
	var t time.Time
	for _, hs := range r.handles {
		for _, h := range hs {
			if et := h.Handler.EndTime(); et.After(t) {
				t = et
			}
		}
	}
	return t
}

// handlesFor returns the handles of the files that provide the dataset
// described by info, in time and segment order.
func (r *Reader) handlesFor(info *DatasetInfo) []*fileHandle {
	var o []*fileHandle
	for _, ftName := range info.FileType {
		for _, h := range r.handles[ftName] {
			if h.provides(info.Name) {
				o = append(o, h)
			}
		}
	}
	return o
}

// AvailableIDs returns the IDs of the datasets that can be loaded from
// the files that have handlers.
func (r *Reader) AvailableIDs() []DatasetID {
	var o []DatasetID
	for _, name := range r.Catalogue.Names() {
		info, _ := r.Catalogue.Dataset(name)
		if len(r.handlesFor(info)) == 0 {
			continue
		}
		o = append(o, idsFor(info)...)
	}
	sortIDs(o)
	return o
}

// Load loads the datasets matching queries from the files that have
// handlers. Each query selects a single dataset; see Catalogue.Find.
func (r *Reader) Load(ctx context.Context, queries ...DatasetQuery) (map[DatasetID]*Dataset, error) {
	available := r.AvailableIDs()
	var ids []DatasetID
	var missing []string
	for _, q := range queries {
		id, err := findID(available, q)
		if err != nil {
			missing = append(missing, q.String())
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: reader %s cannot load %s", ErrDatasetNotFound, r.Name(), strings.Join(missing, ", "))
	}

	o := make(map[DatasetID]*Dataset, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id DatasetID) {
			defer wg.Done()
			d, err := r.loadDataset(ctx, id)
			if err != nil {
				errs[i] = fmt.Errorf("geocat: loading %s: %w", id, err)
				return
			}
			mu.Lock()
			o[id] = d
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

type loadRequest struct {
	handle *fileHandle
	id     DatasetID
	info   *DatasetInfo
}

type loadResult struct {
	dataset *Dataset
	area    Area
	err     error
}

// loadPiece reads one file. Errors are returned inside the result so
// that deduplicated requests waiting on the same key are released.
func (r *Reader) loadPiece(ctx context.Context, payload interface{}) (interface{}, error) {
	req := payload.(loadRequest)
	if err := ctx.Err(); err != nil {
		return loadResult{err: err}, nil
	}
	start := time.Now()
	d, err := req.handle.Handler.Dataset(ctx, req.id, req.info)
	if err != nil {
		return loadResult{err: err}, nil
	}
	area, err := req.handle.Handler.AreaDef(req.id)
	if err != nil {
		return loadResult{err: fmt.Errorf("area of %s: %w", req.handle.Filename, err)}, nil
	}
	r.log.WithFields(logrus.Fields{
		"file":    filepath.Base(req.handle.Filename),
		"dataset": req.id.String(),
		"time":    time.Since(start),
	}).Debug("read dataset")
	return loadResult{dataset: d, area: area}, nil
}

func (r *Reader) requestCache() *requestcache.Cache {
	r.cacheOnce.Do(func() {
		r.cache = requestcache.NewCache(r.loadPiece, r.workers, requestcache.Deduplicate())
		r.pieces = lru.New(4 * r.workers)
	})
	return r.cache
}

// readPiece returns the piece of dataset id stored in the file of h,
// from memory if it has been read successfully before.
func (r *Reader) readPiece(ctx context.Context, h *fileHandle, id DatasetID, info *DatasetInfo) loadResult {
	cache := r.requestCache()
	key := hash.Key(h.Filename, id)
	r.piecesMu.Lock()
	v, ok := r.pieces.Get(key)
	r.piecesMu.Unlock()
	if ok {
		return v.(loadResult)
	}
	v, err := cache.NewRequest(ctx, loadRequest{handle: h, id: id, info: info}, key).Result()
	if err != nil {
		return loadResult{err: err}
	}
	res := v.(loadResult)
	if res.err == nil {
		r.piecesMu.Lock()
		r.pieces.Add(key, res)
		r.piecesMu.Unlock()
	}
	return res
}

func (r *Reader) loadDataset(ctx context.Context, id DatasetID) (*Dataset, error) {
	info, err := r.Catalogue.Info(id)
	if err != nil {
		return nil, err
	}
	handles := r.handlesFor(info)
	if len(handles) == 0 {
		return nil, fmt.Errorf("%w: no files provide %s", ErrDatasetNotFound, id.Name)
	}

	pieces := make([]loadResult, len(handles))
	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *fileHandle) {
			defer wg.Done()
			pieces[i] = r.readPiece(ctx, h, id, info)
		}(i, h)
	}
	wg.Wait()
	for i, p := range pieces {
		if p.err != nil {
			return nil, fmt.Errorf("reading %s: %w", handles[i].Filename, p.err)
		}
	}

	d, err := r.assemble(id, handles, pieces)
	if err != nil {
		return nil, err
	}
	r.setAttrs(d, info, handles)
	return d, nil
}

// setAttrs labels d with its catalogue metadata and time span.
func (r *Reader) setAttrs(d *Dataset, info *DatasetInfo, handles []*fileHandle) {
	units, standardName := info.Units, info.StandardName
	if ci, ok := info.Calibration[d.ID.Calibration]; ok {
		units, standardName = ci.Units, ci.StandardName
	}
	d.Attrs["name"] = info.Name
	d.Attrs["units"] = units
	d.Attrs["standard_name"] = standardName
	if !info.Wavelength.IsZero() {
		d.Attrs["wavelength"] = info.Wavelength.Triplet()
	}
	d.Attrs["resolution"] = info.Resolution
	if d.ID.Calibration != "" {
		d.Attrs["calibration"] = string(d.ID.Calibration)
	}
	if info.Sensor != "" {
		d.Attrs["sensor"] = info.Sensor
	}
	var start, end time.Time
	for _, h := range handles {
		if st := h.Handler.StartTime(); start.IsZero() || st.Before(start) {
			start = st
		}
		if et := h.Handler.EndTime(); et.After(end) {
			end = et
		}
	}
	d.Attrs["start_time"] = start
	d.Attrs["end_time"] = end
}
