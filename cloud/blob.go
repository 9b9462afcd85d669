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

package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

func isHTTP(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// List returns the URLs of the blobs directly under the directory given by
// prefix, for example s3://bucket/2020/01/01/.
func List(ctx context.Context, prefix string) ([]string, error) {
	bucketName, key, err := splitURL(prefix)
	if err != nil {
		return nil, err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	iter := bucket.List(&blob.ListOptions{
		Prefix:    key,
		Delimiter: "/",
	})
	var o []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cloud: listing %s: %v", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		o = append(o, strings.TrimSuffix(bucketName, "/")+"/"+obj.Key)
	}
	return o, nil
}

// Fetch makes the file at path available locally and returns its local
// path. Local paths are returned unchanged. Blob storage and HTTP URLs are
// downloaded into dir, retrying with exponential backoff.
func Fetch(ctx context.Context, path, dir string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	var get func(context.Context, io.Writer) error
	switch {
	case IsBlob(path):
		get = func(ctx context.Context, w io.Writer) error { return readBlob(ctx, path, w) }
	case isHTTP(path):
		get = func(ctx context.Context, w io.Writer) error { return readHTTP(ctx, path, w) }
	default:
		return path, nil
	}

	local := filepath.Join(dir, baseName(path))
	log := logrus.WithFields(logrus.Fields{"url": path, "file": local})
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.RetryNotify(
		func() error {
			w, err := os.Create(local)
			if err != nil {
				return err
			}
			if err := get(ctx, w); err != nil {
				w.Close()
				return err
			}
			return w.Close()
		},
		b,
		func(err error, d time.Duration) {
			log.WithError(err).Warnf("download failed; retrying in %v", d)
		},
	)
	if err != nil {
		os.Remove(local)
		return "", fmt.Errorf("cloud: downloading %s: %v", path, err)
	}
	log.Debug("downloaded file")
	return local, nil
}

// FetchAll fetches each of paths, expanding blob directory URLs ending in
// a slash to the blobs they contain.
func FetchAll(ctx context.Context, paths []string, dir string) ([]string, error) {
	var o []string
	for _, p := range paths {
		if IsBlob(p) && strings.HasSuffix(p, "/") {
			keys, err := List(ctx, p)
			if err != nil {
				return nil, err
			}
			for _, k := range keys {
				f, err := Fetch(ctx, k, dir)
				if err != nil {
					return nil, err
				}
				o = append(o, f)
			}
			continue
		}
		f, err := Fetch(ctx, p, dir)
		if err != nil {
			return nil, err
		}
		o = append(o, f)
	}
	return o, nil
}

func baseName(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 && isHTTP(p) {
		p = p[:i]
	}
	return path.Base(p)
}

// readBlob copies the blob at path to w.
func readBlob(ctx context.Context, path string, w io.Writer) error {
	bucketName, key, err := splitURL(path)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	defer bucket.Close()
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("reading blob key %s: %v", key, err)
	}
	defer r.Close()
	if _, err = io.Copy(w, r); err != nil {
		return fmt.Errorf("reading blob key %s: %v", key, err)
	}
	return nil
}

func readHTTP(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Upload copies the local file to the blob at dst.
func Upload(ctx context.Context, local, dst string) error {
	r, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("cloud: opening file %s for upload: %v", local, err)
	}
	defer r.Close()
	bucketName, key, err := splitURL(dst)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	defer bucket.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %v", dst, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %v", dst, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %v", dst, err)
	}
	return nil
}
