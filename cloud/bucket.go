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

// Package cloud gives access to satellite data kept in blob storage.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// archiveOpeners open the archive named by the host of an archive URL,
// keyed by URL scheme.
var archiveOpeners = map[string]func(ctx context.Context, name string) (*blob.Bucket, error){
	"file": openLocalArchive,
	"gs":   openGCSArchive,
	"s3":   openS3Archive,
}

// OpenBucket opens the archive holding satellite files named by
// archiveURL, which has the form scheme://name. The scheme is "file" for
// a local directory tree, "gs" for a Google Cloud Storage bucket or "s3"
// for an S3 bucket. Any path in archiveURL is ignored.
func OpenBucket(ctx context.Context, archiveURL string) (*blob.Bucket, error) {
	u, err := url.Parse(archiveURL)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening archive: %v", err)
	}
	open, ok := archiveOpeners[u.Scheme]
	if !ok {
		schemes := make([]string, 0, len(archiveOpeners))
		for s := range archiveOpeners {
			schemes = append(schemes, s)
		}
		sort.Strings(schemes)
		return nil, fmt.Errorf("cloud: unsupported archive %q in %s; use one of %s",
			u.Scheme, archiveURL, strings.Join(schemes, ", "))
	}
	return open(ctx, u.Host)
}

// splitURL returns the archive URL and the object key of the file at
// fileURL.
func splitURL(fileURL string) (archive, key string, err error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", "", fmt.Errorf("cloud: %v", err)
	}
	return u.Scheme + "://" + u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// openLocalArchive opens a directory tree of satellite files. An empty
// name is the filesystem root, so file:///data/x.nat is /data/x.nat.
func openLocalArchive(_ context.Context, dir string) (*blob.Bucket, error) {
	if dir == "" {
		dir = "/"
	}
	return fileblob.OpenBucket(dir, nil)
}

// openGCSArchive uses the application default credentials.
func openGCSArchive(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud: gs credentials: %v", err)
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// openS3Archive opens an S3 bucket such as the NOAA or EUMETSAT open data
// archives. The region comes from AWS_REGION and the keys from
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY; without keys the bucket is
// read anonymously. AWS_ENDPOINT_URL selects an S3-compatible service
// other than AWS.
func openS3Archive(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "eu-central-1"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		c.Credentials = credentials.AnonymousCredentials
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		c.Endpoint = aws.String(endpoint)
		c.S3ForcePathStyle = aws.Bool(true)
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, fmt.Errorf("cloud: s3 session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}
