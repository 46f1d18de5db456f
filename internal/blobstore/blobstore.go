/*
Copyright © 2026 the VectorBatch authors.
This file is part of VectorBatch.

VectorBatch is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

VectorBatch is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with VectorBatch.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package blobstore finalizes a scratch container to a gs:// or s3://
// destination, adapted from the teacher's inmaputil upload/download
// helpers (github.com/google/go-cloud/blob) so the Container I/O
// Adapter's move step can hand off to either a local rename or a
// bucket upload without the coordinator knowing which.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
)

// IsBlobURL reports whether path names a blob storage location rather
// than a local filesystem path.
func IsBlobURL(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// Upload copies the file at localPath into the bucket+key named by
// destURL.
func Upload(ctx context.Context, localPath, destURL string) error {
	u, err := url.Parse(destURL)
	if err != nil {
		return fmt.Errorf("blobstore: parsing destination %q: %w", destURL, err)
	}
	bucket, err := openBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return fmt.Errorf("blobstore: opening bucket for %q: %w", destURL, err)
	}
	r, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("blobstore: opening %q for upload: %w", localPath, err)
	}
	defer r.Close()

	key := strings.TrimPrefix(u.Path, "/")
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("blobstore: opening writer for %q: %w", destURL, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("blobstore: uploading to %q: %w", destURL, err)
	}
	return w.Close()
}

// openBucket opens the bucket named by bucketName, in the format
// 'provider://name': "file" for a local directory (used by tests),
// "gs" for Google Cloud Storage, and "s3" for AWS S3.
func openBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("blobstore: parsing bucket name %q: %w", bucketName, err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.NewBucket(u.Hostname())
	case "gs":
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		return gcsblob.OpenBucket(ctx, u.Hostname(), c)
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("blobstore: unrecognized bucket provider %q", u.Scheme)
	}
}

// s3Bucket opens an S3 bucket, expecting AWS_REGION, AWS_ACCESS_KEY_ID,
// and AWS_SECRET_ACCESS_KEY in the environment, mirroring the
// teacher's own s3Bucket helper.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	cfg := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	sess := session.Must(session.NewSession(cfg))
	return s3blob.OpenBucket(ctx, sess, name)
}
