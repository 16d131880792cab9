// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Source opens reference files by name.
//
// Implementations must be safe for concurrent Open calls; Build reads
// all files in parallel.
type Source interface {
	// Open returns a reader for the named file. A missing file must
	// produce an error wrapping ErrFileMissing.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// String describes the source for logs.
	String() string
}

// ===== Filesystem =====

// FSSource reads reference files from an fs.FS.
type FSSource struct {
	fsys  fs.FS
	label string
}

// NewFSSource wraps an arbitrary fs.FS, such as an embed.FS or fstest.MapFS.
func NewFSSource(fsys fs.FS, label string) *FSSource {
	return &FSSource{fsys: fsys, label: label}
}

// NewDirSource reads reference files from a local directory.
func NewDirSource(dir string) *FSSource {
	return &FSSource{fsys: os.DirFS(dir), label: "dir:" + dir}
}

// Open implements Source.
func (s *FSSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return nil, err
	}
	return f, nil
}

func (s *FSSource) String() string {
	return s.label
}

// ===== Google Cloud Storage =====

// GCSSource reads reference files from a Cloud Storage bucket.
type GCSSource struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSource creates a bucket-backed source.
//
// Description:
//
//	Objects are resolved as <prefix>/<name>. Client options are passed
//	through, so an emulator endpoint or anonymous access can be used:
//
//	    src, err := reference.NewGCSSource(ctx, "aop-data", "v3",
//	        option.WithEndpoint("http://localhost:4443/storage/v1/"),
//	        option.WithoutAuthentication())
//
// Outputs:
//
//	*GCSSource - The source. Call Close when done.
//	error - Non-nil if the storage client cannot be created.
func NewGCSSource(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSSource, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket must not be empty")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, prefix: prefix}, nil
}

// Open implements Source.
func (s *GCSSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	object := s.objectName(name)
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrFileMissing, s.bucket, object)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, object, err)
	}
	return r, nil
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}

func (s *GCSSource) String() string {
	return "gcs:" + s.bucket + "/" + s.prefix
}

func (s *GCSSource) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
