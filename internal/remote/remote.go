// Copyright 2021 Airbus Defence and Space
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package remote gives GDAL and the output writer access to objects stored
// on Google Cloud Storage through gs:// URIs.
package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	"google.golang.org/api/option"
)

// Scheme is the prefix of the paths handled by this package
const Scheme = "gs://"

// Parse splits a gs://bucket/object uri. bucket and object are empty if uri
// is not a valid object uri.
func Parse(uri string) (bucket, object string) {
	if !strings.HasPrefix(uri, Scheme) {
		return
	}
	uri = uri[len(Scheme):]
	firstSlash := strings.Index(uri, "/")
	if firstSlash == -1 {
		return
	}
	obj := strings.Trim(uri[firstSlash:], "/")
	if obj == "" {
		return
	}
	bucket = uri[0:firstSlash]
	object = obj
	return
}

// IsRemote returns true if path designates a cloud storage object
func IsRemote(path string) bool {
	b, _ := Parse(path)
	return b != ""
}

// AnyRemote returns true if one of paths designates a cloud storage object
func AnyRemote(paths ...string) bool {
	for _, p := range paths {
		if IsRemote(p) {
			return true
		}
	}
	return false
}

// NewClient creates a storage client. Anonymous clients can only access
// public buckets.
func NewClient(ctx context.Context, anonymous bool) (*storage.Client, error) {
	var opts []option.ClientOption
	if anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	cl, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.newclient: %w", err)
	}
	return cl, nil
}

// RegisterVSI makes gs:// paths readable by godal.Open. It is a no-op when
// gs:// paths are already handled. blockSize (e.g.
// "512k") is the size of the range requests sent to the storage API, and
// numCachedBlocks the number of such blocks kept in memory.
func RegisterVSI(ctx context.Context, client *storage.Client, blockSize string, numCachedBlocks int) error {
	if godal.HasVSIHandler(Scheme) {
		return nil
	}
	gsh, err := gcs.Handle(ctx, gcs.GCSClient(client))
	if err != nil {
		return fmt.Errorf("gcs.handle: %w", err)
	}
	var opts []osio.AdapterOption
	if blockSize != "" {
		opts = append(opts, osio.BlockSize(blockSize))
	}
	if numCachedBlocks > 0 {
		opts = append(opts, osio.NumCachedBlocks(numCachedBlocks))
	}
	gsa, err := osio.NewAdapter(gsh, opts...)
	if err != nil {
		return fmt.Errorf("osio.newadapter: %w", err)
	}
	return registerHandler(gsa)
}

// registerHandler installs h on Scheme, unless a handler already serves it.
// h receives bucket/object keys.
func registerHandler(h godal.KeySizerReaderAt) error {
	if godal.HasVSIHandler(Scheme) {
		return nil
	}
	if err := godal.RegisterVSIHandler(Scheme, h, godal.VSIHandlerStripPrefix(true)); err != nil {
		return fmt.Errorf("godal.registervsihandler: %w", err)
	}
	return nil
}

// NewWriter creates path, which is either a local file or a gs:// object.
// billingProject is only needed for requester-pays buckets.
func NewWriter(ctx context.Context, client *storage.Client, path string, billingProject string) (io.WriteCloser, error) {
	bucket, object := Parse(path)
	if bucket == "" {
		if strings.HasPrefix(path, Scheme) {
			return nil, fmt.Errorf("invalid object uri %s", path)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		return f, nil
	}
	if client == nil {
		return nil, fmt.Errorf("no storage client to write %s", path)
	}
	bh := client.Bucket(bucket)
	if billingProject != "" {
		bh = bh.UserProject(billingProject)
	}
	return bh.Object(object).NewWriter(ctx), nil
}
