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

package remote

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tc := func(in string, expBucket, expObject string) {
		t.Helper()
		b, o := Parse(in)
		assert.Equal(t, expBucket, b)
		assert.Equal(t, expObject, o)
		assert.Equal(t, expBucket != "", IsRemote(in))
	}
	tc("sdgfdsf", "", "")
	tc("gs://", "", "")
	tc("gs://a", "", "")
	tc("gs://a/", "", "")
	tc("gs://a/b", "a", "b")
	tc("gs://a/b/c", "a", "b/c")
	tc("gs://a/b/", "a", "b")
	tc("gs://a/b/c/", "a", "b/c")
	tc("/tmp/gs://a/b", "", "")

	assert.True(t, AnyRemote("a.tif", "gs://b/c.tif"))
	assert.False(t, AnyRemote("a.tif", "b.tif"))
	assert.False(t, AnyRemote())
}

type keyRecorder struct {
	keys []string
}

func (k *keyRecorder) ReadAt(key string, buf []byte, off int64) (int, error) {
	k.keys = append(k.keys, key)
	return len(buf), nil
}

func (k *keyRecorder) Size(key string) (int64, error) {
	k.keys = append(k.keys, key)
	if key == "missing" {
		return 0, errors.New("not found")
	}
	return 42, nil
}

func TestRegisterHandler(t *testing.T) {
	godal.RegisterAll()
	rec := &keyRecorder{}
	require.NoError(t, registerHandler(rec))
	assert.True(t, godal.HasVSIHandler(Scheme))
	require.NoError(t, registerHandler(&keyRecorder{}), "registering twice is a no-op")

	_, err := godal.Open("gs://bucket/a.tif", godal.RasterOnly())
	assert.Error(t, err)
	require.NotEmpty(t, rec.keys)
	for _, k := range rec.keys {
		assert.True(t, strings.HasPrefix(k, "bucket/"), "key %q", k)
	}
}

func TestNewWriterLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tif")
	w, err := NewWriter(context.Background(), nil, path, "")
	require.NoError(t, err)
	_, err = io.WriteString(w, "II*")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "II*", string(data))

	_, err = NewWriter(context.Background(), nil, filepath.Join(t.TempDir(), "no", "such", "dir.tif"), "")
	assert.Error(t, err)
	_, err = NewWriter(context.Background(), nil, "gs://bucket/out.tif", "")
	assert.Error(t, err, "remote output needs a client")
	_, err = NewWriter(context.Background(), nil, "gs://bucket", "")
	assert.Error(t, err)
}

func TestNewWriterRemote(t *testing.T) {
	cl, err := NewClient(context.Background(), true)
	require.NoError(t, err)
	defer cl.Close()
	w, err := NewWriter(context.Background(), cl, "gs://bucket/out.tif", "billed")
	require.NoError(t, err)
	assert.NotNil(t, w)
}
