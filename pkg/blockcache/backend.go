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

// Package blockcache provides a blockreader.Backend that keeps recently read
// blocks in memory, ensuring that concurrent requests for the same block only
// result in a single read from the underlying backend.
//
// Cached buffers are shared between all the readers of a block and must be
// treated as read-only.
package blockcache

import (
	"fmt"

	"github.com/airbusgeo/blockreader"
	"golang.org/x/sync/singleflight"
)

// Backend wraps a blockreader.Backend with a block cache
type Backend struct {
	backend blockreader.Backend
	cache   Cacher
	group   singleflight.Group
}

// New returns a Backend reading from backend and caching into cache
func New(backend blockreader.Backend, cache Cacher) *Backend {
	return &Backend{backend: backend, cache: cache}
}

// PurgeKey drops all the cached blocks of dataset name
func (b *Backend) PurgeKey(name string) {
	b.cache.PurgeKey(name)
}

// Purge drops all the cached blocks
func (b *Backend) Purge() {
	b.cache.Purge()
}

// Open implements blockreader.Backend
func (b *Backend) Open(name string) (blockreader.Handle, error) {
	h, err := b.backend.Open(name)
	if err != nil {
		return nil, err
	}
	return &handle{Handle: h, name: name, b: b}, nil
}

type handle struct {
	blockreader.Handle
	name string
	b    *Backend
}

func (h *handle) ReadWindow(band, x0, y0, width, height int) (blockreader.Buffer, error) {
	w := Window{Band: band, X0: x0, Y0: y0, Width: width, Height: height}
	if buf, ok := h.b.cache.Get(h.name, w); ok {
		return buf, nil
	}
	key := fmt.Sprintf("%s-%d-%d-%d-%d-%d", h.name, band, x0, y0, width, height)
	v, err, _ := h.b.group.Do(key, func() (interface{}, error) {
		//recheck, another caller may have filled the block while we were waiting
		if buf, ok := h.b.cache.Get(h.name, w); ok {
			return buf, nil
		}
		buf, err := h.Handle.ReadWindow(band, x0, y0, width, height)
		if err != nil {
			return nil, err
		}
		h.b.cache.Add(h.name, w, buf)
		return buf, nil
	})
	if err != nil {
		return blockreader.Buffer{}, err
	}
	return v.(blockreader.Buffer), nil
}
