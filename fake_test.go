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

package blockreader

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// memRaster is a synthetic uint16 dataset whose pixel x,y has value
// seed+x+y*width (truncated to 16 bits)
type memRaster struct {
	width, height int
	tileW, tileH  int
	seed          int
}

type window struct {
	x0, y0 int
}

type memBackend struct {
	rasters map[string]memRaster

	mu        sync.Mutex
	openErr   map[string]error
	readErr   map[string]map[window]error
	readPanic map[string]map[window]interface{}
	sizeErr   error
	delay     time.Duration

	opened  atomic.Int64
	closed  atomic.Int64
	reads   atomic.Int64
	overlap atomic.Int64
}

func newMemBackend() *memBackend {
	return &memBackend{
		rasters:   make(map[string]memRaster),
		openErr:   make(map[string]error),
		readErr:   make(map[string]map[window]error),
		readPanic: make(map[string]map[window]interface{}),
	}
}

func (b *memBackend) add(name string, r memRaster) *memBackend {
	b.rasters[name] = r
	return b
}

func (b *memBackend) failRead(name string, x0, y0 int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr[name] == nil {
		b.readErr[name] = make(map[window]error)
	}
	b.readErr[name][window{x0, y0}] = err
}

func (b *memBackend) panicRead(name string, x0, y0 int, v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readPanic[name] == nil {
		b.readPanic[name] = make(map[window]interface{})
	}
	b.readPanic[name][window{x0, y0}] = v
}

func (b *memBackend) Open(name string) (Handle, error) {
	b.mu.Lock()
	err := b.openErr[name]
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r, ok := b.rasters[name]
	if !ok {
		return nil, fmt.Errorf("%s: no such dataset", name)
	}
	b.opened.Add(1)
	return &memHandle{b: b, name: name, r: r}, nil
}

type memHandle struct {
	b     *memBackend
	name  string
	r     memRaster
	inUse atomic.Bool
}

func (h *memHandle) Size() (int, int, error) {
	if h.b.sizeErr != nil {
		return 0, 0, h.b.sizeErr
	}
	return h.r.width, h.r.height, nil
}

func (h *memHandle) BlockSize() (int, int, error) {
	return h.r.tileW, h.r.tileH, nil
}

func (h *memHandle) ReadWindow(band, x0, y0, w, hh int) (Buffer, error) {
	if !h.inUse.CompareAndSwap(false, true) {
		h.b.overlap.Add(1)
	}
	defer h.inUse.Store(false)
	h.b.reads.Add(1)
	if h.b.delay > 0 {
		time.Sleep(h.b.delay)
	}

	h.b.mu.Lock()
	err := h.b.readErr[h.name][window{x0, y0}]
	pv := h.b.readPanic[h.name][window{x0, y0}]
	h.b.mu.Unlock()
	if pv != nil {
		panic(pv)
	}
	if err != nil {
		return Buffer{}, err
	}
	if band != 1 {
		return Buffer{}, errors.New("invalid band")
	}
	if x0+w > h.r.width || y0+hh > h.r.height {
		return Buffer{}, fmt.Errorf("window %d,%d+%dx%d outside raster", x0, y0, w, hh)
	}
	data := make([]uint16, w*hh)
	for y := 0; y < hh; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = uint16(h.r.seed + (x0 + x) + (y0+y)*h.r.width)
		}
	}
	return Buffer{Type: UInt16, Width: w, Height: hh, Data: data}, nil
}

func (h *memHandle) Close() error {
	h.b.closed.Add(1)
	return nil
}
