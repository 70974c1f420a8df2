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

// Package gdalio implements the blockreader Backend on top of GDAL, and
// provides the georeferenced raster sink used to write computed tiles.
package gdalio

import (
	"fmt"

	"github.com/airbusgeo/blockreader"
	"github.com/airbusgeo/godal"
)

// Register registers all the GDAL drivers. It must be called once before any
// dataset is opened or created.
func Register() {
	godal.RegisterAll()
}

// Backend opens datasets with godal.Open. The zero value is usable.
type Backend struct {
	options []godal.OpenOption
}

// NewBackend returns a Backend that passes options to every godal.Open call,
// in addition to godal.RasterOnly()
func NewBackend(options ...godal.OpenOption) *Backend {
	return &Backend{options: options}
}

// Open implements blockreader.Backend
func (b *Backend) Open(name string) (blockreader.Handle, error) {
	opts := append([]godal.OpenOption{godal.RasterOnly()}, b.options...)
	ds, err := godal.Open(name, opts...)
	if err != nil {
		return nil, err
	}
	return &handle{ds: ds, bands: ds.Bands()}, nil
}

// handle wraps a godal dataset. It is not safe for concurrent use, which
// matches how the reader uses it.
type handle struct {
	ds    *godal.Dataset
	bands []godal.Band
}

func (h *handle) structure() (godal.BandStructure, error) {
	if len(h.bands) == 0 {
		return godal.BandStructure{}, fmt.Errorf("dataset has no raster band")
	}
	return h.bands[0].Structure(), nil
}

func (h *handle) Size() (int, int, error) {
	st, err := h.structure()
	if err != nil {
		return 0, 0, err
	}
	return st.SizeX, st.SizeY, nil
}

func (h *handle) BlockSize() (int, int, error) {
	st, err := h.structure()
	if err != nil {
		return 0, 0, err
	}
	return st.BlockSizeX, st.BlockSizeY, nil
}

func (h *handle) ReadWindow(band, x0, y0, width, height int) (blockreader.Buffer, error) {
	if band < 1 || band > len(h.bands) {
		return blockreader.Buffer{}, fmt.Errorf("band %d out of range [1,%d]", band, len(h.bands))
	}
	b := h.bands[band-1]
	buf, err := blockreader.NewBuffer(fromGodal(b.Structure().DataType), width, height)
	if err != nil {
		return blockreader.Buffer{}, err
	}
	if err := b.Read(x0, y0, buf.Data, width, height); err != nil {
		return blockreader.Buffer{}, err
	}
	return buf, nil
}

func (h *handle) Close() error {
	return h.ds.Close()
}

// fromGodal maps a GDAL pixel type to the buffer type it is read into. Types
// without a native buffer (signed bytes, 64 bit and complex integers) are
// read as Float64.
func fromGodal(dt godal.DataType) blockreader.DataType {
	switch dt {
	case godal.Byte:
		return blockreader.Byte
	case godal.UInt16:
		return blockreader.UInt16
	case godal.Int16:
		return blockreader.Int16
	case godal.UInt32:
		return blockreader.UInt32
	case godal.Int32:
		return blockreader.Int32
	case godal.Float32:
		return blockreader.Float32
	default:
		return blockreader.Float64
	}
}

func toGodal(dt blockreader.DataType) (godal.DataType, error) {
	switch dt {
	case blockreader.Byte:
		return godal.Byte, nil
	case blockreader.UInt16:
		return godal.UInt16, nil
	case blockreader.Int16:
		return godal.Int16, nil
	case blockreader.UInt32:
		return godal.UInt32, nil
	case blockreader.Int32:
		return godal.Int32, nil
	case blockreader.Float32:
		return godal.Float32, nil
	case blockreader.Float64:
		return godal.Float64, nil
	default:
		return godal.Unknown, fmt.Errorf("unsupported data type %v", dt)
	}
}
