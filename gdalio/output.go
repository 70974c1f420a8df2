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

package gdalio

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/blockreader"
	"github.com/airbusgeo/godal"
)

// DefaultCreationOptions are the GTiff creation options used when none are given
var DefaultCreationOptions = []string{"COMPRESS=DEFLATE", "TILED=YES", "BIGTIFF=IF_SAFER", "NUM_THREADS=ALL_CPUS"}

// Output is a single band GeoTIFF being written tile by tile. WriteWindow
// may be called concurrently.
type Output struct {
	mu    sync.Mutex
	path  string
	dtype blockreader.DataType
	ds    *godal.Dataset
	band  godal.Band
}

// Create creates a width*height single band GeoTIFF at path. If
// creationOptions is empty, DefaultCreationOptions are used.
func Create(path string, dtype blockreader.DataType, width, height int, creationOptions ...string) (*Output, error) {
	gdt, err := toGodal(dtype)
	if err != nil {
		return nil, err
	}
	if len(creationOptions) == 0 {
		creationOptions = DefaultCreationOptions
	}
	ds, err := godal.Create(godal.GTiff, path, 1, gdt, width, height, godal.CreationOption(creationOptions...))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Output{path: path, dtype: dtype, ds: ds, band: ds.Bands()[0]}, nil
}

// Path returns the file the output is written to
func (o *Output) Path() string {
	return o.path
}

// DataType returns the pixel type of the output band
func (o *Output) DataType() blockreader.DataType {
	return o.dtype
}

// CopyGeoreferencing copies the projection and geotransform of the dataset at
// src. A source without a geotransform is not an error.
func (o *Output) CopyGeoreferencing(src string) error {
	ds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()
	o.mu.Lock()
	defer o.mu.Unlock()
	if wkt := ds.Projection(); wkt != "" {
		if err := o.ds.SetProjection(wkt); err != nil {
			return fmt.Errorf("set projection: %w", err)
		}
	}
	if gt, err := ds.GeoTransform(); err == nil {
		if err := o.ds.SetGeoTransform(gt); err != nil {
			return fmt.Errorf("set geotransform: %w", err)
		}
	}
	return nil
}

// SetNoData sets the nodata value of the output band
func (o *Output) SetNoData(nd float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.band.SetNoData(nd)
}

// SetScaleOffset sets the scale and offset of the output band
func (o *Output) SetScaleOffset(scale, offset float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.band.SetScaleOffset(scale, offset)
}

// SetDescription sets the description of the output band
func (o *Output) SetDescription(desc string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.band.SetDescription(desc)
}

// WriteWindow writes buf at pixel offset x0,y0
func (o *Output) WriteWindow(x0, y0 int, buf blockreader.Buffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.band.Write(x0, y0, buf.Data, buf.Width, buf.Height); err != nil {
		return fmt.Errorf("write %dx%d at %d,%d: %w", buf.Width, buf.Height, x0, y0, err)
	}
	return nil
}

// BuildOverviews computes the overviews of the output, as required before
// rewriting it as a cloud optimized geotiff.
func (o *Output) BuildOverviews() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ds.BuildOverviews()
}

// Close flushes and closes the output
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ds.Close()
}
