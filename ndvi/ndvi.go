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

// Package ndvi computes the normalized difference vegetation index of tiles
// read from a near-infrared and a red band:
//
//	n = (nir - Offset) / Scale
//	r = (red - Offset) / Scale
//	ndvi = (n - r) / (n + r)
//
// Pixels where n+r <= 0, or where an input is not a finite number, are set
// to nodata.
package ndvi

import (
	"fmt"
	"math"

	"github.com/airbusgeo/blockreader"
)

const (
	// DefaultOffset is the radiometric offset subtracted from the raw digital numbers
	DefaultOffset = 1000
	// DefaultScale is the quantification value converting digital numbers to reflectances
	DefaultScale = 10000
	// DefaultNoData is the nodata value of floating point outputs
	DefaultNoData = -999

	// FixedPointScale is the factor applied to ndvi values stored as Int16
	FixedPointScale = 10000
	// FixedPointNoData is the nodata value of Int16 outputs. It lies outside
	// of the [-10000,10000] range of valid scaled values.
	FixedPointNoData = -20000
	// FixedPointDescription is the band description of Int16 outputs
	FixedPointDescription = "NDVI (scaled by 10000)"
)

// Params controls the conversion of digital numbers to reflectances
type Params struct {
	Offset float64
	Scale  float64
	NoData float64
}

// DefaultParams returns the parameters matching Sentinel-2 L2A products
func DefaultParams() Params {
	return Params{Offset: DefaultOffset, Scale: DefaultScale, NoData: DefaultNoData}
}

func (p Params) validate() error {
	if p.Scale == 0 {
		return fmt.Errorf("zero reflectance scale: %w", blockreader.ErrInvalidArgument)
	}
	return nil
}

func checkShape(nir, red blockreader.Buffer, n int) error {
	if nir.Width != red.Width || nir.Height != red.Height {
		return fmt.Errorf("nir is %dx%d, red is %dx%d: %w", nir.Width, nir.Height, red.Width, red.Height, blockreader.ErrShapeMismatch)
	}
	if nir.Len() != nir.Width*nir.Height || red.Len() != nir.Len() {
		return fmt.Errorf("malformed input buffers: %w", blockreader.ErrShapeMismatch)
	}
	if n != nir.Len() {
		return fmt.Errorf("output holds %d pixels, inputs %d: %w", n, nir.Len(), blockreader.ErrShapeMismatch)
	}
	return nil
}

// pixel returns the index of pixel i, or false if it is undefined
func (p Params) pixel(nir, red blockreader.Buffer, i int) (float64, bool) {
	n := (nir.Float64At(i) - p.Offset) / p.Scale
	r := (red.Float64At(i) - p.Offset) / p.Scale
	if math.IsNaN(n+r) || n+r <= 0 {
		return 0, false
	}
	v := (n - r) / (n + r)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Float32 computes the index of every pixel of nir and red into out
func Float32(nir, red blockreader.Buffer, out []float32, p Params) error {
	if err := p.validate(); err != nil {
		return err
	}
	if err := checkShape(nir, red, len(out)); err != nil {
		return err
	}
	for i := range out {
		v, ok := p.pixel(nir, red, i)
		if !ok {
			out[i] = float32(p.NoData)
			continue
		}
		out[i] = float32(v)
	}
	return nil
}

// Int16 computes the index of every pixel of nir and red into out as fixed
// point values: the index is clamped to [-1,1], multiplied by FixedPointScale
// and rounded half to even. Undefined pixels are set to FixedPointNoData;
// p.NoData is ignored.
func Int16(nir, red blockreader.Buffer, out []int16, p Params) error {
	if err := p.validate(); err != nil {
		return err
	}
	if err := checkShape(nir, red, len(out)); err != nil {
		return err
	}
	for i := range out {
		v, ok := p.pixel(nir, red, i)
		if !ok {
			out[i] = FixedPointNoData
			continue
		}
		v = math.Max(-1, math.Min(1, v))
		out[i] = int16(math.RoundToEven(v * FixedPointScale))
	}
	return nil
}
