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

package ndvi

import (
	"fmt"

	"github.com/airbusgeo/blockreader"
)

// Index computes the ndvi of two input tiles, nir first, into a Float32 or a
// fixed point Int16 buffer.
type Index struct {
	Params     Params
	FixedPoint bool
}

// NewIndex returns an Index using the default parameters
func NewIndex(fixedPoint bool) *Index {
	return &Index{Params: DefaultParams(), FixedPoint: fixedPoint}
}

// DataType returns the type of the buffers Apply writes to
func (ix *Index) DataType() blockreader.DataType {
	if ix.FixedPoint {
		return blockreader.Int16
	}
	return blockreader.Float32
}

// NoData returns the value written for undefined pixels
func (ix *Index) NoData() float64 {
	if ix.FixedPoint {
		return FixedPointNoData
	}
	return ix.Params.NoData
}

// ScaleOffset returns the scale and offset to attach to the output band, or
// false if values are stored unscaled
func (ix *Index) ScaleOffset() (float64, float64, bool) {
	if ix.FixedPoint {
		return 1.0 / FixedPointScale, 0, true
	}
	return 0, 0, false
}

// Description returns the output band description
func (ix *Index) Description() string {
	if ix.FixedPoint {
		return FixedPointDescription
	}
	return "NDVI"
}

// Apply computes the index of inputs[0] (nir) and inputs[1] (red) into out
func (ix *Index) Apply(inputs []blockreader.Buffer, out blockreader.Buffer) error {
	if len(inputs) != 2 {
		return fmt.Errorf("ndvi needs 2 inputs, got %d: %w", len(inputs), blockreader.ErrInvalidArgument)
	}
	if ix.FixedPoint {
		d, ok := out.Int16()
		if !ok {
			return fmt.Errorf("output is %v, want Int16: %w", out.Type, blockreader.ErrInvalidArgument)
		}
		return Int16(inputs[0], inputs[1], d, ix.Params)
	}
	d, ok := out.Float32()
	if !ok {
		return fmt.Errorf("output is %v, want Float32: %w", out.Type, blockreader.ErrInvalidArgument)
	}
	return Float32(inputs[0], inputs[1], d, ix.Params)
}
