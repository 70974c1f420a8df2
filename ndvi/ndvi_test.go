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
	"math"
	"testing"

	"github.com/airbusgeo/blockreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bands(t *testing.T, nir, red []uint16) (blockreader.Buffer, blockreader.Buffer) {
	t.Helper()
	n, err := blockreader.WrapBuffer(len(nir), 1, nir)
	require.NoError(t, err)
	r, err := blockreader.WrapBuffer(len(red), 1, red)
	require.NoError(t, err)
	return n, r
}

var (
	testNir = []uint16{5000, 1000, 900, 1000, 11000, 2000, 0}
	testRed = []uint16{3000, 1000, 1000, 1500, 1000, 900, 0}
)

func TestFloat32(t *testing.T) {
	nir, red := bands(t, testNir, testRed)
	out := make([]float32, len(testNir))
	require.NoError(t, Float32(nir, red, out, DefaultParams()))
	assert.InDelta(t, 1.0/3, out[0], 1e-6)
	assert.Equal(t, float32(-999), out[1], "n+r == 0")
	assert.Equal(t, float32(-999), out[2], "n+r < 0")
	assert.InDelta(t, -1, out[3], 1e-6)
	assert.InDelta(t, 1, out[4], 1e-6)
	assert.InDelta(t, 0.11/0.09, out[5], 1e-5, "float output is not clamped")
	assert.Equal(t, float32(-999), out[6])

	p := DefaultParams()
	p.NoData = -1
	require.NoError(t, Float32(nir, red, out, p))
	assert.Equal(t, float32(-1), out[1])
}

func TestInt16(t *testing.T) {
	nir, red := bands(t, testNir, testRed)
	out := make([]int16, len(testNir))
	require.NoError(t, Int16(nir, red, out, DefaultParams()))
	assert.Equal(t, []int16{3333, FixedPointNoData, FixedPointNoData, -10000, 10000, 10000, FixedPointNoData}, out)
}

func TestNonFiniteInputsAreNoData(t *testing.T) {
	nan, inf := float32(math.NaN()), float32(math.Inf(1))
	nir, err := blockreader.WrapBuffer(4, 1, []float32{nan, 5000, inf, 5000})
	require.NoError(t, err)
	red, err := blockreader.WrapBuffer(4, 1, []float32{2000, nan, 2000, 3000})
	require.NoError(t, err)

	fout := make([]float32, 4)
	require.NoError(t, Float32(nir, red, fout, DefaultParams()))
	assert.Equal(t, []float32{-999, -999, -999}, fout[:3])
	assert.InDelta(t, 1.0/3, fout[3], 1e-6)

	iout := make([]int16, 4)
	require.NoError(t, Int16(nir, red, iout, DefaultParams()))
	assert.Equal(t, []int16{FixedPointNoData, FixedPointNoData, FixedPointNoData, 3333}, iout)
}

func TestShapeErrors(t *testing.T) {
	nir, red := bands(t, []uint16{1, 2}, []uint16{1, 2, 3})
	assert.ErrorIs(t, Float32(nir, red, make([]float32, 2), DefaultParams()), blockreader.ErrShapeMismatch)
	nir, red = bands(t, []uint16{1, 2}, []uint16{1, 2})
	assert.ErrorIs(t, Int16(nir, red, make([]int16, 3), DefaultParams()), blockreader.ErrShapeMismatch)
	assert.ErrorIs(t, Int16(nir, red, make([]int16, 2), Params{}), blockreader.ErrInvalidArgument)
}

func TestIndex(t *testing.T) {
	nir, red := bands(t, []uint16{5000, 1000}, []uint16{3000, 1000})

	fx := NewIndex(true)
	assert.Equal(t, blockreader.Int16, fx.DataType())
	assert.Equal(t, float64(FixedPointNoData), fx.NoData())
	scale, offset, ok := fx.ScaleOffset()
	assert.True(t, ok)
	assert.Equal(t, 0.0001, scale)
	assert.Equal(t, 0.0, offset)
	assert.Equal(t, "NDVI (scaled by 10000)", fx.Description())
	out, _ := blockreader.NewBuffer(fx.DataType(), 2, 1)
	require.NoError(t, fx.Apply([]blockreader.Buffer{nir, red}, out))
	d, _ := out.Int16()
	assert.Equal(t, []int16{3333, FixedPointNoData}, d)

	fl := NewIndex(false)
	assert.Equal(t, blockreader.Float32, fl.DataType())
	assert.Equal(t, -999.0, fl.NoData())
	_, _, ok = fl.ScaleOffset()
	assert.False(t, ok)
	fout, _ := blockreader.NewBuffer(fl.DataType(), 2, 1)
	require.NoError(t, fl.Apply([]blockreader.Buffer{nir, red}, fout))
	fd, _ := fout.Float32()
	assert.InDelta(t, 1.0/3, fd[0], 1e-6)

	assert.ErrorIs(t, fl.Apply([]blockreader.Buffer{nir}, fout), blockreader.ErrInvalidArgument)
	assert.ErrorIs(t, fl.Apply([]blockreader.Buffer{nir, red}, out), blockreader.ErrInvalidArgument)
	assert.ErrorIs(t, fx.Apply([]blockreader.Buffer{nir, red}, fout), blockreader.ErrInvalidArgument)
}
