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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataType(t *testing.T) {
	for _, tc := range []struct {
		dt   DataType
		name string
		size int
	}{
		{Byte, "Byte", 1},
		{UInt16, "UInt16", 2},
		{Int16, "Int16", 2},
		{UInt32, "UInt32", 4},
		{Int32, "Int32", 4},
		{Float32, "Float32", 4},
		{Float64, "Float64", 8},
		{Unknown, "Unknown", 0},
	} {
		assert.Equal(t, tc.name, tc.dt.String())
		assert.Equal(t, tc.size, tc.dt.Size())
	}
}

func TestNewBuffer(t *testing.T) {
	for _, dt := range []DataType{Byte, UInt16, Int16, UInt32, Int32, Float32, Float64} {
		b, err := NewBuffer(dt, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, dt, b.Type)
		assert.Equal(t, 6, b.Len())
		assert.Equal(t, dt, bufferType(b.Data))
		b.Fill(7)
		for i := 0; i < b.Len(); i++ {
			assert.Equal(t, 7.0, b.Float64At(i))
		}
	}
	_, err := NewBuffer(Unknown, 3, 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewBuffer(Byte, -1, 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWrapBuffer(t *testing.T) {
	b, err := WrapBuffer(2, 2, []int16{-1, 2, -3, 4})
	require.NoError(t, err)
	assert.Equal(t, Int16, b.Type)
	d, ok := b.Int16()
	require.True(t, ok)
	assert.Equal(t, []int16{-1, 2, -3, 4}, d)
	_, ok = b.UInt16()
	assert.False(t, ok)
	assert.Equal(t, -3.0, b.Float64At(2))

	_, err = WrapBuffer(2, 3, []float32{1, 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = WrapBuffer(1, 1, []string{"a"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	f, err := WrapBuffer(1, 2, []float64{0.5, 1.5})
	require.NoError(t, err)
	fd, _ := f.Float64()
	assert.Equal(t, []float64{0.5, 1.5}, fd)
	assert.Equal(t, 0, Buffer{}.Len())
}
