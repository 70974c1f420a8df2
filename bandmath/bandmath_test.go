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

package bandmath

import (
	"testing"

	"github.com/airbusgeo/blockreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(t *testing.T, data interface{}, n int) blockreader.Buffer {
	t.Helper()
	b, err := blockreader.WrapBuffer(n, 1, data)
	require.NoError(t, err)
	return b
}

func TestCompile(t *testing.T) {
	_, err := Compile("  ", []string{"a"}, 0)
	assert.ErrorIs(t, err, ErrEmptyExpression)
	_, err = Compile("a + b", []string{"a"}, 0)
	assert.ErrorIs(t, err, ErrUnknownVariable)
	_, err = Compile("a + ", []string{"a"}, 0)
	assert.Error(t, err)
	_, err = Compile("a", []string{"a", "a"}, 0)
	assert.ErrorIs(t, err, blockreader.ErrInvalidArgument)
	_, err = Compile("a", []string{""}, 0)
	assert.ErrorIs(t, err, blockreader.ErrInvalidArgument)

	e, err := Compile("(nir - red) / (nir + red)", []string{"nir", "red", "swir"}, -999)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, e.used)
	assert.Equal(t, "(nir - red) / (nir + red)", e.String())
	assert.Equal(t, blockreader.Float32, e.DataType())
	assert.Equal(t, -999.0, e.NoData())
}

func TestApply(t *testing.T) {
	e, err := Compile("(nir - red) / (nir + red)", []string{"nir", "red"}, -999)
	require.NoError(t, err)
	nir := row(t, []uint16{3, 0, 5}, 3)
	red := row(t, []uint16{1, 0, 5}, 3)
	out, _ := blockreader.NewBuffer(blockreader.Float32, 3, 1)
	require.NoError(t, e.Apply([]blockreader.Buffer{nir, red}, out))
	d, _ := out.Float32()
	assert.Equal(t, []float32{0.5, -999, 0}, d, "0/0 must yield nodata")

	cmp, err := Compile("a > b", []string{"a", "b"}, -1)
	require.NoError(t, err)
	a := row(t, []float64{1, 2}, 2)
	b := row(t, []int16{2, 1}, 2)
	out, _ = blockreader.NewBuffer(blockreader.Float32, 2, 1)
	require.NoError(t, cmp.Apply([]blockreader.Buffer{a, b}, out))
	d, _ = out.Float32()
	assert.Equal(t, []float32{0, 1}, d)

	assert.ErrorIs(t, e.Apply([]blockreader.Buffer{nir}, out), blockreader.ErrInvalidArgument)
	i16, _ := blockreader.NewBuffer(blockreader.Int16, 3, 1)
	assert.ErrorIs(t, e.Apply([]blockreader.Buffer{nir, red}, i16), blockreader.ErrInvalidArgument)
	assert.ErrorIs(t, e.Apply([]blockreader.Buffer{nir, red}, out), blockreader.ErrShapeMismatch)
}
