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
	"fmt"
)

// DataType is a pixel data type
type DataType int

const (
	//Unknown / Unset Datatype
	Unknown DataType = iota
	//Byte / UInt8
	Byte
	//UInt16 DataType
	UInt16
	//Int16 DataType
	Int16
	//UInt32 DataType
	UInt32
	//Int32 DataType
	Int32
	//Float32 DataType
	Float32
	//Float64 DataType
	Float64
)

// String implements Stringer
func (dtype DataType) String() string {
	switch dtype {
	case Byte:
		return "Byte"
	case UInt16:
		return "UInt16"
	case Int16:
		return "Int16"
	case UInt32:
		return "UInt32"
	case Int32:
		return "Int32"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	default:
		return "Unknown"
	}
}

// Size returns the number of bytes needed for one instance of DataType
func (dtype DataType) Size() int {
	switch dtype {
	case Byte:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Buffer is a decoded rectangular block of samples. Data holds a typed slice
// ([]uint8, []uint16, []int16, []uint32, []int32, []float32 or []float64) of
// exactly Width*Height elements, in row-major order.
//
// Width and Height are the actual shape of the block, which is smaller than the
// nominal tile size for the last column and row of tiles.
type Buffer struct {
	Type          DataType
	Width, Height int
	Data          interface{}
}

// NewBuffer allocates a zeroed width*height buffer of the given type.
func NewBuffer(dtype DataType, width, height int) (Buffer, error) {
	if width < 0 || height < 0 {
		return Buffer{}, fmt.Errorf("invalid buffer shape %dx%d: %w", width, height, ErrInvalidArgument)
	}
	n := width * height
	var data interface{}
	switch dtype {
	case Byte:
		data = make([]uint8, n)
	case UInt16:
		data = make([]uint16, n)
	case Int16:
		data = make([]int16, n)
	case UInt32:
		data = make([]uint32, n)
	case Int32:
		data = make([]int32, n)
	case Float32:
		data = make([]float32, n)
	case Float64:
		data = make([]float64, n)
	default:
		return Buffer{}, fmt.Errorf("unsupported data type %v: %w", dtype, ErrInvalidArgument)
	}
	return Buffer{Type: dtype, Width: width, Height: height, Data: data}, nil
}

// WrapBuffer creates a Buffer around an existing typed slice, which must
// contain exactly width*height elements.
func WrapBuffer(width, height int, data interface{}) (Buffer, error) {
	dtype := bufferType(data)
	if dtype == Unknown {
		return Buffer{}, fmt.Errorf("unsupported buffer type %T: %w", data, ErrInvalidArgument)
	}
	b := Buffer{Type: dtype, Width: width, Height: height, Data: data}
	if b.Len() != width*height {
		return Buffer{}, fmt.Errorf("buffer of %d elements cannot hold %dx%d pixels: %w",
			b.Len(), width, height, ErrInvalidArgument)
	}
	return b, nil
}

func bufferType(data interface{}) DataType {
	switch data.(type) {
	case []uint8:
		return Byte
	case []uint16:
		return UInt16
	case []int16:
		return Int16
	case []uint32:
		return UInt32
	case []int32:
		return Int32
	case []float32:
		return Float32
	case []float64:
		return Float64
	default:
		return Unknown
	}
}

// Len returns the number of samples held by the buffer
func (b Buffer) Len() int {
	switch d := b.Data.(type) {
	case []uint8:
		return len(d)
	case []uint16:
		return len(d)
	case []int16:
		return len(d)
	case []uint32:
		return len(d)
	case []int32:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	default:
		return 0
	}
}

// Float64At returns the i'th sample converted to float64.
func (b Buffer) Float64At(i int) float64 {
	switch d := b.Data.(type) {
	case []uint8:
		return float64(d[i])
	case []uint16:
		return float64(d[i])
	case []int16:
		return float64(d[i])
	case []uint32:
		return float64(d[i])
	case []int32:
		return float64(d[i])
	case []float32:
		return float64(d[i])
	case []float64:
		return d[i]
	default:
		panic(fmt.Sprintf("unsupported buffer type %T", b.Data))
	}
}

// Fill sets every sample of the buffer to v, converted to the buffer's type.
func (b Buffer) Fill(v float64) {
	switch d := b.Data.(type) {
	case []uint8:
		fill(d, uint8(v))
	case []uint16:
		fill(d, uint16(v))
	case []int16:
		fill(d, int16(v))
	case []uint32:
		fill(d, uint32(v))
	case []int32:
		fill(d, int32(v))
	case []float32:
		fill(d, float32(v))
	case []float64:
		fill(d, v)
	}
}

func fill[T any](d []T, v T) {
	for i := range d {
		d[i] = v
	}
}

// Byte returns the underlying samples if the buffer is of type Byte
func (b Buffer) Byte() ([]uint8, bool) {
	d, ok := b.Data.([]uint8)
	return d, ok
}

// UInt16 returns the underlying samples if the buffer is of type UInt16
func (b Buffer) UInt16() ([]uint16, bool) {
	d, ok := b.Data.([]uint16)
	return d, ok
}

// Int16 returns the underlying samples if the buffer is of type Int16
func (b Buffer) Int16() ([]int16, bool) {
	d, ok := b.Data.([]int16)
	return d, ok
}

// Float32 returns the underlying samples if the buffer is of type Float32
func (b Buffer) Float32() ([]float32, bool) {
	d, ok := b.Data.([]float32)
	return d, ok
}

// Float64 returns the underlying samples if the buffer is of type Float64
func (b Buffer) Float64() ([]float64, bool) {
	d, ok := b.Data.([]float64)
	return d, ok
}
