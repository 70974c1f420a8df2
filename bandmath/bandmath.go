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

// Package bandmath evaluates user supplied arithmetic expressions over the
// pixels of co-registered tiles, e.g.
//
//	expr, _ := bandmath.Compile("(nir-red)/(nir+red)", []string{"nir", "red"}, -999)
//
// Each input tile is bound to the variable of the same rank in names. Pixels
// for which the expression does not yield a finite number are set to nodata.
package bandmath

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/airbusgeo/blockreader"
	goeval "github.com/edisonguo/govaluate"
)

var (
	// ErrEmptyExpression is returned when compiling a blank expression
	ErrEmptyExpression = errors.New("empty expression")
	// ErrUnknownVariable is returned when an expression references a name
	// that is not bound to an input
	ErrUnknownVariable = errors.New("unknown variable")
)

// Expression is a compiled per-pixel expression producing Float32 tiles.
type Expression struct {
	text   string
	expr   *goeval.EvaluableExpression
	names  []string
	used   []int
	noData float64
}

// Compile parses text and checks that it only references variables listed in names.
func Compile(text string, names []string, noData float64) (*Expression, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, ErrEmptyExpression
	}
	rank := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("input %d has no name: %w", i, blockreader.ErrInvalidArgument)
		}
		if _, ok := rank[n]; ok {
			return nil, fmt.Errorf("input name %q used twice: %w", n, blockreader.ErrInvalidArgument)
		}
		rank[n] = i
	}
	expr, err := goeval.NewEvaluableExpression(text)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", text, err)
	}
	seen := map[int]struct{}{}
	for _, token := range expr.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		varName, ok := token.Value.(string)
		if !ok {
			return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
		}
		idx, found := rank[varName]
		if !found {
			return nil, fmt.Errorf("%q: %w, valid variables are %v", varName, ErrUnknownVariable, names)
		}
		seen[idx] = struct{}{}
	}
	used := make([]int, 0, len(seen))
	for idx := range seen {
		used = append(used, idx)
	}
	sort.Ints(used)
	return &Expression{
		text:   text,
		expr:   expr,
		names:  append([]string(nil), names...),
		used:   used,
		noData: noData,
	}, nil
}

// String returns the source text of the expression
func (e *Expression) String() string {
	return e.text
}

// DataType returns the type of the buffers Apply writes to
func (e *Expression) DataType() blockreader.DataType {
	return blockreader.Float32
}

// NoData returns the value written for undefined pixels
func (e *Expression) NoData() float64 {
	return e.noData
}

// Description returns the output band description
func (e *Expression) Description() string {
	return e.text
}

// Apply evaluates the expression for every pixel of inputs into out, which
// must be a Float32 buffer.
func (e *Expression) Apply(inputs []blockreader.Buffer, out blockreader.Buffer) error {
	if len(inputs) != len(e.names) {
		return fmt.Errorf("expression needs %d inputs, got %d: %w", len(e.names), len(inputs), blockreader.ErrInvalidArgument)
	}
	dst, ok := out.Float32()
	if !ok {
		return fmt.Errorf("output is %v, want Float32: %w", out.Type, blockreader.ErrInvalidArgument)
	}
	for _, idx := range e.used {
		in := inputs[idx]
		if in.Width != out.Width || in.Height != out.Height || in.Len() != len(dst) {
			return fmt.Errorf("input %q is %dx%d, output %dx%d: %w",
				e.names[idx], in.Width, in.Height, out.Width, out.Height, blockreader.ErrShapeMismatch)
		}
	}
	params := make(map[string]interface{}, len(e.used))
	for i := range dst {
		for _, idx := range e.used {
			params[e.names[idx]] = inputs[idx].Float64At(i)
		}
		res, err := e.expr.Evaluate(params)
		if err != nil {
			return fmt.Errorf("evaluate %q at pixel %d: %w", e.text, i, err)
		}
		dst[i] = float32(e.value(res))
	}
	return nil
}

func (e *Expression) value(res interface{}) float64 {
	var v float64
	switch r := res.(type) {
	case float64:
		v = r
	case float32:
		v = float64(r)
	case bool:
		if r {
			return 1
		}
		return 0
	default:
		return e.noData
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return e.noData
	}
	return v
}
