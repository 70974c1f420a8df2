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
	"sort"
	"sync"
)

// Outcome is the result of reading the block of one dataset: either a Buffer,
// or an Err (a *ReadError) explaining why the block is missing.
type Outcome struct {
	Buffer Buffer
	Err    error
}

// Blocks maps each requested dataset index to its Outcome for one tile.
type Blocks map[int]Outcome

// Buffer returns the block read for dataset i
func (b Blocks) Buffer(i int) (Buffer, error) {
	o, ok := b[i]
	if !ok {
		return Buffer{}, fmt.Errorf("dataset %d: %w", i, ErrInvalidDataset)
	}
	return o.Buffer, o.Err
}

// Failed returns the sorted indexes of the datasets whose block could not be read
func (b Blocks) Failed() []int {
	var failed []int
	for i, o := range b {
		if o.Err != nil {
			failed = append(failed, i)
		}
	}
	sort.Ints(failed)
	return failed
}

// Err returns the read errors of the tile joined together, or nil if every
// block was read successfully
func (b Blocks) Err() error {
	failed := b.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, idx := range failed {
		errs[i] = b[idx].Err
	}
	return errors.Join(errs...)
}

// Handler is called exactly once per dispatched tile, from a worker
// goroutine, with one Outcome per requested dataset. The handler owns blocks.
type Handler func(x, y int, blocks Blocks)

// tileState accumulates the outcomes of the requests issued for one tile
// coordinate. It is shared by those requests only.
type tileState struct {
	x, y     int
	expected int
	handler  Handler

	mu     sync.Mutex
	blocks Blocks
}

func newTileState(x, y, expected int, handler Handler) *tileState {
	return &tileState{
		x:        x,
		y:        y,
		expected: expected,
		handler:  handler,
		blocks:   make(Blocks, expected),
	}
}

// insert records the outcome of dataset idx. The caller that inserts the last
// missing outcome receives the completed set and becomes its sole owner; the
// state is left empty.
func (ts *tileState) insert(idx int, o Outcome) (Blocks, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.blocks[idx] = o
	if len(ts.blocks) < ts.expected {
		return nil, false
	}
	blocks := ts.blocks
	ts.blocks = nil
	return blocks, true
}
