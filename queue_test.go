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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueueFIFO(t *testing.T) {
	q := newRequestQueue()
	ts := newTileState(0, 0, 3, func(int, int, Blocks) {})
	require.NoError(t, q.push(request{dataset: 0, tile: ts}, request{dataset: 1, tile: ts}))
	require.NoError(t, q.push(request{dataset: 2, tile: ts}))
	assert.Equal(t, 3, q.len())
	for i := 0; i < 3; i++ {
		req, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, i, req.dataset)
	}
	q.close()
	_, ok := q.pop()
	assert.False(t, ok)
	assert.ErrorIs(t, q.push(request{tile: ts}), ErrClosed)
	assert.Equal(t, 0, q.len())
}

func TestRequestQueueDrainsAfterClose(t *testing.T) {
	q := newRequestQueue()
	ts := newTileState(0, 0, 1, func(int, int, Blocks) {})
	require.NoError(t, q.push(request{dataset: 4, tile: ts}))
	q.close()
	req, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, 4, req.dataset)
	_, ok = q.pop()
	assert.False(t, ok)
}

func TestRequestQueueConcurrent(t *testing.T) {
	const producers, consumers, perProducer = 4, 3, 500
	q := newRequestQueue()
	ts := newTileState(0, 0, 1, func(int, int, Blocks) {})

	var mu sync.Mutex
	seen := make(map[int]int)
	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				req, ok := q.pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[req.dataset]++
				mu.Unlock()
			}
		}()
	}
	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i += 2 {
				id := p*perProducer + i
				assert.NoError(t, q.push(request{dataset: id, tile: ts}, request{dataset: id + 1, tile: ts}))
			}
		}(p)
	}
	pwg.Wait()
	q.close()
	cwg.Wait()

	assert.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equal(t, 1, n, "request %d", id)
	}
}
