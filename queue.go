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

import "sync"

// request asks a worker to read the block of one dataset for one tile
type request struct {
	dataset int
	tile    *tileState
}

// requestQueue is an unbounded multi-producer multi-consumer FIFO. push never
// blocks, pop blocks until a request is available or the queue is closed and
// drained.
type requestQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []request
	closed bool
}

func newRequestQueue() *requestQueue {
	q := &requestQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues all reqs at once, or none of them if the queue is closed.
func (q *requestQueue) push(reqs ...request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, reqs...)
	if len(reqs) == 1 {
		q.cond.Signal()
	} else {
		q.cond.Broadcast()
	}
	return nil
}

func (q *requestQueue) pop() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed {
			return request{}, false
		}
		q.cond.Wait()
	}
	req := q.items[0]
	q.items[0] = request{}
	q.items = q.items[1:]
	return req, true
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *requestQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
