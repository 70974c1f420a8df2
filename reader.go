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
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/semaphore"
)

// Reader reads tiles of several co-registered datasets with a fixed pool of
// workers. Dispatch may be called concurrently from multiple goroutines.
type Reader struct {
	ctx      context.Context
	geometry Geometry
	paths    []string
	band     int
	handles  handleSet
	queue    *requestQueue
	inflight *semaphore.Weighted
	logger   *slog.Logger
	metrics  *readerMetrics

	wg       sync.WaitGroup
	closed   atomic.Bool
	failMu   sync.Mutex
	failures []*WorkerFailure
}

// New opens each of paths once per worker and starts workers goroutines.
//
// The tile geometry is taken from the first band of paths[0]; all datasets are
// expected to be co-registered and identically tiled. New returns an
// *OpenError if a path cannot be opened and a *GeometryError if the size of
// paths[0] is unavailable.
//
// Cancelling ctx does not stop the workers: requests that are still queued
// complete with a *ReadError wrapping ctx.Err() instead of being read.
func New(ctx context.Context, backend Backend, paths []string, workers int, opts ...Option) (*Reader, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no dataset: %w", ErrInvalidArgument)
	}
	if workers < 1 {
		return nil, fmt.Errorf("worker count %d: %w", workers, ErrInvalidArgument)
	}
	ro := readerOpts{band: 1}
	for _, o := range opts {
		o.setReaderOpt(&ro)
	}
	if ro.band < 1 {
		return nil, fmt.Errorf("band %d: %w", ro.band, ErrInvalidArgument)
	}
	if ro.logger == nil {
		ro.logger = slog.New(slog.DiscardHandler)
	}
	if ro.meter == nil {
		ro.meter = noop.NewMeterProvider().Meter("")
	}
	metrics, err := newReaderMetrics(ro.meter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	handles, err := openHandles(ctx, backend, paths, workers)
	if err != nil {
		return nil, err
	}
	geometry, err := deriveGeometry(handles[0][0])
	if err != nil {
		_ = handles.close()
		return nil, &GeometryError{Path: paths[0], Err: err}
	}

	r := &Reader{
		ctx:      ctx,
		geometry: geometry,
		paths:    append([]string(nil), paths...),
		band:     ro.band,
		handles:  handles,
		queue:    newRequestQueue(),
		logger:   ro.logger,
		metrics:  metrics,
	}
	if ro.maxInflight > 0 {
		r.inflight = semaphore.NewWeighted(int64(ro.maxInflight))
	}
	r.wg.Add(workers)
	for id := 0; id < workers; id++ {
		go r.work(id)
	}
	r.logger.Debug("reader started",
		slog.Int("workers", workers),
		slog.Int("datasets", len(paths)),
		slog.Int("tiles_x", geometry.TilesX),
		slog.Int("tiles_y", geometry.TilesY),
		slog.Int("tile_width", geometry.TileWidth),
		slog.Int("tile_height", geometry.TileHeight),
		slog.Duration("open_duration", time.Since(start)),
	)
	return r, nil
}

func deriveGeometry(h Handle) (Geometry, error) {
	width, height, err := h.Size()
	if err != nil {
		return Geometry{}, fmt.Errorf("size: %w", err)
	}
	tw, th, err := h.BlockSize()
	if err != nil {
		return Geometry{}, fmt.Errorf("block size: %w", err)
	}
	return NewGeometry(width, height, tw, th)
}

// Geometry returns the tile grid of the reader
func (r *Reader) Geometry() Geometry {
	return r.geometry
}

// TilesX returns the number of tile columns
func (r *Reader) TilesX() int {
	return r.geometry.TilesX
}

// TilesY returns the number of tile rows
func (r *Reader) TilesY() int {
	return r.geometry.TilesY
}

// TileSize returns the nominal tile size
func (r *Reader) TileSize() (int, int) {
	return r.geometry.TileWidth, r.geometry.TileHeight
}

// Dispatch enqueues one read per index of datasets for tile x,y. handler is
// called once, from a worker goroutine, when all of them have completed.
//
// Dispatch does not block unless the reader was created with MaxInflightTiles,
// in which case it waits for an in-flight tile to complete.
func (r *Reader) Dispatch(x, y int, datasets []int, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("nil handler: %w", ErrInvalidArgument)
	}
	if len(datasets) == 0 {
		return fmt.Errorf("no dataset requested: %w", ErrInvalidArgument)
	}
	if !r.geometry.Contains(x, y) {
		return fmt.Errorf("tile (%d,%d) outside %dx%d grid: %w", x, y, r.geometry.TilesX, r.geometry.TilesY, ErrTileOutOfRange)
	}
	seen := make(map[int]struct{}, len(datasets))
	for _, idx := range datasets {
		if idx < 0 || idx >= len(r.paths) {
			return fmt.Errorf("dataset %d: %w", idx, ErrInvalidDataset)
		}
		if _, ok := seen[idx]; ok {
			return fmt.Errorf("dataset %d: %w", idx, ErrDuplicateDataset)
		}
		seen[idx] = struct{}{}
	}
	if r.closed.Load() {
		return ErrClosed
	}
	if r.inflight != nil {
		if err := r.inflight.Acquire(r.ctx, 1); err != nil {
			return fmt.Errorf("wait for tile slot: %w", err)
		}
	}

	ts := newTileState(x, y, len(datasets), handler)
	reqs := make([]request, len(datasets))
	for i, idx := range datasets {
		reqs[i] = request{dataset: idx, tile: ts}
	}
	r.metrics.tileDispatched(r.ctx)
	if err := r.queue.push(reqs...); err != nil {
		r.metrics.inflight.Add(r.ctx, -1)
		if r.inflight != nil {
			r.inflight.Release(1)
		}
		return err
	}
	return nil
}

func (r *Reader) work(id int) {
	defer r.wg.Done()
	handles := r.handles[id]
	for {
		req, ok := r.queue.pop()
		if !ok {
			return
		}
		r.serve(id, handles, req)
	}
}

func (r *Reader) serve(id int, handles []Handle, req request) {
	defer func() {
		if v := recover(); v != nil {
			r.fail(&WorkerFailure{
				Worker: id,
				X:      req.tile.x,
				Y:      req.tile.y,
				Value:  v,
				Stack:  debug.Stack(),
			})
		}
	}()
	o := r.read(handles[req.dataset], req)
	blocks, complete := req.tile.insert(req.dataset, o)
	if !complete {
		return
	}
	r.complete(req.tile, blocks)
}

// read never fails: read errors and backend panics are carried by the returned Outcome.
func (r *Reader) read(h Handle, req request) (o Outcome) {
	x, y := req.tile.x, req.tile.y
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			o = Outcome{Err: &ReadError{Dataset: req.dataset, X: x, Y: y, Err: fmt.Errorf("%w: %v", ErrBackendPanic, v)}}
		}
		r.metrics.recordRead(r.ctx, req.dataset, o.Err, time.Since(start))
		if o.Err != nil {
			r.logger.Warn("block read failed",
				slog.String("path", r.paths[req.dataset]),
				slog.Int("x", x), slog.Int("y", y),
				slog.Any("error", o.Err))
		}
	}()
	if err := r.ctx.Err(); err != nil {
		return Outcome{Err: &ReadError{Dataset: req.dataset, X: x, Y: y, Err: err}}
	}
	x0, y0, w, hh := r.geometry.Window(x, y)
	buf, err := h.ReadWindow(r.band, x0, y0, w, hh)
	if err != nil {
		return Outcome{Err: &ReadError{Dataset: req.dataset, X: x, Y: y, Err: err}}
	}
	if buf.Width != w || buf.Height != hh || buf.Len() != w*hh {
		return Outcome{Err: &ReadError{Dataset: req.dataset, X: x, Y: y,
			Err: fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShapeMismatch, buf.Width, buf.Height, w, hh)}}
	}
	return Outcome{Buffer: buf}
}

func (r *Reader) complete(ts *tileState, blocks Blocks) {
	defer func() {
		r.metrics.tileCompleted(r.ctx, blocks.Err())
		if r.inflight != nil {
			r.inflight.Release(1)
		}
	}()
	ts.handler(ts.x, ts.y, blocks)
}

func (r *Reader) fail(f *WorkerFailure) {
	r.metrics.workerFailure(r.ctx)
	r.logger.Error("worker failure",
		slog.Int("worker", f.Worker),
		slog.Int("x", f.X), slog.Int("y", f.Y),
		slog.Any("panic", f.Value))
	r.failMu.Lock()
	r.failures = append(r.failures, f)
	r.failMu.Unlock()
}

// ShutdownAndJoin stops accepting new tiles, waits for the workers to process
// every queued request and releases the dataset handles.
//
// It returns a *JoinError listing every failure that happened while the
// reader was running. Tiles that were dispatched before ShutdownAndJoin was
// called have all been handed to their handler when it returns.
func (r *Reader) ShutdownAndJoin() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	r.queue.close()
	r.wg.Wait()
	closeErr := r.handles.close()

	r.failMu.Lock()
	failures := r.failures
	r.failures = nil
	r.failMu.Unlock()

	r.logger.Debug("reader stopped", slog.Int("failures", len(failures)))
	if len(failures) == 0 && closeErr == nil {
		return nil
	}
	return &JoinError{Failures: failures, Close: closeErr}
}
