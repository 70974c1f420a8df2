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

// Package pipeline computes a per-pixel index over co-registered rasters
// tile by tile, and writes the result to a single band output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/airbusgeo/blockreader"
)

// Transform computes an output tile from the tiles of every input, in input order.
type Transform interface {
	DataType() blockreader.DataType
	NoData() float64
	Apply(inputs []blockreader.Buffer, out blockreader.Buffer) error
}

// Sink receives the computed tiles. WriteWindow is only ever called from a
// single goroutine.
type Sink interface {
	WriteWindow(x0, y0 int, buf blockreader.Buffer) error
}

// Job reads Inputs with a blockreader.Reader and writes Transform's output to Sink.
type Job struct {
	Backend   blockreader.Backend
	Inputs    []string
	Workers   int
	Transform Transform
	Sink      Sink
	// Options are passed to blockreader.New
	Options []blockreader.Option
	Logger  *slog.Logger
}

// Stats summarizes a finished Job
type Stats struct {
	Width, Height int
	Tiles         int
	// Failed counts the tiles that were written as nodata because an input
	// block could not be read or the transform failed
	Failed   int
	Pixels   int64
	Duration time.Duration
}

type tileResult struct {
	x, y   int
	blocks blockreader.Blocks
}

// Run processes every tile of the inputs. Tiles whose inputs could not be
// read are written as nodata and counted in Stats.Failed; they do not make
// Run fail. A Sink error stops the job.
func (j *Job) Run(ctx context.Context) (Stats, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start := time.Now()
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := append([]blockreader.Option{blockreader.Logger(logger)}, j.Options...)
	r, err := blockreader.New(rctx, j.Backend, j.Inputs, j.Workers, opts...)
	if err != nil {
		return Stats{}, err
	}
	g := r.Geometry()
	stats := Stats{Width: g.RasterWidth, Height: g.RasterHeight}

	results := make(chan tileResult, 2*j.Workers)
	var sinkErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			if sinkErr != nil {
				continue
			}
			failed, err := j.write(g, res, logger)
			if err != nil {
				sinkErr = err
				cancel()
				continue
			}
			stats.Tiles++
			if failed {
				stats.Failed++
			}
			_, _, w, h := g.Window(res.x, res.y)
			stats.Pixels += int64(w * h)
		}
	}()

	handler := func(x, y int, blocks blockreader.Blocks) {
		results <- tileResult{x: x, y: y, blocks: blocks}
	}
	datasets := make([]int, len(j.Inputs))
	for i := range datasets {
		datasets[i] = i
	}
	var dispatchErr error
	for tile, ok := g.FirstTile(), true; ok; tile, ok = tile.Next() {
		if err := r.Dispatch(tile.X, tile.Y, datasets, handler); err != nil {
			dispatchErr = fmt.Errorf("dispatch tile (%d,%d): %w", tile.X, tile.Y, err)
			break
		}
	}
	joinErr := r.ShutdownAndJoin()
	close(results)
	<-done

	stats.Duration = time.Since(start)
	if sinkErr != nil {
		return stats, sinkErr
	}
	return stats, errors.Join(ctx.Err(), dispatchErr, joinErr)
}

// write computes and writes one tile. failed is set when the tile was
// written as nodata.
func (j *Job) write(g blockreader.Geometry, res tileResult, logger *slog.Logger) (failed bool, err error) {
	x0, y0, w, h := g.Window(res.x, res.y)
	out, err := blockreader.NewBuffer(j.Transform.DataType(), w, h)
	if err != nil {
		return false, err
	}
	if err := j.compute(res.blocks, out); err != nil {
		logger.Warn("writing tile as nodata",
			slog.Int("x", res.x), slog.Int("y", res.y),
			slog.Any("error", err))
		out.Fill(j.Transform.NoData())
		failed = true
	}
	if err := j.Sink.WriteWindow(x0, y0, out); err != nil {
		return failed, fmt.Errorf("write tile (%d,%d): %w", res.x, res.y, err)
	}
	return failed, nil
}

func (j *Job) compute(blocks blockreader.Blocks, out blockreader.Buffer) error {
	if err := blocks.Err(); err != nil {
		return err
	}
	inputs := make([]blockreader.Buffer, len(j.Inputs))
	for i := range inputs {
		buf, err := blocks.Buffer(i)
		if err != nil {
			return err
		}
		inputs[i] = buf
	}
	return j.Transform.Apply(inputs, out)
}
