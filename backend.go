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

// Package blockreader reads tiles of several co-registered raster datasets
// concurrently, and hands each tile coordinate to a consumer once every
// requested dataset has supplied its block for that coordinate.
//
// A Reader owns a fixed pool of workers. Each worker holds its own handle on
// every input dataset, so that blocking decode calls issued from different
// workers never contend on a shared handle:
//
//	r, err := blockreader.New(ctx, gdalio.NewBackend(), []string{nir, red}, 8)
//	if err != nil {
//		return err
//	}
//	for tile, ok := r.Geometry().FirstTile(), true; ok; tile, ok = tile.Next() {
//		r.Dispatch(tile.X, tile.Y, []int{0, 1}, func(x, y int, blocks blockreader.Blocks) {
//			//blocks contains exactly one Outcome for dataset 0 and one for dataset 1
//		})
//	}
//	err = r.ShutdownAndJoin()
//
// Completed tiles are delivered in no particular order.
package blockreader

// Backend opens raster sources for reading. Open may be called concurrently.
type Backend interface {
	Open(name string) (Handle, error)
}

// Handle is an opened, read-only raster source.
//
// A Reader never uses a given Handle from more than one goroutine at a time,
// implementations therefore do not need to be safe for concurrent use.
type Handle interface {
	// Size returns the raster dimensions in pixels
	Size() (width, height int, err error)
	// BlockSize returns the native tile size of the first band
	BlockSize() (width, height int, err error)
	// ReadWindow decodes the width*height window starting at pixel x0,y0 of
	// the given (1-based) band.
	ReadWindow(band, x0, y0, width, height int) (Buffer, error)
	Close() error
}
