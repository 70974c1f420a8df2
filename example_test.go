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

package blockreader_test

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/airbusgeo/blockreader"
	"github.com/airbusgeo/blockreader/gdalio"
	"github.com/airbusgeo/blockreader/ndvi"
)

func Example() {
	gdalio.Register()
	ctx := context.Background()
	r, err := blockreader.New(ctx, gdalio.NewBackend(), []string{"B08.tif", "B04.tif"}, 4)
	if err != nil {
		fmt.Println(err)
		return
	}
	var failed atomic.Int64
	for tile, ok := r.Geometry().FirstTile(), true; ok; tile, ok = tile.Next() {
		err := r.Dispatch(tile.X, tile.Y, []int{0, 1}, func(x, y int, blocks blockreader.Blocks) {
			if blocks.Err() != nil {
				failed.Add(1)
				return
			}
			nir, _ := blocks.Buffer(0)
			red, _ := blocks.Buffer(1)
			out := make([]float32, nir.Width*nir.Height)
			if err := ndvi.Float32(nir, red, out, ndvi.DefaultParams()); err != nil {
				failed.Add(1)
				return
			}
			x0, y0, _, _ := r.Geometry().Window(x, y)
			fmt.Printf("tile %d,%d at pixel %d,%d: first ndvi value %.3f\n", x, y, x0, y0, out[0])
		})
		if err != nil {
			fmt.Println(err)
			break
		}
	}
	if err := r.ShutdownAndJoin(); err != nil {
		fmt.Println(err)
	}
	fmt.Printf("%d tiles could not be read\n", failed.Load())
}
