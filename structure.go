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

import "fmt"

// Geometry is the tile grid covering a raster. It is derived once from the
// first dataset handed to a Reader and never changes afterwards.
type Geometry struct {
	RasterWidth, RasterHeight int
	TileWidth, TileHeight     int
	TilesX, TilesY            int
}

// NewGeometry returns the grid of tileWidth*tileHeight tiles covering a
// rasterWidth*rasterHeight raster. All sizes must be strictly positive.
func NewGeometry(rasterWidth, rasterHeight, tileWidth, tileHeight int) (Geometry, error) {
	if rasterWidth <= 0 || rasterHeight <= 0 {
		return Geometry{}, fmt.Errorf("invalid raster size %dx%d", rasterWidth, rasterHeight)
	}
	if tileWidth <= 0 || tileHeight <= 0 {
		return Geometry{}, fmt.Errorf("invalid tile size %dx%d", tileWidth, tileHeight)
	}
	return Geometry{
		RasterWidth:  rasterWidth,
		RasterHeight: rasterHeight,
		TileWidth:    tileWidth,
		TileHeight:   tileHeight,
		TilesX:       (rasterWidth + tileWidth - 1) / tileWidth,
		TilesY:       (rasterHeight + tileHeight - 1) / tileHeight,
	}, nil
}

// Contains returns true if x,y is a valid tile coordinate
func (g Geometry) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.TilesX && y < g.TilesY
}

// TileCount returns the total number of tiles in the grid
func (g Geometry) TileCount() int {
	return g.TilesX * g.TilesY
}

// Window returns the pixel window covered by tile x,y, clipped to the raster
// bounds.
func (g Geometry) Window(x, y int) (x0, y0, width, height int) {
	x0, y0 = x*g.TileWidth, y*g.TileHeight
	width, height = actualTileSize(g.RasterWidth, g.RasterHeight, g.TileWidth, g.TileHeight, x, y)
	return
}

func actualTileSize(sizeX, sizeY int, tileSizeX, tileSizeY int, tileX, tileY int) (int, int) {
	cx, cy := tileSizeX, tileSizeY
	if (tileX+1)*tileSizeX > sizeX {
		cx = sizeX - tileX*tileSizeX
	}
	if (tileY+1)*tileSizeY > sizeY {
		cy = sizeY - tileY*tileSizeY
	}
	return cx, cy
}

// Tile is one cell of a Geometry: the tile coordinate X,Y together with the
// pixel window X0,Y0,W,H it covers.
type Tile struct {
	X, Y   int
	X0, Y0 int
	W, H   int
	g      Geometry
}

// FirstTile returns the topleft tile of the grid
func (g Geometry) FirstTile() Tile {
	return g.tile(0, 0)
}

func (g Geometry) tile(x, y int) Tile {
	t := Tile{X: x, Y: y, g: g}
	t.X0, t.Y0, t.W, t.H = g.Window(x, y)
	return t
}

// Next returns the following tile in scanline order. It returns Tile{},false
// when there are no more tiles in the grid
func (t Tile) Next() (Tile, bool) {
	x, y := t.X+1, t.Y
	if x >= t.g.TilesX {
		x = 0
		y++
	}
	if y >= t.g.TilesY {
		return Tile{}, false
	}
	return t.g.tile(x, y), true
}
