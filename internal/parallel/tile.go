// Package parallel splits a pixel grid into tiles and runs per-tile work on
// a work-stealing goroutine pool.
//
// Tiles are the unit of scheduling for an escape-time pass: every pixel of a
// tile is computed by the same task, with the task's private scratch taken
// from a ScratchPool. Tiles are 64 pixels wide to line up with the GPU
// workgroup width, and a few rows tall so that small images still produce
// enough tasks to keep every worker busy.
//
// Thread safety: TileGrid is NOT thread-safe. Tasks running on a WorkerPool
// may read their own tile and flip its Active flag, nothing else.
package parallel

// Tile size constants.
const (
	// TileWidth is the width of a tile in pixels.
	TileWidth = 64

	// TileHeight is the height of a tile in pixels.
	TileHeight = 4

	// TilePixels is the number of pixels in a full tile.
	TilePixels = TileWidth * TileHeight
)

// Tile is a rectangular block of the pixel grid.
//
// Edge tiles are smaller when the grid size is not a multiple of the tile
// size.
type Tile struct {
	// X is the tile column index (0-based).
	X int

	// Y is the tile row index (0-based).
	Y int

	// Width is the actual width in pixels (may be < TileWidth for edge tiles).
	Width int

	// Height is the actual height in pixels (may be < TileHeight for edge tiles).
	Height int

	// Active is set while at least one pixel of the tile may still change
	// when the depth limit is raised. A tile whose pixels have all escaped
	// is inactive until the next reset.
	Active bool
}

// Bounds returns the pixel bounds of this tile in grid space as
// (x, y, width, height) with x, y the top-left corner.
func (t *Tile) Bounds() (x, y, w, h int) {
	return t.X * TileWidth, t.Y * TileHeight, t.Width, t.Height
}

// Contains reports whether the grid pixel (px, py) lies in this tile.
func (t *Tile) Contains(px, py int) bool {
	x, y := t.X*TileWidth, t.Y*TileHeight
	return px >= x && px < x+t.Width && py >= y && py < y+t.Height
}

// Pixels returns the number of pixels in the tile.
func (t *Tile) Pixels() int {
	return t.Width * t.Height
}

// ForEachPixel calls fn with the grid coordinates of every pixel in the
// tile, row by row.
func (t *Tile) ForEachPixel(fn func(px, py int)) {
	x0, y0 := t.X*TileWidth, t.Y*TileHeight
	for py := y0; py < y0+t.Height; py++ {
		for px := x0; px < x0+t.Width; px++ {
			fn(px, py)
		}
	}
}
