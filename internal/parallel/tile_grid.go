package parallel

// TileGrid covers a pixel grid with tiles.
//
// Tiles are stored row-major in a flat slice: index = ty*tilesX + tx.
type TileGrid struct {
	tiles  []*Tile
	tilesX int
	tilesY int
	width  int
	height int
}

// NewTileGrid creates a grid for width×height pixels. Every tile starts
// active. A non-positive dimension yields an empty grid.
func NewTileGrid(width, height int) *TileGrid {
	g := &TileGrid{}
	g.Resize(width, height)
	return g
}

func (g *TileGrid) allocate() {
	g.tiles = make([]*Tile, g.tilesX*g.tilesY)
	for ty := range g.tilesY {
		for tx := range g.tilesX {
			w := min(TileWidth, g.width-tx*TileWidth)
			h := min(TileHeight, g.height-ty*TileHeight)
			g.tiles[ty*g.tilesX+tx] = &Tile{X: tx, Y: ty, Width: w, Height: h, Active: true}
		}
	}
}

// Resize changes the grid dimensions. Tiles are rebuilt and marked active
// unless the size is unchanged.
func (g *TileGrid) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		*g = TileGrid{}
		return
	}
	if g.width == width && g.height == height && g.tiles != nil {
		return
	}
	g.width = width
	g.height = height
	g.tilesX = (width + TileWidth - 1) / TileWidth
	g.tilesY = (height + TileHeight - 1) / TileHeight
	g.allocate()
}

// TileAt returns the tile at tile coordinates (tx, ty), or nil.
func (g *TileGrid) TileAt(tx, ty int) *Tile {
	if tx < 0 || tx >= g.tilesX || ty < 0 || ty >= g.tilesY {
		return nil
	}
	return g.tiles[ty*g.tilesX+tx]
}

// TileAtPixel returns the tile containing pixel (px, py), or nil.
func (g *TileGrid) TileAtPixel(px, py int) *Tile {
	if px < 0 || px >= g.width || py < 0 || py >= g.height {
		return nil
	}
	return g.tiles[(py/TileHeight)*g.tilesX+px/TileWidth]
}

// MarkAllActive marks every tile active, as needed after a reset pass is
// scheduled.
func (g *TileGrid) MarkAllActive() {
	for _, t := range g.tiles {
		t.Active = true
	}
}

// ActiveTiles returns the tiles that still need work. The slice is newly
// allocated.
func (g *TileGrid) ActiveTiles() []*Tile {
	out := make([]*Tile, 0, len(g.tiles))
	for _, t := range g.tiles {
		if t.Active {
			out = append(out, t)
		}
	}
	return out
}

// ActiveCount returns the number of active tiles.
func (g *TileGrid) ActiveCount() int {
	n := 0
	for _, t := range g.tiles {
		if t.Active {
			n++
		}
	}
	return n
}

// TileCount returns the total number of tiles.
func (g *TileGrid) TileCount() int { return len(g.tiles) }

// TilesX returns the number of tile columns.
func (g *TileGrid) TilesX() int { return g.tilesX }

// TilesY returns the number of tile rows.
func (g *TileGrid) TilesY() int { return g.tilesY }

// Width returns the grid width in pixels.
func (g *TileGrid) Width() int { return g.width }

// Height returns the grid height in pixels.
func (g *TileGrid) Height() int { return g.height }

// AllTiles returns all tiles. The returned slice should not be modified.
func (g *TileGrid) AllTiles() []*Tile { return g.tiles }

// ForEach calls fn for each tile in row-major order.
func (g *TileGrid) ForEach(fn func(tile *Tile)) {
	for _, t := range g.tiles {
		fn(t)
	}
}
