package rowan

import (
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// HexagonalRenderer draws hexagonal tile grids in both layouts: flat-top
// (stagger axis x) and pointy-top (stagger axis y).
type HexagonalRenderer struct {
	rendererBase

	staggerX    bool // true when the stagger axis is x (flat-top)
	staggerEven int  // 1 when even indexes are shifted, else 0

	// Derived hex metrics, in pixels. Side lengths lie along the stagger
	// axis; offsets are the sloped leads before the flat side.
	sideLengthX float64
	sideLengthY float64
	sideOffsetX float64
	sideOffsetY float64
	columnWidth float64
	rowHeight   float64

	// Candidate hex centers for point lookup, fixed per configuration, and
	// the tile offsets each candidate maps to.
	centers [4]Vec2
	offsets [4][2]int
}

// NewHexagonalRenderer builds a renderer for a hexagonal map. The stagger
// configuration is validated up front: the axis must be "x" or "y" and the
// index "odd" or "even". Tile dimensions are rounded down to even values,
// matching how Tiled lays out hex grids.
func NewHexagonalRenderer(m *Map) (*HexagonalRenderer, error) {
	switch m.StaggerAxis {
	case "x", "y":
	default:
		return nil, fmt.Errorf("%w: hexagonal map needs a stagger axis of \"x\" or \"y\", got %q",
			ErrConfiguration, m.StaggerAxis)
	}
	switch m.StaggerIndex {
	case "odd", "even":
	default:
		return nil, fmt.Errorf("%w: hexagonal map needs a stagger index of \"odd\" or \"even\", got %q",
			ErrConfiguration, m.StaggerIndex)
	}
	if m.HexSideLength < 0 {
		return nil, fmt.Errorf("%w: negative hex side length %d", ErrConfiguration, m.HexSideLength)
	}
	if m.TileWidth < 2 || m.TileHeight < 2 {
		return nil, fmt.Errorf("%w: hexagonal map needs tiles at least 2x2, got %dx%d",
			ErrConfiguration, m.TileWidth, m.TileHeight)
	}

	r := &HexagonalRenderer{
		rendererBase: rendererBase{
			m:          m,
			cols:       m.Cols,
			rows:       m.Rows,
			tileWidth:  m.TileWidth &^ 1,
			tileHeight: m.TileHeight &^ 1,
		},
		staggerX: m.StaggerAxis == "x",
	}
	if m.StaggerIndex == "even" {
		r.staggerEven = 1
	}

	if r.staggerX {
		r.sideLengthX = float64(m.HexSideLength)
	} else {
		r.sideLengthY = float64(m.HexSideLength)
	}
	r.sideOffsetX = (float64(r.tileWidth) - r.sideLengthX) / 2
	r.sideOffsetY = (float64(r.tileHeight) - r.sideLengthY) / 2
	r.columnWidth = r.sideOffsetX + r.sideLengthX
	r.rowHeight = r.sideOffsetY + r.sideLengthY

	if r.staggerX {
		left := r.sideLengthX / 2
		cx := left + r.columnWidth
		cy := float64(r.tileHeight) / 2
		r.centers = [4]Vec2{
			{X: left, Y: cy},
			{X: cx, Y: cy - r.rowHeight},
			{X: cx, Y: cy + r.rowHeight},
			{X: cx + r.columnWidth, Y: cy},
		}
		r.offsets = [4][2]int{{0, 0}, {1, -1}, {1, 0}, {2, 0}}
	} else {
		top := r.sideLengthY / 2
		cx := float64(r.tileWidth) / 2
		cy := top + r.rowHeight
		r.centers = [4]Vec2{
			{X: cx, Y: top},
			{X: cx - r.columnWidth, Y: cy},
			{X: cx + r.columnWidth, Y: cy},
			{X: cx, Y: cy + r.rowHeight},
		}
		r.offsets = [4][2]int{{0, 0}, {-1, 1}, {0, 1}, {0, 2}}
	}
	return r, nil
}

// doStaggerX reports whether column x is shifted down (flat-top layout).
func (r *HexagonalRenderer) doStaggerX(x int) bool {
	return r.staggerX && (x&1)^r.staggerEven != 0
}

// doStaggerY reports whether row y is shifted right (pointy-top layout).
func (r *HexagonalRenderer) doStaggerY(y int) bool {
	return !r.staggerX && (y&1)^r.staggerEven != 0
}

// Bounds returns the map's pixel extents. The rectangle is computed once.
func (r *HexagonalRenderer) Bounds() Rect {
	if !r.boundsSet {
		r.bounds = r.gridBounds(r.cols, r.rows)
		r.boundsSet = true
	}
	return r.bounds
}

// LayerBounds returns pixel extents for one layer's own grid size.
func (r *HexagonalRenderer) LayerBounds(l *Layer) Rect {
	return r.gridBounds(l.Cols, l.Rows)
}

func (r *HexagonalRenderer) gridBounds(cols, rows int) Rect {
	if r.staggerX {
		b := Rect{
			Width:  float64(cols)*r.columnWidth + r.sideOffsetX,
			Height: float64(rows) * (float64(r.tileHeight) + r.sideLengthY),
		}
		if cols > 1 {
			b.Height += r.rowHeight
		}
		return b
	}
	b := Rect{
		Width:  float64(cols) * (float64(r.tileWidth) + r.sideLengthX),
		Height: float64(rows)*r.rowHeight + r.sideOffsetY,
	}
	if rows > 1 {
		b.Width += r.columnWidth
	}
	return b
}

// PixelToTileCoords returns the coordinates of the hex containing the point.
// The point is snapped to a reference grid cell, then the nearest of the
// four candidate hex centers wins.
func (r *HexagonalRenderer) PixelToTileCoords(x, y float64) Vec2 {
	if r.staggerX {
		if r.staggerEven != 0 {
			x -= float64(r.tileWidth)
		} else {
			x -= r.sideOffsetX
		}
	} else {
		if r.staggerEven != 0 {
			y -= float64(r.tileHeight)
		} else {
			y -= r.sideOffsetY
		}
	}

	refX := math.Floor(x / (r.columnWidth * 2))
	refY := math.Floor(y / (r.rowHeight * 2))
	relX := x - refX*r.columnWidth*2
	relY := y - refY*r.rowHeight*2

	if r.staggerX {
		refX *= 2
		refX += float64(r.staggerEven)
	} else {
		refY *= 2
		refY += float64(r.staggerEven)
	}

	nearest := 0
	minDist := math.MaxFloat64
	for i, c := range r.centers {
		dx := c.X - relX
		dy := c.Y - relY
		if d := dx*dx + dy*dy; d < minDist {
			minDist = d
			nearest = i
		}
	}

	return Vec2{
		X: refX + float64(r.offsets[nearest][0]),
		Y: refY + float64(r.offsets[nearest][1]),
	}
}

// TileToPixelCoords returns the world-space top-left corner of the tile's
// bounding box.
func (r *HexagonalRenderer) TileToPixelCoords(col, row int) Vec2 {
	if r.staggerX {
		p := Vec2{
			X: float64(col) * r.columnWidth,
			Y: float64(row) * (float64(r.tileHeight) + r.sideLengthY),
		}
		if r.doStaggerX(col) {
			p.Y += r.rowHeight
		}
		return p
	}
	p := Vec2{
		X: float64(col) * (float64(r.tileWidth) + r.sideLengthX),
		Y: float64(row) * r.rowHeight,
	}
	if r.doStaggerY(row) {
		p.X += r.columnWidth
	}
	return p
}

// DrawTile blits one tile at its hex position. Tileset tiles taller than
// the grid cell are anchored to the cell's bottom edge.
func (r *HexagonalRenderer) DrawTile(dst *ebiten.Image, col, row int, tile Tile) {
	pos := r.TileToPixelCoords(col, row)
	r.drawHexCell(dst, pos.X, pos.Y, tile, 1)
}

func (r *HexagonalRenderer) drawHexCell(dst *ebiten.Image, px, py float64, tile Tile, alpha float32) {
	ts := tile.Tileset
	if ts == nil {
		return
	}
	r.drawCellAt(dst,
		px+ts.TileOffset.X,
		py+ts.TileOffset.Y+float64(r.tileHeight-ts.TileHeight),
		tile, alpha)
}

// DrawTileLayer draws every hex intersecting view. Flat-top grids walk
// interleaved half-rows two columns at a time; pointy-top grids walk plain
// rows with the stagger shift applied per row.
func (r *HexagonalRenderer) DrawTileLayer(dst *ebiten.Image, l *Layer, view Rect) {
	alpha, ok := layerAlpha(l)
	if !ok {
		return
	}
	r.forEachHexCell(l, view, func(col, row int, px, py float64) {
		if tile, ok := r.m.TileAt(l, col, row); ok {
			r.drawHexCell(dst, px, py, tile, alpha)
		}
	})
}

// forEachHexCell walks the cells of l intersecting view in draw order (top to
// bottom, staggered lines interleaved), invoking visit with each in-range cell
// and the world-space top-left corner of its bounding box.
func (r *HexagonalRenderer) forEachHexCell(l *Layer, view Rect, visit func(col, row int, px, py float64)) {
	right := view.X + view.Width
	bottom := view.Y + view.Height

	start := r.PixelToTileCoords(view.X, view.Y)
	startX, startY := int(start.X), int(start.Y)
	startPos := r.TileToPixelCoords(startX, startY)

	// A point in the sloped lead of a hex also exposes the previous row or
	// column; back up one so those partially visible tiles draw too.
	if view.Y-startPos.Y < r.sideOffsetY {
		startY--
	}
	if view.X-startPos.X < r.sideOffsetX {
		startX--
	}

	if r.staggerX {
		// Clamping to -1 keeps column parity; out-of-range cells are
		// skipped but still advance the pen.
		startX = max(startX, -1)
		startY = max(startY, -1)
		startPos = r.TileToPixelCoords(startX, startY)
		staggeredRow := r.doStaggerX(startX)

		for startPos.Y < bottom && startY < l.Rows {
			colTile := startX
			colPos := startPos.X
			for colPos < right && colTile < l.Cols {
				if colTile >= 0 && startY >= 0 {
					visit(colTile, startY, colPos, startPos.Y)
				}
				colTile += 2
				colPos += float64(r.tileWidth) + r.sideLengthX
			}

			if staggeredRow {
				startX--
				startY++
				startPos.X -= r.columnWidth
				staggeredRow = false
			} else {
				startX++
				startPos.X += r.columnWidth
				staggeredRow = true
			}
			startPos.Y += r.rowHeight
		}
		return
	}

	startX = max(startX, 0)
	startY = max(startY, 0)
	startPos = r.TileToPixelCoords(startX, startY)

	// The per-row shift is applied inside the loop; remove it from the
	// starting position so it is not counted twice.
	if r.doStaggerY(startY) {
		startPos.X -= r.columnWidth
	}

	for ; startPos.Y < bottom && startY < l.Rows; startY++ {
		rowTile := startX
		rowPos := startPos.X
		if r.doStaggerY(startY) {
			rowPos += r.columnWidth
		}
		for rowPos < right && rowTile < l.Cols {
			visit(rowTile, startY, rowPos, startPos.Y)
			rowTile++
			rowPos += float64(r.tileWidth) + r.sideLengthX
		}
		startPos.Y += r.rowHeight
	}
}
