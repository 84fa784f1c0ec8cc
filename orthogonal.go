package rowan

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// OrthogonalRenderer draws plain rectangular tile grids.
type OrthogonalRenderer struct {
	rendererBase
}

// NewOrthogonalRenderer builds a renderer for an orthogonal map.
func NewOrthogonalRenderer(m *Map) *OrthogonalRenderer {
	return &OrthogonalRenderer{rendererBase{
		m:          m,
		cols:       m.Cols,
		rows:       m.Rows,
		tileWidth:  m.TileWidth,
		tileHeight: m.TileHeight,
	}}
}

// Bounds returns the map's pixel extents. The rectangle is computed once.
func (r *OrthogonalRenderer) Bounds() Rect {
	if !r.boundsSet {
		r.bounds = Rect{
			Width:  float64(r.cols * r.tileWidth),
			Height: float64(r.rows * r.tileHeight),
		}
		r.boundsSet = true
	}
	return r.bounds
}

// LayerBounds returns pixel extents for one layer's own grid size.
func (r *OrthogonalRenderer) LayerBounds(l *Layer) Rect {
	return Rect{
		Width:  float64(l.Cols * r.tileWidth),
		Height: float64(l.Rows * r.tileHeight),
	}
}

// PixelToTileCoords converts a world-space point to fractional tile
// coordinates. Callers wanting the containing cell floor the result.
func (r *OrthogonalRenderer) PixelToTileCoords(x, y float64) Vec2 {
	return Vec2{
		X: x / float64(r.tileWidth),
		Y: y / float64(r.tileHeight),
	}
}

// TileToPixelCoords returns the world-space top-left corner of a tile.
func (r *OrthogonalRenderer) TileToPixelCoords(col, row int) Vec2 {
	return Vec2{
		X: float64(col * r.tileWidth),
		Y: float64(row * r.tileHeight),
	}
}

// DrawTile blits one tile. Tiles taller than the grid cell are anchored to
// the cell's bottom edge, the way Tiled places oversized tiles.
func (r *OrthogonalRenderer) DrawTile(dst *ebiten.Image, col, row int, tile Tile) {
	r.drawCell(dst, col, row, tile, 1)
}

func (r *OrthogonalRenderer) drawCell(dst *ebiten.Image, col, row int, tile Tile, alpha float32) {
	ts := tile.Tileset
	if ts == nil {
		return
	}
	px := ts.TileOffset.X + float64(col*r.tileWidth)
	py := ts.TileOffset.Y + float64((row+1)*r.tileHeight) - float64(ts.TileHeight)
	r.drawCellAt(dst, px, py, tile, alpha)
}

// DrawTileLayer draws every cell of the layer intersecting view. The culled
// range is padded by the largest tileset tile so oversized tiles bleeding in
// from outside the view still draw. The layer's render order controls
// iteration direction only; all four orders cover the same cells.
func (r *OrthogonalRenderer) DrawTileLayer(dst *ebiten.Image, l *Layer, view Rect) {
	alpha, ok := layerAlpha(l)
	if !ok {
		return
	}

	startX, startY, endX, endY := r.visibleRange(l, view)
	forEachCell(startX, startY, endX, endY, l.RenderOrder, func(x, y int) {
		if tile, ok := r.m.TileAt(l, x, y); ok {
			r.drawCell(dst, x, y, tile, alpha)
		}
	})
}

// visibleRange returns the half-open cell range covering view, padded by the
// largest tileset tile and clamped to the layer.
func (r *OrthogonalRenderer) visibleRange(l *Layer, view Rect) (startX, startY, endX, endY int) {
	tw := float64(r.tileWidth)
	th := float64(r.tileHeight)

	startX = int(math.Floor(math.Max(view.X-float64(l.maxTileWidth-r.tileWidth), 0) / tw))
	startY = int(math.Floor(math.Max(view.Y-float64(l.maxTileHeight-r.tileHeight), 0) / th))
	endX = min(int(math.Ceil((view.X+view.Width+tw)/tw)), l.Cols)
	endY = min(int(math.Ceil((view.Y+view.Height+th)/th)), l.Rows)
	return startX, startY, endX, endY
}

// forEachCell visits every cell of the half-open range [startX,endX) ×
// [startY,endY) in the given render order: right-down (the default), right-up,
// left-down, or left-up. The order reverses one or both axes; the visited set
// is the same for all four.
func forEachCell(startX, startY, endX, endY int, renderOrder string, visit func(col, row int)) {
	xBack, yBack := false, false
	switch renderOrder {
	case "right-up":
		yBack = true
	case "left-down":
		xBack = true
	case "left-up":
		xBack, yBack = true, true
	}

	for yi := startY; yi < endY; yi++ {
		y := yi
		if yBack {
			y = endY - 1 - (yi - startY)
		}
		for xi := startX; xi < endX; xi++ {
			x := xi
			if xBack {
				x = endX - 1 - (xi - startX)
			}
			visit(x, y)
		}
	}
}
