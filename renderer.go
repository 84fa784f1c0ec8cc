package rowan

import (
	"fmt"
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// TileGrid describes a tile grid: its size in tiles and the pixel size of
// one cell. Map and Layer both satisfy it.
type TileGrid interface {
	GridSize() (cols, rows int)
	TileSize() (w, h int)
}

// Renderer converts between pixel and tile coordinates for one map
// orientation and draws tile layers. Renderers are pure geometry plus
// blitting; they hold no per-frame state.
type Renderer interface {
	// CanRender reports whether the grid's tile pixel dimensions match the
	// map this renderer was built for. Grid size in tiles may differ; a
	// layer smaller than its map still renders.
	CanRender(g TileGrid) bool

	// Bounds returns the map's world-space pixel extents. The value is
	// computed once and reused. LayerBounds computes fresh extents for one
	// layer's own grid size.
	Bounds() Rect
	LayerBounds(l *Layer) Rect

	// PixelToTileCoords converts a world-space point to tile coordinates.
	// Orthogonal maps return fractional coordinates; hexagonal maps return
	// the containing tile.
	PixelToTileCoords(x, y float64) Vec2

	// TileToPixelCoords returns the world-space top-left corner of the
	// tile's bounding box.
	TileToPixelCoords(col, row int) Vec2

	// AdjustPosition shifts a tile-carrying object from Tiled's bottom-left
	// anchor to the canonical top-left anchor. Objects without a GID are
	// untouched. BuildMap applies this once at ingestion.
	AdjustPosition(o *Object)

	// DrawTile resolves the tile against its tileset and issues one blit.
	DrawTile(dst *ebiten.Image, col, row int, tile Tile)

	// DrawTileLayer draws the slice of the layer visible in view, a
	// world-space rectangle. Invisible and fully transparent layers are
	// skipped.
	DrawTileLayer(dst *ebiten.Image, l *Layer, view Rect)
}

// NewRenderer returns the renderer matching the map's orientation.
func NewRenderer(m *Map) (Renderer, error) {
	switch m.Orientation {
	case "orthogonal":
		return NewOrthogonalRenderer(m), nil
	case "hexagonal":
		return NewHexagonalRenderer(m)
	default:
		return nil, fmt.Errorf("%w: %q map orientation", ErrUnsupportedFormat, m.Orientation)
	}
}

// rendererBase carries the grid geometry common to all orientations.
// Hexagonal maps render with even tile dimensions, so the base keeps its own
// copy instead of reaching back into the map.
type rendererBase struct {
	m          *Map
	cols, rows int
	tileWidth  int
	tileHeight int

	bounds    Rect
	boundsSet bool
}

func (b *rendererBase) CanRender(g TileGrid) bool {
	w, h := g.TileSize()
	return w == b.m.TileWidth && h == b.m.TileHeight
}

func (b *rendererBase) AdjustPosition(o *Object) {
	if o.GID != 0 {
		o.Y -= o.Height
	}
}

// drawCellAt blits one tile with its top-left bounding corner at (px, py),
// applying flip flags and the layer alpha.
func (b *rendererBase) drawCellAt(dst *ebiten.Image, px, py float64, tile Tile, alpha float32) {
	ts := tile.Tileset
	if ts == nil {
		return
	}
	img := ts.image()
	if img == nil {
		return
	}

	tileID := (tile.GID &^ tileFlagMask) - ts.FirstGID
	if ts.TileCount > 0 && int(tileID) >= ts.TileCount {
		return // GID out of the tileset's actual range
	}
	tileID = b.m.animTileID(ts, tileID)

	sx, sy := ts.tileRect(tileID)
	src := img.SubImage(image.Rect(sx, sy, sx+ts.TileWidth, sy+ts.TileHeight)).(*ebiten.Image)

	op := &ebiten.DrawImageOptions{}
	if flags := tile.GID & tileFlagMask; flags != 0 {
		flipGeoM(&op.GeoM, flags, float64(ts.TileWidth), float64(ts.TileHeight))
	}
	op.GeoM.Translate(px, py)
	if alpha != 1 {
		op.ColorScale.ScaleAlpha(alpha)
	}
	dst.DrawImage(src, op)
}

// flipGeoM applies the tile flip flags around the tile center. The diagonal
// flag transposes; combined flags follow the TMX convention (diagonal first,
// then horizontal, then vertical).
func flipGeoM(g *ebiten.GeoM, flags uint32, w, h float64) {
	g.Translate(-w/2, -h/2)
	if flags&tileFlipV != 0 {
		if flags&tileFlipD != 0 {
			g.Scale(-1, 1)
		} else {
			g.Scale(1, -1)
		}
	}
	if flags&tileFlipH != 0 {
		if flags&tileFlipD != 0 {
			g.Scale(1, -1)
		} else {
			g.Scale(-1, 1)
		}
	}
	if flags&tileFlipD != 0 {
		g.Scale(-1, 1)
		g.Rotate(-math.Pi / 2)
	}
	g.Translate(w/2, h/2)
}

// layerAlpha returns the draw alpha for a layer, or false when the layer
// should be skipped entirely.
func layerAlpha(l *Layer) (float32, bool) {
	if l.Kind != "tilelayer" || !l.Visible || l.Opacity <= 0 || len(l.Data) == 0 {
		return 0, false
	}
	a := l.Opacity
	if a > 1 {
		a = 1
	}
	return float32(a), true
}

// GridSize returns the map's size in tiles.
func (m *Map) GridSize() (cols, rows int) {
	return m.Cols, m.Rows
}

// GridSize returns the layer's size in tiles.
func (l *Layer) GridSize() (cols, rows int) {
	return l.Cols, l.Rows
}
