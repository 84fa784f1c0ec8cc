package rowan

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// GID flag bits (same convention as Tiled TMX format).
const (
	tileFlipH    uint32 = 1 << 31 // horizontal flip
	tileFlipV    uint32 = 1 << 30 // vertical flip
	tileFlipD    uint32 = 1 << 29 // diagonal flip (90° rotation)
	tileFlagMask uint32 = tileFlipH | tileFlipV | tileFlipD
)

// AnimFrame describes a single frame in a tile animation sequence.
// Frame ids are tileset-local.
type AnimFrame struct {
	TileID   uint32
	Duration int // milliseconds
}

// AssetSource resolves the named images and external tilesets a map document
// references. A *Loader satisfies it. A nil source builds a geometry-only
// map: embedded tilesets keep their dimensions but cannot draw, and external
// tileset references fail.
type AssetSource interface {
	GetImage(name string) (*ebiten.Image, bool)
	GetTileset(name string) (*Tileset, bool)
}

// Map is a fully built tile map: typed layers and tilesets resolved from a
// canonical document (see ParseTMX and ParseTMJ).
type Map struct {
	Orientation string // "orthogonal", "hexagonal", ...
	RenderOrder string // tile iteration order, "right-down" by default
	Cols, Rows  int    // map size in tiles
	TileWidth   int    // tile grid cell size in pixels
	TileHeight  int

	// Hexagonal stagger configuration; zero values on other orientations.
	StaggerAxis   string // "x" or "y"
	StaggerIndex  string // "odd" or "even"
	HexSideLength int

	BackgroundColor string // normalized alpha-last hex, or ""

	Layers   []*Layer
	Tilesets *TilesetGroup

	// Properties holds the map's custom properties and any document fields
	// the typed model does not consume.
	Properties map[string]any

	animElapsed int // shared tile animation clock, milliseconds
}

// Layer is one entry of a map's layer stack. Kind selects which fields are
// populated: tile layers carry Data, object layers carry Objects, image
// layers carry Image, and groups carry nested Layers.
type Layer struct {
	Name    string
	Kind    string // "tilelayer", "objectgroup", "imagelayer", "group"
	Cols    int
	Rows    int
	Visible bool
	Opacity float64
	OffsetX float64
	OffsetY float64

	// Data holds row-major tile GIDs for tile layers. Cells are float64 so
	// an unparseable CSV entry can carry NaN; NaN and 0 are both empty.
	Data []float64

	// RenderOrder is inherited from the map; individual layers keep it so a
	// layer can be drawn without the map at hand.
	RenderOrder string

	Objects []*Object // objectgroup only
	Image   string    // imagelayer only
	Layers  []*Layer  // group only

	Properties map[string]any

	// Tile pixel geometry, copied from the owning map.
	tileWidth, tileHeight       int
	maxTileWidth, maxTileHeight int
}

// Object is a placed map object from an objectgroup layer.
type Object struct {
	ID       int
	Name     string
	Class    string
	GID      uint32 // nonzero when the object stamps a tile
	X, Y     float64
	Width    float64
	Height   float64
	Rotation float64 // degrees, clockwise
	Visible  bool
	Polygon  []Vec2
	Polyline []Vec2

	Properties map[string]any
}

// Tileset maps a GID range onto a source image cut into fixed-size tiles.
type Tileset struct {
	FirstGID    uint32
	Name        string
	TileWidth   int
	TileHeight  int
	Spacing     int
	Margin      int
	Columns     int
	TileCount   int
	Image       string // source image name, as referenced by the document
	ImageWidth  int
	ImageHeight int
	TileOffset  Vec2

	// Animations is keyed by tileset-local tile id.
	Animations map[uint32][]AnimFrame

	Properties map[string]any

	lastGID uint32

	assets        AssetSource
	img           *ebiten.Image
	imgResolved   bool
	missingLogged bool
}

// TilesetGroup is a map's ordered tileset list with GID range lookup.
type TilesetGroup struct {
	Tilesets []*Tileset
}

// Tile is one resolved cell: the raw GID (flip bits included) and the
// tileset that owns it.
type Tile struct {
	GID     uint32
	Tileset *Tileset
}

// --- building ---

// BuildMap turns a canonical map document into a typed Map. Tileset images
// resolve lazily through assets at first draw, so a map may be built before
// its images finish loading; external tileset references (.tsx sources) must
// already be present in assets.
func BuildMap(doc map[string]any, assets AssetSource) (*Map, error) {
	m := &Map{
		Orientation:     docStr(doc, "orientation", "orthogonal"),
		RenderOrder:     docStr(doc, "renderorder", "right-down"),
		Cols:            docInt(doc, "width"),
		Rows:            docInt(doc, "height"),
		TileWidth:       docInt(doc, "tilewidth"),
		TileHeight:      docInt(doc, "tileheight"),
		StaggerAxis:     docStr(doc, "staggeraxis", ""),
		StaggerIndex:    docStr(doc, "staggerindex", ""),
		HexSideLength:   docInt(doc, "hexsidelength"),
		BackgroundColor: docStr(doc, "backgroundcolor", ""),
		Tilesets:        &TilesetGroup{},
	}
	if m.Cols <= 0 || m.Rows <= 0 || m.TileWidth <= 0 || m.TileHeight <= 0 {
		return nil, fmt.Errorf("%w: map needs positive width, height, tilewidth and tileheight", ErrParse)
	}

	list, _ := doc["tilesets"].([]any)
	for _, entry := range list {
		tsDoc, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		ts, err := buildMapTileset(tsDoc, assets)
		if err != nil {
			return nil, err
		}
		m.Tilesets.Tilesets = append(m.Tilesets.Tilesets, ts)
	}

	maxTW, maxTH := m.TileWidth, m.TileHeight
	for _, ts := range m.Tilesets.Tilesets {
		maxTW = max(maxTW, ts.TileWidth)
		maxTH = max(maxTH, ts.TileHeight)
	}

	layers, _ := doc["layers"].([]any)
	for _, entry := range layers {
		layerDoc, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		l, err := m.buildLayer(layerDoc, maxTW, maxTH)
		if err != nil {
			return nil, err
		}
		m.Layers = append(m.Layers, l)
	}

	m.Properties = extraProps(doc,
		"orientation", "renderorder", "width", "height", "tilewidth",
		"tileheight", "staggeraxis", "staggerindex", "hexsidelength",
		"backgroundcolor", "tilesets", "layers", "version", "tiledversion",
		"infinite", "nextlayerid", "nextobjectid", "compressionlevel", "type")

	// Objects arrive bottom-left anchored from Tiled; shift them to the
	// canonical top-left anchor exactly once, here.
	if r, err := NewRenderer(m); err == nil {
		for _, l := range m.Layers {
			adjustLayerObjects(r, l)
		}
	}
	return m, nil
}

func adjustLayerObjects(r Renderer, l *Layer) {
	for _, o := range l.Objects {
		r.AdjustPosition(o)
	}
	for _, child := range l.Layers {
		adjustLayerObjects(r, child)
	}
}

// buildMapTileset builds one entry of a map's tileset list. A reference to
// an external tileset document (a "source" ending in .tsx) is resolved
// through assets and re-based onto the map's firstgid.
func buildMapTileset(doc map[string]any, assets AssetSource) (*Tileset, error) {
	firstGID := uint32(docInt(doc, "firstgid"))
	if src := docStr(doc, "source", ""); src != "" {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		if assets == nil {
			return nil, fmt.Errorf("%w: external tileset %q (no asset source)", ErrNotFound, src)
		}
		ext, ok := assets.GetTileset(name)
		if !ok {
			return nil, fmt.Errorf("%w: external tileset %q must be loaded before the maps using it", ErrNotFound, src)
		}
		ts := *ext
		ts.FirstGID = firstGID
		ts.lastGID = tilesetLastGID(firstGID, ts.TileCount)
		return &ts, nil
	}
	ts, err := BuildTileset(doc, assets)
	if err != nil {
		return nil, err
	}
	ts.FirstGID = firstGID
	ts.lastGID = tilesetLastGID(firstGID, ts.TileCount)
	return ts, nil
}

// BuildTileset turns a canonical tileset document (an embedded map entry or
// a standalone TSX/TSJ) into a typed Tileset. Standalone documents have no
// firstgid; the map that references them assigns one.
func BuildTileset(doc map[string]any, assets AssetSource) (*Tileset, error) {
	ts := &Tileset{
		FirstGID:    uint32(docInt(doc, "firstgid")),
		Name:        docStr(doc, "name", ""),
		TileWidth:   docInt(doc, "tilewidth"),
		TileHeight:  docInt(doc, "tileheight"),
		Spacing:     docInt(doc, "spacing"),
		Margin:      docInt(doc, "margin"),
		Columns:     docInt(doc, "columns"),
		TileCount:   docInt(doc, "tilecount"),
		Image:       docStr(doc, "image", ""),
		ImageWidth:  docInt(doc, "imagewidth"),
		ImageHeight: docInt(doc, "imageheight"),
		assets:      assets,
	}
	if ts.TileWidth <= 0 || ts.TileHeight <= 0 {
		return nil, fmt.Errorf("%w: tileset %q needs positive tilewidth and tileheight", ErrParse, ts.Name)
	}
	if off, ok := doc["tileoffset"].(map[string]any); ok {
		ts.TileOffset = Vec2{X: docNum(off, "x"), Y: docNum(off, "y")}
	}
	if ts.Columns <= 0 && ts.ImageWidth > 0 {
		ts.Columns = (ts.ImageWidth - ts.Margin + ts.Spacing) / (ts.TileWidth + ts.Spacing)
	}
	if ts.TileCount <= 0 && ts.Columns > 0 && ts.ImageHeight > 0 {
		rows := (ts.ImageHeight - ts.Margin + ts.Spacing) / (ts.TileHeight + ts.Spacing)
		ts.TileCount = ts.Columns * rows
	}
	ts.lastGID = tilesetLastGID(ts.FirstGID, ts.TileCount)
	ts.readTileAnimations(doc["tiles"])
	ts.Properties = extraProps(doc,
		"firstgid", "name", "tilewidth", "tileheight", "spacing", "margin",
		"columns", "tilecount", "image", "imagewidth", "imageheight",
		"tileoffset", "tiles", "version", "tiledversion", "type", "grid",
		"wangsets", "terraintypes")
	return ts, nil
}

func tilesetLastGID(firstGID uint32, tileCount int) uint32 {
	if tileCount <= 0 {
		return firstGID
	}
	return firstGID + uint32(tileCount) - 1
}

// readTileAnimations collects per-tile animation sequences. The markup path
// keys tiles by id, the structured path stores a record list; both land in
// Animations keyed by local tile id.
func (ts *Tileset) readTileAnimations(tiles any) {
	addTile := func(tile map[string]any) {
		id := uint32(docInt(tile, "id"))
		anim, ok := tile["animation"].(map[string]any)
		var frames []any
		if ok {
			frames, _ = anim["frames"].([]any)
		} else {
			// structured form: "animation" is the frame list itself
			frames, _ = tile["animation"].([]any)
		}
		if len(frames) == 0 {
			return
		}
		seq := make([]AnimFrame, 0, len(frames))
		for _, f := range frames {
			fd, ok := f.(map[string]any)
			if !ok {
				continue
			}
			seq = append(seq, AnimFrame{
				TileID:   uint32(docInt(fd, "tileid")),
				Duration: docInt(fd, "duration"),
			})
		}
		if len(seq) > 0 {
			if ts.Animations == nil {
				ts.Animations = make(map[uint32][]AnimFrame)
			}
			ts.Animations[id] = seq
		}
	}

	switch t := tiles.(type) {
	case map[string]any:
		for _, v := range t {
			if tile, ok := v.(map[string]any); ok {
				addTile(tile)
			}
		}
	case []any:
		for _, v := range t {
			if tile, ok := v.(map[string]any); ok {
				addTile(tile)
			}
		}
	}
}

func (m *Map) buildLayer(doc map[string]any, maxTW, maxTH int) (*Layer, error) {
	l := &Layer{
		Name:          docStr(doc, "name", ""),
		Kind:          docStr(doc, "type", "tilelayer"),
		Cols:          docIntDefault(doc, "width", m.Cols),
		Rows:          docIntDefault(doc, "height", m.Rows),
		Visible:       docBool(doc, "visible", true),
		Opacity:       docNumDefault(doc, "opacity", 1),
		OffsetX:       docNum(doc, "offsetx"),
		OffsetY:       docNum(doc, "offsety"),
		RenderOrder:   m.RenderOrder,
		tileWidth:     m.TileWidth,
		tileHeight:    m.TileHeight,
		maxTileWidth:  maxTW,
		maxTileHeight: maxTH,
	}

	switch l.Kind {
	case "tilelayer":
		data, err := layerData(doc, l.Cols*l.Rows, l.Name)
		if err != nil {
			return nil, err
		}
		l.Data = data

	case "objectgroup":
		objects, _ := doc["objects"].([]any)
		for _, entry := range objects {
			od, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			l.Objects = append(l.Objects, buildObject(od))
		}

	case "imagelayer":
		switch img := doc["image"].(type) {
		case string:
			l.Image = img
		case map[string]any:
			l.Image = docStr(img, "source", "")
		}

	case "group":
		children, _ := doc["layers"].([]any)
		for _, entry := range children {
			childDoc, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			child, err := m.buildLayer(childDoc, maxTW, maxTH)
			if err != nil {
				return nil, err
			}
			l.Layers = append(l.Layers, child)
		}
	}

	l.Properties = extraProps(doc,
		"name", "type", "width", "height", "visible", "opacity", "offsetx",
		"offsety", "x", "y", "id", "data", "encoding", "compression",
		"objects", "image", "layers", "draworder", "parallaxx", "parallaxy")
	return l, nil
}

// layerData accepts the three shapes tile data can arrive in: already
// decoded (markup path), a plain array (structured path), or an encoded
// string plus encoding fields (structured path with base64 data).
func layerData(doc map[string]any, want int, name string) ([]float64, error) {
	var data []float64
	switch d := doc["data"].(type) {
	case []float64:
		data = d
	case []any:
		data = make([]float64, len(d))
		for i, v := range d {
			f, ok := v.(float64)
			if !ok {
				f = math.NaN()
			}
			data[i] = f
		}
	case string:
		var err error
		data, err = decodeLayerData(strings.TrimSpace(d), docStr(doc, "encoding", ""), docStr(doc, "compression", ""))
		if err != nil {
			return nil, err
		}
	case nil:
		if _, chunked := doc["chunks"]; chunked {
			return nil, fmt.Errorf("%w: infinite maps (chunked tile data)", ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("%w: tile layer %q has no data", ErrParse, name)
	default:
		return nil, fmt.Errorf("%w: tile layer %q has unrecognized data", ErrParse, name)
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: tile layer %q has %d cells, want %d", ErrParse, name, len(data), want)
	}
	return data, nil
}

func buildObject(doc map[string]any) *Object {
	o := &Object{
		ID:       docInt(doc, "id"),
		Name:     docStr(doc, "name", ""),
		Class:    docStr(doc, "class", docStr(doc, "type", "")),
		GID:      uint32(docNum(doc, "gid")),
		X:        docNum(doc, "x"),
		Y:        docNum(doc, "y"),
		Width:    docNum(doc, "width"),
		Height:   docNum(doc, "height"),
		Rotation: docNum(doc, "rotation"),
		Visible:  docBool(doc, "visible", true),
	}
	o.Polygon = objectPoints(doc["polygon"])
	o.Polyline = objectPoints(doc["polyline"])
	o.Properties = extraProps(doc,
		"id", "name", "class", "type", "gid", "x", "y", "width", "height",
		"rotation", "visible", "polygon", "polyline")
	return o
}

// objectPoints accepts both the markup path's []Vec2 and the structured
// path's list of {x, y} records.
func objectPoints(v any) []Vec2 {
	switch pts := v.(type) {
	case []Vec2:
		return pts
	case []any:
		out := make([]Vec2, 0, len(pts))
		for _, p := range pts {
			pd, ok := p.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, Vec2{X: docNum(pd, "x"), Y: docNum(pd, "y")})
		}
		return out
	}
	return nil
}

// --- lookups ---

// TileSize returns the map's tile grid cell size in pixels.
func (m *Map) TileSize() (w, h int) {
	return m.TileWidth, m.TileHeight
}

// TileSize returns the tile grid cell size the layer was built against.
func (l *Layer) TileSize() (w, h int) {
	return l.tileWidth, l.tileHeight
}

// GIDAt returns the raw GID (flip bits included) at (col, row), or 0 when
// the cell is empty, out of range, or carried an unparseable value.
func (l *Layer) GIDAt(col, row int) uint32 {
	if col < 0 || col >= l.Cols || row < 0 || row >= l.Rows {
		return 0
	}
	v := l.Data[row*l.Cols+col]
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return uint32(v)
}

// SetGID replaces the cell at (col, row). Out-of-range coordinates are
// ignored.
func (l *Layer) SetGID(col, row int, gid uint32) {
	if col < 0 || col >= l.Cols || row < 0 || row >= l.Rows {
		return
	}
	l.Data[row*l.Cols+col] = float64(gid)
}

// TileAt resolves the cell at (col, row) of a tile layer against the map's
// tilesets. ok is false for empty cells and GIDs outside every tileset.
func (m *Map) TileAt(l *Layer, col, row int) (Tile, bool) {
	gid := l.GIDAt(col, row)
	if gid == 0 {
		return Tile{}, false
	}
	ts, ok := m.Tilesets.ForGID(gid)
	if !ok {
		return Tile{}, false
	}
	return Tile{GID: gid, Tileset: ts}, true
}

// Update advances the shared tile animation clock. dt is in seconds.
func (m *Map) Update(dt float64) {
	ms := int(dt * 1000)
	if ms > 0 {
		m.animElapsed += ms
	}
}

// animTileID resolves a tileset-local tile id through its animation
// sequence, if one exists, against the map's animation clock.
func (m *Map) animTileID(ts *Tileset, tileID uint32) uint32 {
	frames := ts.Animations[tileID]
	if len(frames) == 0 {
		return tileID
	}
	total := 0
	for _, f := range frames {
		total += f.Duration
	}
	if total == 0 {
		return tileID
	}
	elapsed := m.animElapsed % total
	current := frames[0].TileID
	acc := 0
	for _, f := range frames {
		acc += f.Duration
		if elapsed < acc {
			current = f.TileID
			break
		}
	}
	return current
}

// ForGID returns the tileset whose GID range contains gid. Flip bits are
// masked off before the lookup. Degenerate single-tile ranges (image-less
// tilesets exported without a tilecount) match any gid at or past their
// firstgid, mirroring how Tiled assigns them.
func (g *TilesetGroup) ForGID(gid uint32) (*Tileset, bool) {
	gid &^= tileFlagMask
	degenerate := -1
	for i, ts := range g.Tilesets {
		if gid >= ts.FirstGID && gid <= ts.lastGID {
			return ts, true
		}
		if ts.FirstGID == ts.lastGID && gid >= ts.FirstGID {
			degenerate = i
		}
	}
	if degenerate >= 0 {
		return g.Tilesets[degenerate], true
	}
	return nil, false
}

// Contains reports whether gid falls in the tileset's GID range.
func (ts *Tileset) Contains(gid uint32) bool {
	gid &^= tileFlagMask
	return gid >= ts.FirstGID && gid <= ts.lastGID
}

// image resolves the tileset's backing image once, lazily. A missing image
// is logged a single time and the tileset draws nothing.
func (ts *Tileset) image() *ebiten.Image {
	if ts.imgResolved {
		return ts.img
	}
	ts.imgResolved = true
	if ts.Image == "" || ts.assets == nil {
		return nil
	}
	img, ok := ts.assets.GetImage(imageKey(ts.Image))
	if !ok {
		if !ts.missingLogged {
			ts.missingLogged = true
			log.Printf("rowan: tileset %q: image %q not loaded, tiles skipped", ts.Name, ts.Image)
		}
		return nil
	}
	ts.img = img
	return img
}

// SetImage overrides lazy image resolution with an explicit image.
func (ts *Tileset) SetImage(img *ebiten.Image) {
	ts.img = img
	ts.imgResolved = true
}

// tileRect returns the source rectangle origin of a tileset-local tile id
// within the tileset image.
func (ts *Tileset) tileRect(tileID uint32) (sx, sy int) {
	cols := ts.Columns
	if cols <= 0 {
		cols = 1
	}
	sx = ts.Margin + (int(tileID)%cols)*(ts.TileWidth+ts.Spacing)
	sy = ts.Margin + (int(tileID)/cols)*(ts.TileHeight+ts.Spacing)
	return sx, sy
}

// imageKey reduces a document's image path to the loader cache key: the base
// name without extension, the same reduction the loader applies to resource
// names given as paths.
func imageKey(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// --- document readers ---

func docNum(o map[string]any, key string) float64 {
	v, _ := o[key].(float64)
	return v
}

func docNumDefault(o map[string]any, key string, def float64) float64 {
	v, ok := o[key].(float64)
	if !ok {
		return def
	}
	return v
}

func docInt(o map[string]any, key string) int {
	return int(docNum(o, key))
}

func docIntDefault(o map[string]any, key string, def int) int {
	v, ok := o[key].(float64)
	if !ok {
		return def
	}
	return int(v)
}

func docStr(o map[string]any, key, def string) string {
	v, ok := o[key].(string)
	if !ok {
		return def
	}
	return v
}

// docBool reads a flag that may arrive as a bool (structured path, or an
// inferred "true"/"false") or as a 0/1 number (markup visible attribute).
func docBool(o map[string]any, key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return def
}

func extraProps(o map[string]any, consumed ...string) map[string]any {
	skip := make(map[string]bool, len(consumed))
	for _, k := range consumed {
		skip[k] = true
	}
	var props map[string]any
	for k, v := range o {
		if skip[k] {
			continue
		}
		if props == nil {
			props = make(map[string]any)
		}
		props[k] = v
	}
	return props
}
