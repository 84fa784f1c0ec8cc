package rowan

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// TextureRegion describes one named sub-rectangle of an atlas page.
// Value type, stored and returned by value.
type TextureRegion struct {
	Name     string
	Page     int        // index into the owning atlas's page list
	X, Y     int        // top-left corner within the page
	Width    int        // stored size; smaller than authored when trimmed
	Height   int
	Trimmed  bool
	TrimmedX int        // trim inset from the authored sprite's top-left
	TrimmedY int
	Anchor   *Vec2      // normalized pivot, nil when the export has none
	Angle    float64    // -pi/2 when the region is stored rotated
	UVs      [4]float32 // x1, y1, x2, y2 normalized to the page size
}

// AtlasSource is one atlas descriptor plus its backing page image(s).
// At most one descriptor field is set: Data carries a packer-tool JSON
// export, Sheet a fixed-cell spritesheet layout, and neither marks a plain
// image wrapped as a single whole-image region. Multipack exports take one
// entry of Images per "textures" element, in order.
type AtlasSource struct {
	Name   string
	Data   []byte
	Sheet  *SheetLayout
	Images []*ebiten.Image
}

// SheetLayout describes a fixed-cell spritesheet. Cells become regions
// named by index ("0", "1", ...) in row-major order.
type SheetLayout struct {
	FrameWidth  int
	FrameHeight int
	Margin      int
	Spacing     int
	AnchorPoint *Vec2 // optional anchor shared by every cell
}

// TextureAtlas maps region names to sub-rectangles of one or more page
// images. Construction is synchronous and does no I/O; pages may be nil
// when only region arithmetic is needed, in which case image lookups
// report [ErrNotFound].
//
// UV rectangles are computed for every region at registration time since
// rendering always runs on the GPU.
type TextureAtlas struct {
	pages []*ebiten.Image
	sets  []*regionSet
}

// regionSet is the parse product of one descriptor page: its name, the
// pixel dimensions UVs were normalized against, and the named regions.
type regionSet struct {
	name    string
	uvW     float64
	uvH     float64
	page    int
	regions map[string]TextureRegion
}

func (s *regionSet) put(r TextureRegion) {
	r.UVs = [4]float32{
		float32(float64(r.X) / s.uvW),
		float32(float64(r.Y) / s.uvH),
		float32(float64(r.X+r.Width) / s.uvW),
		float32(float64(r.Y+r.Height) / s.uvH),
	}
	s.regions[r.Name] = r
}

// NewTextureAtlas builds an atlas from one or more sources. The shape of
// each source is detected from the descriptor itself: a "textures" array
// is a multipack export, a "frames" key a single-page export, a
// [SheetLayout] a fixed-cell spritesheet, and a bare image a single-region
// wrapper. A source with no recognizable shape fails with
// [ErrUnsupportedFormat].
func NewTextureAtlas(sources ...AtlasSource) (*TextureAtlas, error) {
	a := &TextureAtlas{}
	for _, src := range sources {
		if err := a.Add(src); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// NewImageAtlas wraps a plain image as a one-region atlas, the region
// spanning the whole image under the given name.
func NewImageAtlas(name string, img *ebiten.Image) (*TextureAtlas, error) {
	return NewTextureAtlas(AtlasSource{Name: name, Images: []*ebiten.Image{img}})
}

// Add registers one more source into an existing atlas.
func (a *TextureAtlas) Add(src AtlasSource) error {
	switch {
	case src.Data != nil:
		return a.addPacked(src)
	case src.Sheet != nil:
		return a.addSheet(src)
	case len(src.Images) > 0:
		return a.addImage(src)
	}
	return fmt.Errorf("%w: atlas source carries no descriptor or image", ErrUnsupportedFormat)
}

// Region resolves a named region, searching every registered atlas in
// registration order and returning the first match.
func (a *TextureAtlas) Region(name string) (TextureRegion, bool) {
	for _, set := range a.sets {
		if r, ok := set.regions[name]; ok {
			return r, true
		}
	}
	return TextureRegion{}, false
}

// RegionIn resolves a named region within one named atlas page.
func (a *TextureAtlas) RegionIn(atlas, name string) (TextureRegion, bool) {
	for _, set := range a.sets {
		if set.name != atlas {
			continue
		}
		if r, ok := set.regions[name]; ok {
			return r, true
		}
	}
	return TextureRegion{}, false
}

// UVs returns the normalized texture coordinates for a named region. A
// never-registered name of the form "x,y,w,h" is synthesized into the
// first atlas on the fly, an escape hatch for arbitrary sub-rectangles;
// any other unknown name fails with [ErrNotFound].
func (a *TextureAtlas) UVs(name string) ([4]float32, error) {
	if r, ok := a.Region(name); ok {
		return r.UVs, nil
	}
	r, err := a.addQuad(name)
	if err != nil {
		return [4]float32{}, err
	}
	return r.UVs, nil
}

// Page returns the i'th page image, or nil when the index is out of range
// or the page was registered without an image.
func (a *TextureAtlas) Page(i int) *ebiten.Image {
	if i < 0 || i >= len(a.pages) {
		return nil
	}
	return a.pages[i]
}

// SubImage returns the region's pixels as a sub-image of its page.
func (a *TextureAtlas) SubImage(name string) (*ebiten.Image, error) {
	r, ok := a.Region(name)
	if !ok {
		return nil, fmt.Errorf("%w: texture region %q", ErrNotFound, name)
	}
	img := a.Page(r.Page)
	if img == nil {
		return nil, fmt.Errorf("%w: image for texture region %q", ErrNotFound, name)
	}
	return img.SubImage(image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)).(*ebiten.Image), nil
}

func (a *TextureAtlas) newSet(name string, img *ebiten.Image, w, h float64) *regionSet {
	set := &regionSet{
		name:    name,
		uvW:     w,
		uvH:     h,
		page:    len(a.pages),
		regions: make(map[string]TextureRegion),
	}
	a.pages = append(a.pages, img)
	a.sets = append(a.sets, set)
	return set
}

func (a *TextureAtlas) addQuad(name string) (TextureRegion, error) {
	if len(a.sets) == 0 {
		return TextureRegion{}, fmt.Errorf("%w: texture region %q in an empty atlas", ErrNotFound, name)
	}
	parts := strings.Split(name, ",")
	if len(parts) != 4 {
		return TextureRegion{}, fmt.Errorf("%w: texture region %q", ErrNotFound, name)
	}
	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return TextureRegion{}, fmt.Errorf("%w: region key %q is not \"x,y,w,h\"", ErrParse, name)
		}
		vals[i] = v
	}
	set := a.sets[0]
	r := TextureRegion{
		Name:   name,
		Page:   set.page,
		X:      vals[0],
		Y:      vals[1],
		Width:  vals[2],
		Height: vals[3],
	}
	set.put(r)
	debugf("atlas %q synthesized region %q", set.name, name)
	return set.regions[name], nil
}

// --- packer-tool exports ---

type atlasRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type atlasSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type atlasVec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type atlasFrame struct {
	Filename         string     `json:"filename"`
	Frame            atlasRect  `json:"frame"`
	Rotated          bool       `json:"rotated"`
	Trimmed          bool       `json:"trimmed"`
	SpriteSourceSize *atlasRect `json:"spriteSourceSize"`
	SourceSize       *atlasSize `json:"sourceSize"`
	Pivot            *atlasVec  `json:"pivot"`
}

type atlasMeta struct {
	Image string     `json:"image"`
	Size  *atlasSize `json:"size"`
}

// atlasPage is one element of a multipack "textures" array.
type atlasPage struct {
	Image  string          `json:"image"`
	Size   *atlasSize      `json:"size"`
	Frames json.RawMessage `json:"frames"`
}

type atlasDoc struct {
	Textures []atlasPage     `json:"textures"`
	Frames   json.RawMessage `json:"frames"`
	Meta     *atlasMeta      `json:"meta"`
}

func (a *TextureAtlas) addPacked(src AtlasSource) error {
	var doc atlasDoc
	if err := json.Unmarshal(src.Data, &doc); err != nil {
		return fmt.Errorf("%w: atlas descriptor: %v", ErrParse, err)
	}

	switch {
	case doc.Textures != nil:
		for i, page := range doc.Textures {
			name := page.Image
			if name == "" {
				name = src.Name
			}
			if name == "" {
				name = fmt.Sprintf("texture-%d", i)
			}
			if err := a.addPage(name, page.Frames, page.Size, imageAt(src.Images, i)); err != nil {
				return err
			}
		}
		return nil

	case doc.Frames != nil:
		name := src.Name
		if name == "" && doc.Meta != nil {
			name = doc.Meta.Image
		}
		if name == "" {
			name = "default"
		}
		var size *atlasSize
		if doc.Meta != nil {
			size = doc.Meta.Size
		}
		return a.addPage(name, doc.Frames, size, imageAt(src.Images, 0))
	}
	return fmt.Errorf("%w: atlas descriptor has neither \"frames\" nor \"textures\"", ErrUnsupportedFormat)
}

func (a *TextureAtlas) addPage(name string, rawFrames json.RawMessage, size *atlasSize, img *ebiten.Image) error {
	frames, err := decodeAtlasFrames(rawFrames)
	if err != nil {
		return fmt.Errorf("atlas %q: %w", name, err)
	}

	// UVs normalize against the authored page size; the image itself only
	// backs them up when the export omits its meta block.
	w, h := 0, 0
	if size != nil {
		w, h = size.W, size.H
	} else if img != nil {
		b := img.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: atlas %q: page dimensions unknown", ErrParse, name)
	}

	set := a.newSet(name, img, float64(w), float64(h))
	for _, f := range frames {
		if f.Filename == "" {
			// ShoeBox exports end with a dummy entry; skip it.
			continue
		}
		r := TextureRegion{
			Name:    f.Filename,
			Page:    set.page,
			X:       f.Frame.X,
			Y:       f.Frame.Y,
			Width:   f.Frame.W,
			Height:  f.Frame.H,
			Trimmed: f.Trimmed,
		}
		if f.Trimmed && f.SpriteSourceSize != nil {
			r.TrimmedX = f.SpriteSourceSize.X
			r.TrimmedY = f.SpriteSourceSize.Y
		}
		if f.SpriteSourceSize != nil && f.SourceSize != nil && f.Pivot != nil &&
			f.Frame.W > 0 && f.Frame.H > 0 {
			ax := float64(f.SourceSize.W) * f.Pivot.X
			ay := float64(f.SourceSize.H) * f.Pivot.Y
			if f.Trimmed {
				ax -= float64(f.SpriteSourceSize.X)
				ay -= float64(f.SpriteSourceSize.Y)
			}
			r.Anchor = &Vec2{X: ax / float64(f.Frame.W), Y: ay / float64(f.Frame.H)}
		}
		if f.Rotated {
			r.Angle = -math.Pi / 2
		}
		set.put(r)
	}
	return nil
}

// decodeAtlasFrames accepts both frame layouts packer tools emit: a list
// of records carrying their own "filename", or a name-keyed object.
func decodeAtlasFrames(raw json.RawMessage) ([]atlasFrame, error) {
	var list []atlasFrame
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var hash map[string]atlasFrame
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, fmt.Errorf("%w: frames are neither a list nor a name map: %v", ErrParse, err)
	}
	list = make([]atlasFrame, 0, len(hash))
	for name, f := range hash {
		f.Filename = name
		list = append(list, f)
	}
	return list, nil
}

// --- fixed-cell spritesheets ---

func (a *TextureAtlas) addSheet(src AtlasSource) error {
	sheet := src.Sheet
	img := imageAt(src.Images, 0)
	if img == nil {
		return fmt.Errorf("%w: spritesheet atlas needs a backing image", ErrConfiguration)
	}
	if sheet.FrameWidth <= 0 || sheet.FrameHeight <= 0 {
		return fmt.Errorf("%w: spritesheet atlas needs positive frame dimensions", ErrConfiguration)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	cellW := sheet.FrameWidth + sheet.Spacing
	cellH := sheet.FrameHeight + sheet.Spacing
	cols := (width - sheet.Margin + sheet.Spacing) / cellW
	rows := (height - sheet.Margin + sheet.Spacing) / cellH

	// A sheet not sized to a whole number of cells is clipped to one,
	// unless the leftover is exactly the trailing spacing.
	if width%cellW != 0 || height%cellH != 0 {
		cw := cols * cellW
		ch := rows * cellH
		if cw-width != sheet.Spacing && ch-height != sheet.Spacing {
			log.Printf("rowan: spritesheet %dx%d is not divisible by %dx%d cells, truncating to %dx%d",
				width, height, cellW, cellH, cw, ch)
			width, height = cw, ch
		}
	}

	name := src.Name
	if name == "" {
		name = "default"
	}
	var anchor *Vec2
	if sheet.AnchorPoint != nil {
		p := *sheet.AnchorPoint
		anchor = &p
	}

	set := a.newSet(name, img, float64(width), float64(height))
	for i := 0; i < cols*rows; i++ {
		set.put(TextureRegion{
			Name:   strconv.Itoa(i),
			Page:   set.page,
			X:      sheet.Margin + cellW*(i%cols),
			Y:      sheet.Margin + cellH*(i/cols),
			Width:  sheet.FrameWidth,
			Height: sheet.FrameHeight,
			Anchor: anchor,
		})
	}
	return nil
}

// --- single-region image wrappers ---

func (a *TextureAtlas) addImage(src AtlasSource) error {
	if src.Name == "" {
		return fmt.Errorf("%w: single-image atlas source needs a name", ErrConfiguration)
	}
	img := src.Images[0]
	if img == nil {
		return fmt.Errorf("%w: single-image atlas source needs an image", ErrConfiguration)
	}
	bounds := img.Bounds()
	set := a.newSet(src.Name, img, float64(bounds.Dx()), float64(bounds.Dy()))
	set.put(TextureRegion{
		Name:   src.Name,
		Page:   set.page,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	})
	return nil
}

func imageAt(images []*ebiten.Image, i int) *ebiten.Image {
	if i < 0 || i >= len(images) {
		return nil
	}
	return images[i]
}
