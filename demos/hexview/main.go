// hexview renders a staggered hexagonal map and highlights the hex under
// the cursor, exercising the pixel-to-tile math that hex picking depends on.
// All assets are synthesized in memory.
//
// Demonstrates: hexagonal map normalization, HexagonalRenderer coordinate
// conversion both ways, DrawTile, and viewport panning over a hex grid.
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/phanxgames/rowan"
)

// ---- configuration ---------------------------------------------------------

const (
	screenW = 960
	screenH = 640

	mapCols = 24
	mapRows = 20

	// Pointy-top hexes: rows stagger, the flat sides run vertically.
	tileW   = 24
	tileH   = 28
	hexSide = 14
)

// ---- generated assets ------------------------------------------------------

// terrain cell indices; the last cell is the hover highlight.
const (
	hexMeadow = iota
	hexForest
	hexWater
	hexCursor
	hexCount
)

// insideHex reports whether a pixel of the tile cell falls inside the
// pointy-top hexagon: a rectangle of height hexSide with triangular caps.
func insideHex(x, y int) bool {
	tip := float64(tileH-hexSide) / 2
	dx := math.Abs(float64(x) - float64(tileW)/2)
	switch {
	case float64(y) < tip:
		return dx <= float64(tileW)/2*float64(y)/tip
	case float64(y) >= float64(tileH)-tip:
		return dx <= float64(tileW)/2*float64(tileH-y)/tip
	default:
		return dx <= float64(tileW)/2
	}
}

func tilesetPNG() ([]byte, error) {
	palette := [hexCount]color.RGBA{
		hexMeadow: {R: 126, G: 176, B: 90, A: 255},
		hexForest: {R: 58, G: 118, B: 66, A: 255},
		hexWater:  {R: 52, G: 96, B: 146, A: 255},
		hexCursor: {R: 240, G: 214, B: 92, A: 255},
	}

	img := image.NewRGBA(image.Rect(0, 0, hexCount*tileW, tileH))
	for i, c := range palette {
		for y := 0; y < tileH; y++ {
			for x := 0; x < tileW; x++ {
				if insideHex(x, y) {
					img.SetRGBA(i*tileW+x, y, c)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hexTMX() string {
	var csv strings.Builder
	for row := 0; row < mapRows; row++ {
		for col := 0; col < mapCols; col++ {
			gid := hexMeadow + 1
			switch {
			case (col*5+row*11)%13 < 3:
				gid = hexForest + 1
			case (col*3+row*7)%17 < 2:
				gid = hexWater + 1
			}
			if col > 0 || row > 0 {
				csv.WriteByte(',')
			}
			csv.WriteString(strconv.Itoa(gid))
		}
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" orientation="hexagonal" renderorder="right-down" width="%d" height="%d" tilewidth="%d" tileheight="%d" hexsidelength="%d" staggeraxis="y" staggerindex="odd">
 <tileset firstgid="1" name="hexes" tilewidth="%d" tileheight="%d" tilecount="%d" columns="%d">
  <image source="hex-tiles.png" width="%d" height="%d"/>
 </tileset>
 <layer id="1" name="terrain" width="%d" height="%d">
  <data encoding="csv">%s</data>
 </layer>
</map>`,
		mapCols, mapRows, tileW, tileH, hexSide,
		tileW, tileH, hexCount, hexCount,
		hexCount*tileW, tileH,
		mapCols, mapRows, csv.String())
}

// ---- game ------------------------------------------------------------------

type game struct {
	m     *rowan.Map
	rend  rowan.Renderer
	vp    *rowan.Viewport
	world *ebiten.Image

	hover    rowan.Vec2
	hasHover bool
}

func (g *game) Update() error {
	const dt = 1.0 / 60
	const step = 220 * dt

	if ebiten.IsKeyPressed(ebiten.KeyLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		g.vp.X -= step
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		g.vp.X += step
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		g.vp.Y -= step
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		g.vp.Y += step
	}
	g.vp.Update(dt)

	mx, my := ebiten.CursorPosition()
	wx, wy := g.vp.ScreenToWorld(float64(mx), float64(my))
	cell := g.rend.PixelToTileCoords(wx, wy)
	g.hover = cell
	g.hasHover = cell.X >= 0 && int(cell.X) < mapCols && cell.Y >= 0 && int(cell.Y) < mapRows
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 14, G: 14, B: 20, A: 255})
	g.world.Clear()

	view := g.vp.VisibleBounds()
	for _, l := range g.m.Layers {
		g.rend.DrawTileLayer(g.world, l, view)
	}
	if g.hasHover {
		if ts, ok := g.m.Tilesets.ForGID(hexCursor + 1); ok {
			g.rend.DrawTile(g.world, int(g.hover.X), int(g.hover.Y), rowan.Tile{GID: hexCursor + 1, Tileset: ts})
		}
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM = g.vp.GeoM()
	screen.DrawImage(g.world, op)

	msg := "wasd/arrows pan, hover a hex"
	if g.hasHover {
		msg = fmt.Sprintf("%s  [%d, %d]", msg, int(g.hover.X), int(g.hover.Y))
	}
	ebitenutil.DebugPrint(screen, msg)
}

func (g *game) Layout(int, int) (int, int) {
	return screenW, screenH
}

// ---- main ------------------------------------------------------------------

func main() {
	tiles, err := tilesetPNG()
	if err != nil {
		log.Fatalf("build tileset: %v", err)
	}

	ld := rowan.NewLoader(rowan.LoaderConfig{SettleDelay: -1})
	ready := make(chan struct{})
	err = ld.Preload([]rowan.Resource{
		{Name: "hex-tiles", Kind: rowan.KindImage, Src: "hex-tiles.png", Data: tiles},
		{Name: "hexmap", Kind: rowan.KindTMX, Src: "hexmap.tmx", Data: []byte(hexTMX())},
	}, func() { close(ready) })
	if err != nil {
		log.Fatal(err)
	}
	<-ready

	m, ok := ld.GetTMX("hexmap")
	if !ok {
		log.Fatal("hex map not loaded")
	}
	rend, err := rowan.NewRenderer(m)
	if err != nil {
		log.Fatal(err)
	}

	bounds := rend.Bounds()
	vp := rowan.NewViewport(rowan.Rect{Width: screenW, Height: screenH})
	vp.Zoom = 2
	vp.SetBounds(bounds)
	vp.X, vp.Y = bounds.Width/2, bounds.Height/2

	g := &game{
		m:     m,
		rend:  rend,
		vp:    vp,
		world: ebiten.NewImage(int(bounds.Width), int(bounds.Height)),
	}

	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("Rowan Hex View")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
