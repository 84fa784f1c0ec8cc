// tiledview renders a procedurally assembled Tiled island through the rowan
// pipeline. The TMX document and its tileset image are synthesized in memory
// and preloaded as inline resources, so the demo needs no asset files.
//
// Demonstrates: Loader.Preload with inline data, TMX normalization and map
// building, tile animation, DrawTileLayer culling, and Viewport panning,
// zooming, scroll tweening, and bounds clamping.
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
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/rowan"
)

// ---- configuration ---------------------------------------------------------

const (
	screenW = 960
	screenH = 640

	mapCols = 48
	mapRows = 36
	tileSz  = 16

	panSpeed = 240.0 // world pixels per second at zoom 1
)

// ---- generated assets ------------------------------------------------------

// tileset cell indices; GIDs are these plus the tileset's firstgid of 1.
const (
	tileWaterA = iota
	tileWaterB
	tileSand
	tileGrass
	tileRock
	tileCount
)

// tilesetPNG paints one 16x16 cell per terrain type into a horizontal strip
// and encodes it as PNG bytes for an inline image resource.
func tilesetPNG() ([]byte, error) {
	palette := [tileCount]color.RGBA{
		tileWaterA: {R: 38, G: 84, B: 124, A: 255},
		tileWaterB: {R: 48, G: 100, B: 142, A: 255},
		tileSand:   {R: 226, G: 202, B: 144, A: 255},
		tileGrass:  {R: 98, G: 160, B: 82, A: 255},
		tileRock:   {R: 122, G: 120, B: 128, A: 255},
	}

	img := image.NewRGBA(image.Rect(0, 0, tileCount*tileSz, tileSz))
	for i, c := range palette {
		edge := color.RGBA{R: c.R - c.R/6, G: c.G - c.G/6, B: c.B - c.B/6, A: 255}
		for y := 0; y < tileSz; y++ {
			for x := 0; x < tileSz; x++ {
				px := c
				if x == 0 || y == 0 || x == tileSz-1 || y == tileSz-1 {
					px = edge
				}
				img.SetRGBA(i*tileSz+x, y, px)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// islandTMX writes a TMX document for a round island: grass core, sand ring,
// animated water everywhere else, with a spawn marker at the island center.
func islandTMX() string {
	var csv strings.Builder
	cx, cy := float64(mapCols)/2, float64(mapRows)/2
	for row := 0; row < mapRows; row++ {
		for col := 0; col < mapCols; col++ {
			dx := (float64(col) + 0.5 - cx) / cx
			dy := (float64(row) + 0.5 - cy) / cy
			d := math.Sqrt(dx*dx + dy*dy)

			gid := tileWaterA + 1
			switch {
			case d < 0.55:
				gid = tileGrass + 1
			case d < 0.72:
				gid = tileSand + 1
			}
			if gid == tileGrass+1 && (col*7+row*13)%31 == 0 {
				gid = tileRock + 1
			}

			if col > 0 || row > 0 {
				csv.WriteByte(',')
			}
			csv.WriteString(strconv.Itoa(gid))
		}
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" orientation="orthogonal" renderorder="right-down" width="%d" height="%d" tilewidth="%d" tileheight="%d">
 <tileset firstgid="1" name="island" tilewidth="%d" tileheight="%d" tilecount="%d" columns="%d">
  <image source="island-tiles.png" width="%d" height="%d"/>
  <tile id="0">
   <animation>
    <frame tileid="0" duration="400"/>
    <frame tileid="1" duration="400"/>
   </animation>
  </tile>
 </tileset>
 <layer id="1" name="terrain" width="%d" height="%d">
  <data encoding="csv">%s</data>
 </layer>
 <objectgroup id="2" name="markers">
  <object id="1" name="spawn" x="%d" y="%d"/>
 </objectgroup>
</map>`,
		mapCols, mapRows, tileSz, tileSz,
		tileSz, tileSz, tileCount, tileCount,
		tileCount*tileSz, tileSz,
		mapCols, mapRows, csv.String(),
		mapCols/2*tileSz, mapRows/2*tileSz)
}

// ---- game ------------------------------------------------------------------

type game struct {
	m     *rowan.Map
	rend  rowan.Renderer
	vp    *rowan.Viewport
	world *ebiten.Image
	spawn rowan.Vec2
}

func (g *game) Update() error {
	const dt = 1.0 / 60
	g.m.Update(dt)

	step := panSpeed * dt / g.vp.Zoom
	if pressed(ebiten.KeyLeft, ebiten.KeyA) {
		g.vp.X -= step
	}
	if pressed(ebiten.KeyRight, ebiten.KeyD) {
		g.vp.X += step
	}
	if pressed(ebiten.KeyUp, ebiten.KeyW) {
		g.vp.Y -= step
	}
	if pressed(ebiten.KeyDown, ebiten.KeyS) {
		g.vp.Y += step
	}
	if pressed(ebiten.KeyQ) {
		g.vp.Zoom = max(1, g.vp.Zoom/1.02)
	}
	if pressed(ebiten.KeyE) {
		g.vp.Zoom = min(6, g.vp.Zoom*1.02)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.vp.ScrollTo(g.spawn.X, g.spawn.Y, 0.8, ease.OutQuad)
	}

	g.vp.Update(dt)
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 10, G: 16, B: 26, A: 255})
	g.world.Clear()

	view := g.vp.VisibleBounds()
	for _, l := range g.m.Layers {
		if l.Kind == "tilelayer" {
			g.rend.DrawTileLayer(g.world, l, view)
		}
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM = g.vp.GeoM()
	screen.DrawImage(g.world, op)

	ebitenutil.DebugPrint(screen, "wasd/arrows pan, q/e zoom, space recenter")
}

func (g *game) Layout(int, int) (int, int) {
	return screenW, screenH
}

func pressed(keys ...ebiten.Key) bool {
	for _, k := range keys {
		if ebiten.IsKeyPressed(k) {
			return true
		}
	}
	return false
}

// ---- main ------------------------------------------------------------------

func main() {
	tiles, err := tilesetPNG()
	if err != nil {
		log.Fatalf("build tileset: %v", err)
	}

	ld := rowan.NewLoader(rowan.LoaderConfig{
		SettleDelay: -1,
		OnProgress: func(fraction float64, res rowan.Resource) {
			log.Printf("loaded %s %q (%.0f%%)", res.Kind, res.Name, fraction*100)
		},
		OnError: func(res rowan.Resource, err error) {
			log.Fatalf("load %q: %v", res.Name, err)
		},
	})

	ready := make(chan struct{})
	err = ld.Preload([]rowan.Resource{
		{Name: "island-tiles", Kind: rowan.KindImage, Src: "island-tiles.png", Data: tiles},
		{Name: "island", Kind: rowan.KindTMX, Src: "island.tmx", Data: []byte(islandTMX())},
	}, func() { close(ready) })
	if err != nil {
		log.Fatal(err)
	}
	<-ready

	m, ok := ld.GetTMX("island")
	if !ok {
		log.Fatal("island map not loaded")
	}
	rend, err := rowan.NewRenderer(m)
	if err != nil {
		log.Fatal(err)
	}

	vp := rowan.NewViewport(rowan.Rect{Width: screenW, Height: screenH})
	vp.Zoom = 2
	vp.SetBounds(rend.Bounds())

	spawn := rowan.Vec2{X: mapCols / 2 * tileSz, Y: mapRows / 2 * tileSz}
	for _, l := range m.Layers {
		if l.Kind != "objectgroup" {
			continue
		}
		for _, o := range l.Objects {
			if o.Name == "spawn" {
				spawn = rowan.Vec2{X: o.X, Y: o.Y}
			}
		}
	}
	vp.X, vp.Y = spawn.X, spawn.Y

	g := &game{
		m:     m,
		rend:  rend,
		vp:    vp,
		world: ebiten.NewImage(mapCols*tileSz, mapRows*tileSz),
		spawn: spawn,
	}

	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("Rowan Island View")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
