// atlasview builds two texture atlases at runtime and draws their regions:
// a fixed-cell spritesheet animated as a spinning coin, and a packer-style
// JSON descriptor with plain and trimmed sprites.
//
// Demonstrates: NewTextureAtlas with sheet and packed sources, region
// lookup, SubImage blitting, and trim offset handling.
package main

import (
	"fmt"
	"image/color"
	"log"
	"math"
	"strconv"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/phanxgames/rowan"
)

// ---- configuration ---------------------------------------------------------

const (
	screenW = 640
	screenH = 360

	coinSize   = 24
	coinFrames = 8
)

// propsJSON is a single-page packer export over the generated props page.
// The gem is stored trimmed: 10x10 pixels cut from a 16x16 authored sprite.
const propsJSON = `{
  "frames": {
    "hero":  {"frame": {"x": 2,  "y": 2, "w": 16, "h": 28}},
    "gem":   {"frame": {"x": 24, "y": 4, "w": 10, "h": 10}, "trimmed": true,
              "spriteSourceSize": {"x": 3, "y": 3, "w": 10, "h": 10},
              "sourceSize": {"w": 16, "h": 16}, "pivot": {"x": 0.5, "y": 0.5}},
    "crate": {"frame": {"x": 40, "y": 2, "w": 14, "h": 14}}
  },
  "meta": {"image": "props.png", "size": {"w": 64, "h": 64}}
}`

// ---- generated pages -------------------------------------------------------

// coinSheet draws the coin's spin cycle: a disc whose horizontal radius
// follows a cosine, flipping to the darker back face halfway through.
func coinSheet() *ebiten.Image {
	img := ebiten.NewImage(coinFrames*coinSize, coinSize)
	face := color.RGBA{R: 236, G: 196, B: 70, A: 255}
	back := color.RGBA{R: 190, G: 140, B: 40, A: 255}

	for f := 0; f < coinFrames; f++ {
		squeeze := math.Cos(math.Pi * float64(f) / float64(coinFrames) * 2)
		c := face
		if squeeze < 0 {
			c = back
			squeeze = -squeeze
		}
		rx := math.Max(1, squeeze*float64(coinSize)/2-1)
		ry := float64(coinSize)/2 - 1

		for y := 0; y < coinSize; y++ {
			for x := 0; x < coinSize; x++ {
				dx := (float64(x) - float64(coinSize)/2) / rx
				dy := (float64(y) - float64(coinSize)/2) / ry
				if dx*dx+dy*dy <= 1 {
					img.Set(f*coinSize+x, y, c)
				}
			}
		}
	}
	return img
}

// propsPage draws the sprites propsJSON describes onto one 64x64 page.
func propsPage() *ebiten.Image {
	img := ebiten.NewImage(64, 64)

	fill := func(x0, y0, w, h int, c color.RGBA) {
		for y := y0; y < y0+h; y++ {
			for x := x0; x < x0+w; x++ {
				img.Set(x, y, c)
			}
		}
	}

	// Hero body and head, the gem, then the crate with its inner panel.
	fill(2, 2, 16, 28, color.RGBA{R: 70, G: 110, B: 190, A: 255})
	fill(6, 4, 8, 8, color.RGBA{R: 228, G: 188, B: 160, A: 255})
	fill(24, 4, 10, 10, color.RGBA{R: 120, G: 220, B: 190, A: 255})
	fill(40, 2, 14, 14, color.RGBA{R: 150, G: 104, B: 62, A: 255})
	fill(42, 4, 10, 10, color.RGBA{R: 126, G: 86, B: 50, A: 255})
	return img
}

// ---- game ------------------------------------------------------------------

type game struct {
	atlas *rowan.TextureAtlas
	tick  int
}

// drawRegion blits a named region with its top-left at (x, y), restoring the
// trim inset so trimmed sprites land where the authored sprite would.
func (g *game) drawRegion(dst *ebiten.Image, name string, x, y float64) {
	r, ok := g.atlas.Region(name)
	if !ok {
		return
	}
	img, err := g.atlas.SubImage(name)
	if err != nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(x+float64(r.TrimmedX), y+float64(r.TrimmedY))
	dst.DrawImage(img, op)
}

func (g *game) Update() error {
	g.tick++
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 24, G: 26, B: 34, A: 255})

	// A row of coins, each offset into the spin cycle.
	frame := g.tick / 5
	for i := 0; i < 12; i++ {
		name := strconv.Itoa((frame + i) % coinFrames)
		g.drawRegion(screen, name, 40+float64(i)*44, 60)
	}

	g.drawRegion(screen, "hero", 60, 160)
	g.drawRegion(screen, "gem", 120, 166)
	g.drawRegion(screen, "crate", 170, 168)
	ebitenutil.DebugPrintAt(screen, "hero", 58, 200)
	ebitenutil.DebugPrintAt(screen, "gem (trimmed)", 98, 200)
	ebitenutil.DebugPrintAt(screen, "crate", 164, 200)

	if uv, err := g.atlas.UVs("gem"); err == nil {
		ebitenutil.DebugPrintAt(screen,
			fmt.Sprintf("gem UVs: %.3f %.3f %.3f %.3f", uv[0], uv[1], uv[2], uv[3]), 60, 230)
	}
}

func (g *game) Layout(int, int) (int, int) {
	return screenW, screenH
}

// ---- main ------------------------------------------------------------------

func main() {
	atlas, err := rowan.NewTextureAtlas(
		rowan.AtlasSource{
			Name:   "coin",
			Sheet:  &rowan.SheetLayout{FrameWidth: coinSize, FrameHeight: coinSize},
			Images: []*ebiten.Image{coinSheet()},
		},
		rowan.AtlasSource{
			Name:   "props",
			Data:   []byte(propsJSON),
			Images: []*ebiten.Image{propsPage()},
		},
	)
	if err != nil {
		log.Fatalf("build atlas: %v", err)
	}

	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("Rowan Atlas View")
	if err := ebiten.RunGame(&game{atlas: atlas}); err != nil {
		log.Fatal(err)
	}
}
