package rowan

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// scrollAnim holds active scroll-to tweens for viewport X and Y.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// Viewport is the world-space window a game looks through: a center
// position, a zoom factor, and the screen rectangle it covers. Its visible
// bounds feed [Renderer] DrawTileLayer directly.
type Viewport struct {
	// X and Y are the world-space position the viewport centers on.
	X, Y float64
	// Zoom is the scale factor (1.0 = no zoom, >1 = zoom in, <1 = zoom out).
	Zoom float64
	// Screen is the screen-space rectangle this viewport renders into.
	Screen Rect

	// BoundsEnabled clamps the position so the visible area stays within
	// Bounds.
	BoundsEnabled bool
	// Bounds is the world-space rectangle the viewport is clamped to when
	// BoundsEnabled is true. A renderer's Bounds() is the usual source.
	Bounds Rect

	followFn      func() (x, y float64)
	followOffsetX float64
	followOffsetY float64
	followLerp    float64

	scrollTween *scrollAnim
}

// NewViewport creates a viewport covering the given screen rectangle.
func NewViewport(screen Rect) *Viewport {
	return &Viewport{Zoom: 1.0, Screen: screen}
}

// Follow makes the viewport track a moving world position with the given
// offset and lerp factor. A lerp of 1.0 snaps immediately; lower values
// give smoother following.
func (v *Viewport) Follow(target func() (x, y float64), offsetX, offsetY, lerp float64) {
	v.followFn = target
	v.followOffsetX = offsetX
	v.followOffsetY = offsetY
	v.followLerp = lerp
}

// Unfollow stops tracking the current target.
func (v *Viewport) Unfollow() {
	v.followFn = nil
}

// ScrollTo animates the viewport to the given world position over duration
// seconds.
func (v *Viewport) ScrollTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	v.scrollTween = &scrollAnim{
		tweenX: gween.New(float32(v.X), float32(x), duration, easeFn),
		tweenY: gween.New(float32(v.Y), float32(y), duration, easeFn),
	}
}

// ScrollToTile scrolls to the center of the given tile in a tile-based
// layout.
func (v *Viewport) ScrollToTile(tileX, tileY int, tileW, tileH float64, duration float32, easeFn ease.TweenFunc) {
	worldX := float64(tileX)*tileW + tileW/2
	worldY := float64(tileY)*tileH + tileH/2
	v.ScrollTo(worldX, worldY, duration, easeFn)
}

// SetBounds enables bounds clamping.
func (v *Viewport) SetBounds(bounds Rect) {
	v.BoundsEnabled = true
	v.Bounds = bounds
}

// ClearBounds disables bounds clamping.
func (v *Viewport) ClearBounds() {
	v.BoundsEnabled = false
}

// ClampToBounds immediately clamps the position so the visible area stays
// within Bounds. Call this after modifying X/Y directly (e.g. in a drag
// callback) to prevent a single frame outside the bounds. No-op if
// BoundsEnabled is false.
func (v *Viewport) ClampToBounds() {
	if v.BoundsEnabled {
		v.clampToBounds()
	}
}

// Update advances follow, scroll, and bounds clamping. dt is in seconds.
func (v *Viewport) Update(dt float64) {
	if v.followFn != nil {
		targetX, targetY := v.followFn()
		targetX += v.followOffsetX
		targetY += v.followOffsetY
		v.X += (targetX - v.X) * v.followLerp
		v.Y += (targetY - v.Y) * v.followLerp
	}

	if v.scrollTween != nil {
		if !v.scrollTween.doneX {
			val, done := v.scrollTween.tweenX.Update(float32(dt))
			v.X = float64(val)
			v.scrollTween.doneX = done
		}
		if !v.scrollTween.doneY {
			val, done := v.scrollTween.tweenY.Update(float32(dt))
			v.Y = float64(val)
			v.scrollTween.doneY = done
		}
		if v.scrollTween.doneX && v.scrollTween.doneY {
			v.scrollTween = nil
		}
	}

	if v.BoundsEnabled {
		v.clampToBounds()
	}
}

// clampToBounds restricts the position so the visible area stays within
// Bounds.
func (v *Viewport) clampToBounds() {
	halfW := v.Screen.Width / (2 * v.Zoom)
	halfH := v.Screen.Height / (2 * v.Zoom)

	minX := v.Bounds.X + halfW
	maxX := v.Bounds.X + v.Bounds.Width - halfW
	minY := v.Bounds.Y + halfH
	maxY := v.Bounds.Y + v.Bounds.Height - halfH

	// If bounds are smaller than the visible area, center on them.
	if minX > maxX {
		v.X = v.Bounds.X + v.Bounds.Width/2
	} else {
		v.X = math.Max(minX, math.Min(v.X, maxX))
	}
	if minY > maxY {
		v.Y = v.Bounds.Y + v.Bounds.Height/2
	} else {
		v.Y = math.Max(minY, math.Min(v.Y, maxY))
	}
}

// VisibleBounds returns the world-space rectangle currently visible, the
// value to pass to DrawTileLayer.
func (v *Viewport) VisibleBounds() Rect {
	w := v.Screen.Width / v.Zoom
	h := v.Screen.Height / v.Zoom
	return Rect{X: v.X - w/2, Y: v.Y - h/2, Width: w, Height: h}
}

// WorldToScreen converts world coordinates to screen coordinates.
func (v *Viewport) WorldToScreen(wx, wy float64) (sx, sy float64) {
	cx := v.Screen.X + v.Screen.Width/2
	cy := v.Screen.Y + v.Screen.Height/2
	return (wx-v.X)*v.Zoom + cx, (wy-v.Y)*v.Zoom + cy
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (v *Viewport) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	cx := v.Screen.X + v.Screen.Width/2
	cy := v.Screen.Y + v.Screen.Height/2
	return (sx-cx)/v.Zoom + v.X, (sy-cy)/v.Zoom + v.Y
}

// GeoM returns the world-to-screen transform as an Ebitengine matrix, for
// drawing world-space images through the viewport.
func (v *Viewport) GeoM() ebiten.GeoM {
	var g ebiten.GeoM
	g.Translate(-v.X, -v.Y)
	g.Scale(v.Zoom, v.Zoom)
	g.Translate(v.Screen.X+v.Screen.Width/2, v.Screen.Y+v.Screen.Height/2)
	return g
}
