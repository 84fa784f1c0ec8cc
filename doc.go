// Package rowan is an asset pipeline and tile-map core for [Ebitengine].
//
// Rowan provides the asset loader, Tiled (TMX/TSX) map normalization, tile
// layer rendering geometry, and texture atlas resolution that a 2D game
// built on Ebitengine needs before the first frame is drawn.
//
// # Quick start
//
// Create a [Loader], preload a batch of resources, and pull decoded assets
// out of the typed caches once the completion callback fires:
//
//	ld := rowan.NewLoader(rowan.LoaderConfig{
//		Fetcher: rowan.DirFetcher{Root: "assets"},
//	})
//	err := ld.Preload([]rowan.Resource{
//		{Name: "tiles", Kind: rowan.KindImage, Src: "tiles.png"},
//		{Name: "level1", Kind: rowan.KindTMX, Src: "level1.tmx"},
//	}, func() {
//		m, _ := ld.GetTMX("level1")
//		r, _ := rowan.NewRenderer(m)
//		// ... draw m.Layers with r ...
//	})
//
// Progress and per-resource failures are reported through the
// [LoaderConfig.OnProgress] and [LoaderConfig.OnError] callbacks. Batches can
// also be described declaratively in a YAML manifest; see [ParseManifest].
//
// # Tiled maps
//
// [ParseTMX] and [ParseTMJ] normalize the two Tiled serializations into one
// canonical document shape, and [BuildMap] turns that document into a typed
// [Map]. A [Renderer] ([NewOrthogonalRenderer] or [NewHexagonalRenderer])
// converts between pixel and tile coordinates and draws the visible slice of
// a layer:
//
//	view := vp.VisibleBounds()
//	rend.DrawTileLayer(screen, m.Layers[0], view)
//
// # Texture atlases
//
// [NewTextureAtlas] parses TexturePacker / Free Texture Packer exports,
// single-image wrappers, and fixed-cell spritesheets into named regions:
//
//	atlas, _ := rowan.NewTextureAtlas(rowan.AtlasSource{Data: desc, Images: pages})
//	frame, ok := atlas.Region("hero_idle")
//
// # Extras
//
// [Viewport] is a small scrolling camera (tweened via [gween]) that produces
// the visible rectangle consumed by DrawTileLayer. [Watcher] (built on
// [fsnotify]) re-fetches loaded resources when their source files change
// during development.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
// [fsnotify]: https://github.com/fsnotify/fsnotify
package rowan
