package rowan

import "errors"

// Sentinel errors shared by the loader, the map normalizer, and the texture
// atlas. Returned errors wrap one of these; test with errors.Is. Call sites
// append detail after the sentinel, e.g.
//
//	fmt.Errorf("%w: zlib tile data", ErrUnsupportedFormat)
var (
	// ErrConfiguration reports API misuse caught up front: a preload with no
	// completion callback, a second preload while a batch is in flight, a
	// hexagonal map without a stagger axis.
	ErrConfiguration = errors.New("rowan: invalid configuration")

	// ErrUnsupportedKind reports a resource kind the loader has no handler
	// for.
	ErrUnsupportedKind = errors.New("rowan: unsupported kind")

	// ErrUnsupportedFormat reports data in a recognized slot but an
	// unworkable shape: compressed tile data, an unknown audio container, an
	// atlas descriptor matching no known producer, a map orientation with no
	// renderer.
	ErrUnsupportedFormat = errors.New("rowan: unsupported format")

	// ErrParse reports malformed input: invalid XML or JSON, a bad manifest,
	// undecodable property values.
	ErrParse = errors.New("rowan: parse error")

	// ErrNotFound reports a missing referenced asset: a tileset image that
	// was never loaded, an external tileset that was not preloaded.
	ErrNotFound = errors.New("rowan: not found")
)
