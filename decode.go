package rowan

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tile data decoding for TMX layers. Decoded data is []float64 rather than
// []uint32 so that unparseable CSV entries can carry NaN without aborting the
// layer; renderers skip NaN and zero cells. Every representable tile GID fits
// a float64 exactly.

// DecodeCSV parses comma-separated tile data. Entries that do not parse as a
// number decode to NaN in their slot rather than failing the whole layer.
func DecodeCSV(data string) []float64 {
	entries := strings.Split(data, ",")
	out := make([]float64, len(entries))
	for i, e := range entries {
		v, err := strconv.ParseFloat(strings.TrimSpace(e), 64)
		if err != nil {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// DecodeBase64 parses base64 tile data, packing each group of 4 decoded
// bytes little-endian into one tile value. Characters outside the base64
// alphabet (newlines, indentation) are stripped before decoding.
func DecodeBase64(data string) ([]float64, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '+', r == '/', r == '=':
			return r
		}
		return -1
	}, data)

	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 tile data: %v", ErrParse, err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: base64 tile data is %d bytes, want a multiple of 4", ErrParse, len(raw))
	}

	out := make([]float64, len(raw)/4)
	for i := range out {
		b := raw[i*4:]
		v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		out[i] = float64(v)
	}
	return out, nil
}

// decodeLayerData dispatches on the data element's encoding attribute.
// Compression is never supported; compressed layers must be re-exported.
func decodeLayerData(text, encoding, compression string) ([]float64, error) {
	if compression != "" && compression != "none" {
		return nil, fmt.Errorf("%w: %s-compressed tile data (re-export the layer uncompressed)",
			ErrUnsupportedFormat, compression)
	}
	switch encoding {
	case "csv":
		return DecodeCSV(text), nil
	case "base64":
		return DecodeBase64(text)
	case "", "none", "xml":
		// A data element with no encoding holds one <tile> child per cell,
		// a format Tiled deprecated long ago.
		return nil, fmt.Errorf("%w: inline tile elements are deprecated, re-export the layer with base64 encoding",
			ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: unknown layer encoding %q", ErrUnsupportedFormat, encoding)
	}
}
