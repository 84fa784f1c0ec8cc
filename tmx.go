package rowan

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"
)

// Normalization of the two Tiled serializations into one canonical document
// shape: a map[string]any graph with attributes folded in, child elements
// grouped into pluralized lists, tile data decoded, and custom properties
// coerced and merged onto their owners. BuildMap and BuildTileset consume
// this shape without caring which serialization produced it.
//
// The producing format is chosen by the caller (the loader dispatches on the
// resource's file extension); document content is never sniffed.

// ParseTMX normalizes a TMX or TSX markup document. The returned object is
// the canonical form of the document's root element: a <map> yields a map
// object with "layers" and "tilesets" lists, a <tileset> yields a tileset
// object directly.
func ParseTMX(data []byte) (map[string]any, error) {
	root, err := parseXMLTree(data)
	if err != nil {
		return nil, err
	}
	obj, err := normalizeElement(root)
	if err != nil {
		return nil, err
	}
	if root.name == "tileset" {
		hoistTilesetImage(obj)
	}
	return obj, nil
}

// ParseTMJ normalizes a structured (JSON) map or tileset document. The
// document shape passes through unchanged except that custom property
// collections are coerced and merged onto their owning objects, matching
// what ParseTMX produces for the markup serialization.
func ParseTMJ(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: structured map document: %v", ErrParse, err)
	}
	if err := foldPropertiesTree(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// --- markup element tree ---

type xmlElement struct {
	name     string
	attrs    []xml.Attr
	children []*xmlElement
	text     string
}

func parseXMLTree(data []byte) (*xmlElement, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *xmlElement
	var stack []*xmlElement
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: markup document: %v", ErrParse, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElement{name: t.Name.Local, attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: markup document has no root element", ErrParse)
	}
	return root, nil
}

func (el *xmlElement) attr(name string) string {
	for _, a := range el.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// --- canonicalization ---

// normalizeElement builds the canonical object for one element. Attributes
// are folded in first (value-inferred like untyped properties), then each
// child element is dispatched by tag name.
func normalizeElement(el *xmlElement) (map[string]any, error) {
	obj := make(map[string]any, len(el.attrs)+len(el.children))
	for _, a := range el.attrs {
		v, err := CoerceProperty(a.Name.Local, "", a.Value)
		if err != nil {
			return nil, err
		}
		obj[a.Name.Local] = v
	}

	for _, child := range el.children {
		switch child.name {
		case "data":
			if err := normalizeDataElement(obj, child); err != nil {
				return nil, err
			}

		case "layer", "imagelayer", "objectgroup", "group":
			sub, err := normalizeElement(child)
			if err != nil {
				return nil, err
			}
			// "layer" is the markup tag for what everything downstream
			// calls a tile layer.
			if child.name == "layer" {
				sub["type"] = "tilelayer"
			} else {
				sub["type"] = child.name
			}
			appendTo(obj, "layers", sub)

		case "object", "frame":
			sub, err := normalizeElement(child)
			if err != nil {
				return nil, err
			}
			appendTo(obj, child.name+"s", sub)

		case "tile":
			sub, err := normalizeElement(child)
			if err != nil {
				return nil, err
			}
			tiles, _ := obj["tiles"].(map[string]any)
			if tiles == nil {
				tiles = make(map[string]any)
				obj["tiles"] = tiles
			}
			id, _ := sub["id"].(float64)
			tiles[fmt.Sprintf("%d", int(id))] = sub

		case "tileset":
			sub, err := normalizeElement(child)
			if err != nil {
				return nil, err
			}
			hoistTilesetImage(sub)
			appendTo(obj, "tilesets", sub)

		case "polygon", "polyline":
			obj[child.name] = parsePoints(child.attr("points"))

		case "properties":
			for _, p := range child.children {
				if p.name != "property" {
					continue
				}
				raw := p.attr("value")
				if raw == "" {
					// Multiline strings live in the element body.
					raw = strings.TrimSpace(p.text)
				}
				v, err := CoerceProperty(p.attr("name"), p.attr("type"), raw)
				if err != nil {
					return nil, err
				}
				obj[p.attr("name")] = v
			}

		default:
			sub, err := normalizeElement(child)
			if err != nil {
				return nil, err
			}
			obj[child.name] = sub
		}
	}

	if t := strings.TrimSpace(el.text); t != "" && obj["text"] == nil {
		obj["text"] = t
	}
	return obj, nil
}

func normalizeDataElement(owner map[string]any, data *xmlElement) error {
	for _, c := range data.children {
		if c.name == "chunk" {
			return fmt.Errorf("%w: infinite maps (chunked tile data)", ErrUnsupportedFormat)
		}
	}
	encoding := data.attr("encoding")
	if encoding == "" && len(data.children) > 0 {
		encoding = "xml"
	}
	decoded, err := decodeLayerData(strings.TrimSpace(data.text), encoding, data.attr("compression"))
	if err != nil {
		return err
	}
	owner["data"] = decoded
	owner["encoding"] = "none"
	return nil
}

func appendTo(obj map[string]any, key string, v any) {
	list, _ := obj[key].([]any)
	obj[key] = append(list, v)
}

// hoistTilesetImage flattens a tileset's embedded image element so both
// serializations read the same: "image" becomes the source path, with the
// pixel dimensions promoted to imagewidth/imageheight.
func hoistTilesetImage(ts map[string]any) {
	if img, ok := ts["image"].(map[string]any); ok {
		ts["imagewidth"] = img["width"]
		ts["imageheight"] = img["height"]
		ts["image"] = img["source"]
	}
}

// parsePoints parses the "x1,y1 x2,y2 ..." form used by polygon and polyline
// elements. Unparseable coordinates decode to NaN rather than failing the
// object, mirroring tile data decoding.
func parsePoints(s string) []Vec2 {
	fields := strings.Fields(s)
	pts := make([]Vec2, 0, len(fields))
	for _, f := range fields {
		x, y := f, ""
		if i := strings.IndexByte(f, ','); i >= 0 {
			x, y = f[:i], f[i+1:]
		}
		pts = append(pts, Vec2{X: pointCoord(x), Y: pointCoord(y)})
	}
	return pts
}

func pointCoord(s string) float64 {
	vs := DecodeCSV(s)
	if len(vs) != 1 {
		return math.NaN()
	}
	return vs[0]
}

// --- structured property folding ---

// foldPropertiesTree walks a structured document and merges every custom
// property collection onto its owning object, coercing values with the same
// rules the markup path uses. Both the modern record list and the legacy
// name-to-value map shapes are recognized.
func foldPropertiesTree(node any) error {
	switch n := node.(type) {
	case map[string]any:
		if props, ok := n["properties"]; ok {
			if err := foldProperties(n, props); err != nil {
				return err
			}
			delete(n, "properties")
		}
		for _, v := range n {
			if err := foldPropertiesTree(v); err != nil {
				return err
			}
		}
	case []any:
		for _, v := range n {
			if err := foldPropertiesTree(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func foldProperties(owner map[string]any, props any) error {
	switch p := props.(type) {
	case []any:
		for _, entry := range p {
			rec, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := rec["name"].(string)
			typ, _ := rec["type"].(string)
			v, err := CoerceProperty(name, typ, rec["value"])
			if err != nil {
				return err
			}
			owner[name] = v
		}
	case map[string]any:
		for name, raw := range p {
			v, err := CoerceProperty(name, "", raw)
			if err != nil {
				return err
			}
			owner[name] = v
		}
	}
	return nil
}
