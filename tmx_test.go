package rowan

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// --- fixtures ---

const villageTMX = `<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" orientation="orthogonal" renderorder="right-down"
     width="3" height="2" tilewidth="16" tileheight="16">
 <properties>
  <property name="difficulty" type="int" value="2"/>
  <property name="night" value="true"/>
  <property name="tint" value="#80ff0000"/>
 </properties>
 <tileset firstgid="1" name="ground" tilewidth="16" tileheight="16" tilecount="8" columns="4">
  <tileoffset x="0" y="-4"/>
  <image source="ground.png" width="64" height="32"/>
  <tile id="2">
   <animation>
    <frame tileid="2" duration="100"/>
    <frame tileid="3" duration="150"/>
   </animation>
  </tile>
 </tileset>
 <layer name="floor" width="3" height="2">
  <properties>
   <property name="parallax" value="0.5"/>
  </properties>
  <data encoding="csv">1,2,3,
4,5,6</data>
 </layer>
 <objectgroup name="things">
  <object id="1" name="spawn" x="24" y="40"/>
  <object id="2" name="zone" x="0" y="0">
   <polygon points="0,0 32,0 32,16"/>
  </object>
  <object id="3" name="path" x="8" y="8">
   <polyline points="0,0 0,24"/>
  </object>
  <object id="4" name="crate" gid="5" x="16" y="32" width="16" height="16"/>
 </objectgroup>
 <imagelayer name="backdrop">
  <image source="sky.png" width="256" height="128"/>
 </imagelayer>
 <group name="parallax">
  <layer name="clouds" width="3" height="2">
   <data encoding="csv">0,0,1,0,0,1</data>
  </layer>
 </group>
</map>`

func parseVillage(t *testing.T) map[string]any {
	t.Helper()
	doc, err := ParseTMX([]byte(villageTMX))
	if err != nil {
		t.Fatalf("ParseTMX: %v", err)
	}
	return doc
}

// --- attribute folding ---

func TestParseTMX_MapAttributes(t *testing.T) {
	doc := parseVillage(t)
	if doc["orientation"] != "orthogonal" {
		t.Errorf("orientation = %v, want orthogonal", doc["orientation"])
	}
	if doc["width"] != 3.0 || doc["height"] != 2.0 {
		t.Errorf("size = %v x %v, want 3 x 2", doc["width"], doc["height"])
	}
	if doc["tilewidth"] != 16.0 {
		t.Errorf("tilewidth = %v, want 16", doc["tilewidth"])
	}
}

func TestParseTMX_MapProperties(t *testing.T) {
	doc := parseVillage(t)
	if doc["difficulty"] != 2.0 {
		t.Errorf("difficulty = %v (%T), want 2", doc["difficulty"], doc["difficulty"])
	}
	if doc["night"] != true {
		t.Errorf("night = %v, want true", doc["night"])
	}
	// Alpha-first #80ff0000 normalizes to alpha-last.
	if doc["tint"] != "#ff000080" {
		t.Errorf("tint = %v, want #ff000080", doc["tint"])
	}
}

// --- layer collection and kind mapping ---

func TestParseTMX_LayerKinds(t *testing.T) {
	doc := parseVillage(t)
	layers, ok := doc["layers"].([]any)
	if !ok {
		t.Fatalf("layers = %T, want []any", doc["layers"])
	}
	if len(layers) != 4 {
		t.Fatalf("layer count = %d, want 4", len(layers))
	}

	wantTypes := []string{"tilelayer", "objectgroup", "imagelayer", "group"}
	wantNames := []string{"floor", "things", "backdrop", "parallax"}
	for i, entry := range layers {
		l := entry.(map[string]any)
		if l["type"] != wantTypes[i] {
			t.Errorf("layer %d type = %v, want %v", i, l["type"], wantTypes[i])
		}
		if l["name"] != wantNames[i] {
			t.Errorf("layer %d name = %v, want %v", i, l["name"], wantNames[i])
		}
	}
}

func TestParseTMX_GroupNestsLayers(t *testing.T) {
	doc := parseVillage(t)
	layers := doc["layers"].([]any)
	group := layers[3].(map[string]any)
	nested, ok := group["layers"].([]any)
	if !ok || len(nested) != 1 {
		t.Fatalf("group layers = %v, want one nested layer", group["layers"])
	}
	child := nested[0].(map[string]any)
	if child["type"] != "tilelayer" || child["name"] != "clouds" {
		t.Errorf("nested layer = %v %v, want tilelayer clouds", child["type"], child["name"])
	}
}

// --- tile data ---

func TestParseTMX_CSVDataDecoded(t *testing.T) {
	doc := parseVillage(t)
	floor := doc["layers"].([]any)[0].(map[string]any)

	data, ok := floor["data"].([]float64)
	if !ok {
		t.Fatalf("floor data = %T, want []float64", floor["data"])
	}
	want := []float64{1, 2, 3, 4, 5, 6}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("floor data mismatch (-want +got):\n%s", diff)
	}
	if floor["encoding"] != "none" {
		t.Errorf("encoding after decode = %v, want \"none\"", floor["encoding"])
	}
	if floor["parallax"] != 0.5 {
		t.Errorf("layer property parallax = %v, want 0.5", floor["parallax"])
	}
}

func TestParseTMX_Base64Data(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{
		1, 0, 0, 0,
		2, 0, 0, 0,
	})
	tmx := `<map width="2" height="1" tilewidth="8" tileheight="8">
 <layer name="l" width="2" height="1"><data encoding="base64">` + payload + `</data></layer>
</map>`
	doc, err := ParseTMX([]byte(tmx))
	if err != nil {
		t.Fatalf("ParseTMX: %v", err)
	}
	l := doc["layers"].([]any)[0].(map[string]any)
	data := l["data"].([]float64)
	if len(data) != 2 || data[0] != 1 || data[1] != 2 {
		t.Errorf("base64 data = %v, want [1 2]", data)
	}
}

func TestParseTMX_CompressedDataRejected(t *testing.T) {
	tmx := `<map width="1" height="1" tilewidth="8" tileheight="8">
 <layer name="l" width="1" height="1"><data encoding="base64" compression="zlib">eJxjYAAAAAIAAQ==</data></layer>
</map>`
	_, err := ParseTMX([]byte(tmx))
	if err == nil {
		t.Fatal("ParseTMX accepted zlib-compressed data, want error")
	}
	assertIs(t, err, ErrUnsupportedFormat)
}

func TestParseTMX_InlineTileDataRejected(t *testing.T) {
	tmx := `<map width="2" height="1" tilewidth="8" tileheight="8">
 <layer name="l" width="2" height="1"><data><tile gid="1"/><tile gid="2"/></data></layer>
</map>`
	_, err := ParseTMX([]byte(tmx))
	if err == nil {
		t.Fatal("ParseTMX accepted inline tile elements, want deprecation error")
	}
	assertIs(t, err, ErrUnsupportedFormat)
	if !strings.Contains(err.Error(), "base64") {
		t.Errorf("deprecation error %q should point at base64", err)
	}
}

func TestParseTMX_ChunkedDataRejected(t *testing.T) {
	tmx := `<map width="1" height="1" tilewidth="8" tileheight="8" infinite="1">
 <layer name="l" width="1" height="1"><data encoding="csv"><chunk x="0" y="0" width="16" height="16">1</chunk></data></layer>
</map>`
	_, err := ParseTMX([]byte(tmx))
	if err == nil {
		t.Fatal("ParseTMX accepted chunked data, want error")
	}
	assertIs(t, err, ErrUnsupportedFormat)
}

// --- tilesets ---

func TestParseTMX_TilesetImageFlattened(t *testing.T) {
	doc := parseVillage(t)
	tilesets := doc["tilesets"].([]any)
	if len(tilesets) != 1 {
		t.Fatalf("tileset count = %d, want 1", len(tilesets))
	}
	ts := tilesets[0].(map[string]any)
	if ts["image"] != "ground.png" {
		t.Errorf("tileset image = %v, want ground.png", ts["image"])
	}
	if ts["imagewidth"] != 64.0 || ts["imageheight"] != 32.0 {
		t.Errorf("tileset image size = %v x %v, want 64 x 32", ts["imagewidth"], ts["imageheight"])
	}
	if ts["firstgid"] != 1.0 {
		t.Errorf("firstgid = %v, want 1", ts["firstgid"])
	}
}

func TestParseTMX_TilesKeyedByID(t *testing.T) {
	doc := parseVillage(t)
	ts := doc["tilesets"].([]any)[0].(map[string]any)
	tiles, ok := ts["tiles"].(map[string]any)
	if !ok {
		t.Fatalf("tiles = %T, want map keyed by id", ts["tiles"])
	}
	tile, ok := tiles["2"].(map[string]any)
	if !ok {
		t.Fatalf("tiles[\"2\"] missing: %v", tiles)
	}
	anim := tile["animation"].(map[string]any)
	frames := anim["frames"].([]any)
	if len(frames) != 2 {
		t.Fatalf("animation frames = %d, want 2", len(frames))
	}
	f0 := frames[0].(map[string]any)
	if f0["tileid"] != 2.0 || f0["duration"] != 100.0 {
		t.Errorf("frame 0 = %v, want tileid 2 duration 100", f0)
	}
}

func TestParseTMX_StandaloneTileset(t *testing.T) {
	tsx := `<?xml version="1.0"?>
<tileset name="props" tilewidth="32" tileheight="32" tilecount="4" columns="2">
 <image source="props.png" width="64" height="64"/>
</tileset>`
	doc, err := ParseTMX([]byte(tsx))
	if err != nil {
		t.Fatalf("ParseTMX: %v", err)
	}
	if doc["name"] != "props" {
		t.Errorf("name = %v, want props", doc["name"])
	}
	if doc["image"] != "props.png" {
		t.Errorf("image = %v, want flattened source", doc["image"])
	}
	if doc["imagewidth"] != 64.0 {
		t.Errorf("imagewidth = %v, want 64", doc["imagewidth"])
	}
}

// --- objects ---

func TestParseTMX_ObjectsPluralizedInOrder(t *testing.T) {
	doc := parseVillage(t)
	things := doc["layers"].([]any)[1].(map[string]any)
	objects, ok := things["objects"].([]any)
	if !ok {
		t.Fatalf("objects = %T, want []any", things["objects"])
	}
	wantNames := []string{"spawn", "zone", "path", "crate"}
	if len(objects) != len(wantNames) {
		t.Fatalf("object count = %d, want %d", len(objects), len(wantNames))
	}
	for i, entry := range objects {
		o := entry.(map[string]any)
		if o["name"] != wantNames[i] {
			t.Errorf("object %d = %v, want %v (document order)", i, o["name"], wantNames[i])
		}
	}
}

func TestParseTMX_PolygonPoints(t *testing.T) {
	doc := parseVillage(t)
	objects := doc["layers"].([]any)[1].(map[string]any)["objects"].([]any)

	zone := objects[1].(map[string]any)
	polygon, ok := zone["polygon"].([]Vec2)
	if !ok {
		t.Fatalf("polygon = %T, want []Vec2", zone["polygon"])
	}
	want := []Vec2{{0, 0}, {32, 0}, {32, 16}}
	if diff := cmp.Diff(want, polygon); diff != "" {
		t.Errorf("polygon mismatch (-want +got):\n%s", diff)
	}

	path := objects[2].(map[string]any)
	polyline := path["polyline"].([]Vec2)
	if len(polyline) != 2 || polyline[1] != (Vec2{0, 24}) {
		t.Errorf("polyline = %v, want [{0 0} {0 24}]", polyline)
	}
}

// --- error paths ---

func TestParseTMX_MalformedDocument(t *testing.T) {
	_, err := ParseTMX([]byte("<map><layer></map>"))
	if err == nil {
		t.Fatal("ParseTMX accepted mismatched tags, want error")
	}
	assertIs(t, err, ErrParse)
}

func TestParseTMX_EmptyDocument(t *testing.T) {
	_, err := ParseTMX([]byte("   "))
	if err == nil {
		t.Fatal("ParseTMX accepted empty input, want error")
	}
	assertIs(t, err, ErrParse)
}

// --- structured (TMJ) path ---

func TestParseTMJ_PropertiesFolded(t *testing.T) {
	tmj := `{
	  "width": 2, "height": 1, "tilewidth": 8, "tileheight": 8,
	  "properties": [
	    {"name": "difficulty", "type": "int", "value": 3},
	    {"name": "label", "type": "string", "value": "intro"}
	  ],
	  "layers": [
	    {
	      "type": "tilelayer", "name": "floor", "width": 2, "height": 1,
	      "data": [1, 2],
	      "properties": [{"name": "parallax", "value": "0.25"}]
	    }
	  ]
	}`
	doc, err := ParseTMJ([]byte(tmj))
	if err != nil {
		t.Fatalf("ParseTMJ: %v", err)
	}
	if doc["difficulty"] != 3.0 {
		t.Errorf("difficulty = %v, want 3", doc["difficulty"])
	}
	if doc["label"] != "intro" {
		t.Errorf("label = %v, want intro", doc["label"])
	}
	if _, still := doc["properties"]; still {
		t.Error("properties collection should be folded away")
	}

	floor := doc["layers"].([]any)[0].(map[string]any)
	if floor["parallax"] != 0.25 {
		t.Errorf("nested layer property = %v, want 0.25", floor["parallax"])
	}
}

func TestParseTMJ_LegacyPropertyMap(t *testing.T) {
	tmj := `{"width": 1, "properties": {"speed": "2.5", "solid": "true"}}`
	doc, err := ParseTMJ([]byte(tmj))
	if err != nil {
		t.Fatalf("ParseTMJ: %v", err)
	}
	if doc["speed"] != 2.5 {
		t.Errorf("speed = %v, want 2.5", doc["speed"])
	}
	if doc["solid"] != true {
		t.Errorf("solid = %v, want true", doc["solid"])
	}
}

func TestParseTMJ_StructuredValuesUntouched(t *testing.T) {
	// JSON documents already carry typed data; only property collections
	// change shape.
	tmj := `{"width": 4, "layers": [{"data": [1, 2, 3]}]}`
	doc, err := ParseTMJ([]byte(tmj))
	if err != nil {
		t.Fatalf("ParseTMJ: %v", err)
	}
	if doc["width"] != 4.0 {
		t.Errorf("width = %v, want 4", doc["width"])
	}
	data := doc["layers"].([]any)[0].(map[string]any)["data"].([]any)
	if len(data) != 3 {
		t.Errorf("data = %v, want untouched [1 2 3]", data)
	}
}

func TestParseTMJ_Malformed(t *testing.T) {
	_, err := ParseTMJ([]byte("{broken"))
	if err == nil {
		t.Fatal("ParseTMJ accepted malformed JSON, want error")
	}
	assertIs(t, err, ErrParse)
}

func TestParseTMJ_MalformedPropertyFails(t *testing.T) {
	tmj := `{"properties": [{"name": "bad", "value": "json:{oops"}]}`
	_, err := ParseTMJ([]byte(tmj))
	if err == nil {
		t.Fatal("ParseTMJ accepted malformed json: property, want error")
	}
	assertIs(t, err, ErrParse)
}

// --- Benchmarks ---

func BenchmarkParseTMX(b *testing.B) {
	data := []byte(villageTMX)
	b.ReportAllocs()
	for b.Loop() {
		_, _ = ParseTMX(data)
	}
}
