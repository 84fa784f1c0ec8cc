package rowan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// --- declared types ---

func TestCoerceProperty_DeclaredInt(t *testing.T) {
	v, err := CoerceProperty("count", "int", "42")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != 42.0 {
		t.Errorf("declared int \"42\" = %v (%T), want 42", v, v)
	}
}

func TestCoerceProperty_DeclaredFloat(t *testing.T) {
	v, err := CoerceProperty("speed", "float", "3.5")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != 3.5 {
		t.Errorf("declared float \"3.5\" = %v, want 3.5", v)
	}
}

func TestCoerceProperty_DeclaredNumberMalformed(t *testing.T) {
	_, err := CoerceProperty("count", "int", "many")
	if err == nil {
		t.Fatal("declared int \"many\" parsed, want error")
	}
	assertIs(t, err, ErrParse)
}

func TestCoerceProperty_DeclaredBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"TRUE", false}, // only the exact literal counts
		{"1", false},
	}
	for _, tt := range tests {
		v, err := CoerceProperty("solid", "bool", tt.raw)
		if err != nil {
			t.Fatalf("CoerceProperty(%q): %v", tt.raw, err)
		}
		if v != tt.want {
			t.Errorf("declared bool %q = %v, want %v", tt.raw, v, tt.want)
		}
	}
}

// --- untyped inference ---

func TestCoerceProperty_InferredBool(t *testing.T) {
	v, err := CoerceProperty("flag", "", "true")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != true {
		t.Errorf("untyped \"true\" = %v (%T), want true", v, v)
	}

	v, _ = CoerceProperty("flag", "", "false")
	if v != false {
		t.Errorf("untyped \"false\" = %v, want false", v)
	}
}

func TestCoerceProperty_EmptyValueMarksPresence(t *testing.T) {
	v, err := CoerceProperty("solid", "", "")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != true {
		t.Errorf("untyped empty value = %v, want true", v)
	}
}

func TestCoerceProperty_InferredNumber(t *testing.T) {
	v, err := CoerceProperty("speed", "", "3.14")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != 3.14 {
		t.Errorf("untyped \"3.14\" = %v (%T), want 3.14", v, v)
	}

	v, _ = CoerceProperty("offset", "", "-7")
	if v != -7.0 {
		t.Errorf("untyped \"-7\" = %v, want -7", v)
	}
}

func TestCoerceProperty_JSONPrefix(t *testing.T) {
	v, err := CoerceProperty("loot", "", `json:{"gold": 5, "items": ["sword"]}`)
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	want := map[string]any{"gold": 5.0, "items": []any{"sword"}}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("json: payload mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerceProperty_JSONPrefixMalformed(t *testing.T) {
	_, err := CoerceProperty("loot", "", "json:{broken")
	if err == nil {
		t.Fatal("malformed json: payload parsed, want error")
	}
	assertIs(t, err, ErrParse)
}

func TestCoerceProperty_EvalPrefix(t *testing.T) {
	v, err := CoerceProperty("damage", "", "eval:2+3")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != int64(5) {
		t.Errorf("eval:2+3 = %v (%T), want 5", v, v)
	}
}

func TestCoerceProperty_EvalPrefixMalformed(t *testing.T) {
	_, err := CoerceProperty("damage", "", "eval:)(")
	if err == nil {
		t.Fatal("malformed eval: expression evaluated, want error")
	}
	assertIs(t, err, ErrParse)
}

func TestCoerceProperty_PlainString(t *testing.T) {
	v, err := CoerceProperty("title", "", "Dungeon of Rowan")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != "Dungeon of Rowan" {
		t.Errorf("plain string = %v, want unchanged", v)
	}
}

// --- hex colors ---

func TestCoerceProperty_HexColors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		// Tiled writes colors alpha-first; the canonical form is alpha-last.
		{"#RGB expands with opaque alpha", "#1af", "#11aaffff"},
		{"#ARGB expands and swaps", "#8abc", "#aabbcc88"},
		{"#AARRGGBB swaps", "#80ff0000", "#ff000080"},
		{"#RRGGBB unchanged", "#ff8000", "#ff8000"},
		{"not a color", "#wxyz", "#wxyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := CoerceProperty("backgroundcolor", "", tt.raw)
			if err != nil {
				t.Fatalf("CoerceProperty(%q): %v", tt.raw, err)
			}
			if v != tt.want {
				t.Errorf("CoerceProperty(%q) = %v, want %q", tt.raw, v, tt.want)
			}
		})
	}
}

// --- pair promotion ---

func TestCoerceProperty_RatioPromotesToVec2(t *testing.T) {
	v, err := CoerceProperty("ratio", "", "0.5")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != (Vec2{X: 0.5, Y: 0.5}) {
		t.Errorf("ratio \"0.5\" = %v, want {0.5 0.5}", v)
	}
}

func TestCoerceProperty_AnchorPointPromotesToVec2(t *testing.T) {
	v, err := CoerceProperty("anchorPoint", "", "1")
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != (Vec2{X: 1, Y: 1}) {
		t.Errorf("anchorPoint \"1\" = %v, want {1 1}", v)
	}
}

func TestCoerceProperty_OtherNamesStayScalar(t *testing.T) {
	v, _ := CoerceProperty("scale", "", "0.5")
	if v != 0.5 {
		t.Errorf("scale \"0.5\" = %v (%T), want plain 0.5", v, v)
	}
}

// --- structured passthrough ---

func TestCoerceProperty_NonStringPassesThrough(t *testing.T) {
	v, err := CoerceProperty("count", "int", 4.0)
	if err != nil {
		t.Fatalf("CoerceProperty: %v", err)
	}
	if v != 4.0 {
		t.Errorf("float64 input = %v, want passthrough", v)
	}

	v, _ = CoerceProperty("solid", "", true)
	if v != true {
		t.Errorf("bool input = %v, want passthrough", v)
	}
}

// --- Benchmarks ---

func BenchmarkCoerceProperty_Number(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_, _ = CoerceProperty("speed", "", "3.14")
	}
}

func BenchmarkCoerceProperty_Color(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_, _ = CoerceProperty("color", "", "#80ff0000")
	}
}
