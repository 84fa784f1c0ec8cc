package rowan

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompileScriptAndRun(t *testing.T) {
	src := []byte(`speed := 4.5
names := ["elm", "oak"]`)
	sc, err := compileScript("spawn", src)
	if err != nil {
		t.Fatalf("compileScript: %v", err)
	}
	if sc.Name != "spawn" {
		t.Errorf("name = %q, want %q", sc.Name, "spawn")
	}

	out, err := sc.Run(context.Background(), "speed", "names")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out["speed"] != 4.5 {
		t.Errorf("speed = %v, want 4.5", out["speed"])
	}
	if diff := cmp.Diff([]any{"elm", "oak"}, out["names"]); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileScriptError(t *testing.T) {
	_, err := compileScript("broken", []byte("func ("))
	assertIs(t, err, ErrParse)
}

func TestScriptRunsAreIndependent(t *testing.T) {
	sc, err := compileScript("tick", []byte(`count := 0
count++`))
	if err != nil {
		t.Fatalf("compileScript: %v", err)
	}

	for i := 0; i < 2; i++ {
		out, err := sc.Run(context.Background(), "count")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if out["count"] != int64(1) {
			t.Errorf("run %d: count = %v, want 1", i, out["count"])
		}
	}
}

func TestScriptCompiled(t *testing.T) {
	sc, err := compileScript("calc", []byte(`limit := 10
doubled := limit * 2`))
	if err != nil {
		t.Fatalf("compileScript: %v", err)
	}

	c := sc.Compiled()
	if err := c.RunContext(context.Background()); err != nil {
		t.Fatalf("RunContext: %v", err)
	}
	if got := c.Get("doubled").Int(); got != 20 {
		t.Errorf("doubled = %d, want 20", got)
	}
}

func TestEvalExpr(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want any
	}{
		{"arithmetic", "1 + 2", int64(3)},
		{"strings", `"til" + "ed"`, "tiled"},
		{"comparison", "3 > 2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalExpr(tt.expr)
			if err != nil {
				t.Fatalf("EvalExpr(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("EvalExpr(%q) = %v (%T), want %v (%T)", tt.expr, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestEvalExprError(t *testing.T) {
	_, err := EvalExpr("1 +")
	assertIs(t, err, ErrParse)
}
