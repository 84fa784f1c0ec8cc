package rowan

import (
	"context"
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// Script is a compiled tengo program, produced by the loader's script
// resource kind. The compile is cached; each Run executes an independent
// clone, so one Script can serve concurrent callers.
type Script struct {
	Name     string
	compiled *tengo.Compiled
}

func compileScript(name string, src []byte) (*Script, error) {
	sc := tengo.NewScript(src)
	sc.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	compiled, err := sc.Compile()
	if err != nil {
		return nil, fmt.Errorf("%w: script %q: %v", ErrParse, name, err)
	}
	return &Script{Name: name, compiled: compiled}, nil
}

// Compiled returns an independent clone of the compiled program, ready for
// tengo's Set/Run/Get cycle. The cached compile is never mutated.
func (s *Script) Compiled() *tengo.Compiled {
	return s.compiled.Clone()
}

// Run executes a fresh clone of the program and returns the final values of
// the requested globals, converted to native Go types.
func (s *Script) Run(ctx context.Context, globals ...string) (map[string]any, error) {
	c := s.compiled.Clone()
	if err := c.RunContext(ctx); err != nil {
		return nil, fmt.Errorf("rowan: script %q: %w", s.Name, err)
	}
	out := make(map[string]any, len(globals))
	for _, g := range globals {
		out[g] = c.Get(g).Value()
	}
	return out, nil
}

// EvalExpr evaluates a single expression with the tengo runtime and returns
// its value as a native Go type. This backs "eval:" property values; the
// expression runs sandboxed, with no host bindings.
func EvalExpr(expr string) (any, error) {
	v, err := tengo.Eval(context.Background(), expr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: eval %q: %v", ErrParse, expr, err)
	}
	return v, nil
}
