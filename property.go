package rowan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Custom property coercion, shared by both map serializations. Structured
// (JSON) documents already carry typed values, so non-string inputs pass
// through untouched; everything below concerns the string values found in
// markup attributes and property elements.

// Tiled stores colors alpha-first (#AARRGGBB); the canonical form is
// alpha-last (#RRGGBBAA). Shorthand forms expand to the full eight digits,
// with "ff" appended when no alpha nibble is present.
var (
	hexRGB      = regexp.MustCompile(`^#([0-9a-fA-F]{3})$`)
	hexARGB     = regexp.MustCompile(`^#([0-9a-fA-F])([0-9a-fA-F]{3})$`)
	hexAARRGGBB = regexp.MustCompile(`^#([0-9a-fA-F]{2})([0-9a-fA-F]{6})$`)
)

// CoerceProperty normalizes one property value. The declared type wins when
// it is "int", "float", or "bool"; any other declaration (including none)
// infers the value from its shape: booleans, numbers, "json:"-prefixed JSON
// payloads, "eval:"-prefixed expressions (see [EvalExpr]), and alpha-first
// hex colors. Values named "ratio" or "anchorPoint" promote a bare number to
// a [Vec2] so callers always see a pair.
//
// Numbers coerce to float64 regardless of declared type, matching what
// encoding/json produces for the structured path.
func CoerceProperty(name, declaredType string, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}

	switch declaredType {
	case "int", "float":
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: property %q: %q is not a number", ErrParse, name, s)
		}
		return v, nil

	case "bool":
		return s == "true", nil
	}

	var out any = s
	switch {
	case s == "" || s == "true" || s == "false":
		// An empty value marks presence (e.g. <property name="solid"/>).
		out = s != "false"

	case isNumeric(s):
		out, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)

	case hasFoldPrefix(s, "json:"):
		var v any
		if err := json.Unmarshal([]byte(s[len("json:"):]), &v); err != nil {
			return nil, fmt.Errorf("%w: property %q: embedded JSON: %v", ErrParse, name, err)
		}
		out = v

	case hasFoldPrefix(s, "eval:"):
		v, err := EvalExpr(s[len("eval:"):])
		if err != nil {
			return nil, err
		}
		out = v

	default:
		if m := hexARGB.FindStringSubmatch(s); m != nil {
			out = "#" + doubleNibbles(m[2]) + doubleNibbles(m[1])
		} else if m := hexRGB.FindStringSubmatch(s); m != nil {
			out = "#" + doubleNibbles(m[1]) + "ff"
		} else if m := hexAARRGGBB.FindStringSubmatch(s); m != nil {
			out = "#" + m[2] + m[1]
		}
	}

	if name == "ratio" || name == "anchorPoint" {
		if v, ok := out.(float64); ok {
			out = Vec2{X: v, Y: v}
		}
	}
	return out, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// doubleNibbles widens each hex digit to a pair ("1af" becomes "11aaff").
func doubleNibbles(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, c := range s {
		b.WriteRune(c)
		b.WriteRune(c)
	}
	return b.String()
}

// hasFoldPrefix reports whether s starts with the prefix, case-insensitively.
func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
