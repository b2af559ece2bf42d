package canon

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Lookup walks a dot-separated path through nested maps (and slices, for
// numeric segments) and returns def when any segment is absent or nil.
func Lookup(doc any, path string, def any) any {
	if path == "" {
		if doc == nil {
			return def
		}
		return doc
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok || v == nil {
				return def
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return def
			}
			if node[i] == nil {
				return def
			}
			cur = node[i]
		case nil:
			return def
		default:
			log.Debug().Str("path", path).Str("segment", part).Msgf("canon: cannot descend into %T", cur)
			return def
		}
	}
	return cur
}

func LookupString(doc any, path string) string {
	switch v := Lookup(doc, path, nil).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func LookupMap(doc any, path string) map[string]any {
	m, _ := Lookup(doc, path, nil).(map[string]any)
	return m
}

func LookupSlice(doc any, path string) []any {
	s, _ := Lookup(doc, path, nil).([]any)
	return s
}

// LookupAmount coerces the value at path, returning def when absent or non-numeric.
func LookupAmount(doc any, path string, def float64) float64 {
	v := Lookup(doc, path, nil)
	if v == nil {
		return def
	}
	return Amount(v, def)
}

// firstString returns the first non-empty string among paths.
func firstString(doc any, paths ...string) string {
	for _, p := range paths {
		if s := LookupString(doc, p); s != "" {
			return s
		}
	}
	return ""
}

// firstAmount returns the first positive amount among paths, or 0.
func firstAmount(doc any, paths ...string) float64 {
	for _, p := range paths {
		if f := LookupAmount(doc, p, 0); f > 0 {
			return f
		}
	}
	return 0
}
