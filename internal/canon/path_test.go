package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupMissingPathsReturnDefault(t *testing.T) {
	doc := map[string]any{
		"meta":  map[string]any{"title": "Sunny 2BHK"},
		"steps": map[string]any{"res_rent_location": nil},
		"list":  []any{"a", map[string]any{"b": "c"}},
		"leaf":  "text",
	}
	cases := []string{
		"missing",
		"meta.missing",
		"meta.title.deeper",
		"steps.res_rent_location.lat",
		"list.9",
		"list.x",
		"leaf.child",
		"",
	}
	for _, p := range cases {
		t.Run(p, func(t *testing.T) {
			if p == "" {
				assert.Equal(t, "fallback", Lookup(nil, p, "fallback"))
				return
			}
			assert.Equal(t, "fallback", Lookup(doc, p, "fallback"))
		})
	}
}

func TestLookupFindsNestedValues(t *testing.T) {
	doc := map[string]any{
		"meta": map[string]any{"title": "  Sunny 2BHK "},
		"list": []any{"a", map[string]any{"b": "c"}},
		"n":    float64(3),
	}
	assert.Equal(t, "Sunny 2BHK", LookupString(doc, "meta.title"))
	assert.Equal(t, "c", LookupString(doc, "list.1.b"))
	assert.Equal(t, "3", LookupString(doc, "n"))
	assert.Len(t, LookupSlice(doc, "list"), 2)
	assert.NotNil(t, LookupMap(doc, "meta"))
	assert.Nil(t, LookupMap(doc, "meta.title"))
}

func TestLookupToleratesNilDocument(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t, 7, Lookup(nil, "a.b.c", 7))
		assert.Equal(t, "", LookupString(nil, "a"))
		assert.Equal(t, 1.5, LookupAmount(nil, "a", 1.5))
	})
}
