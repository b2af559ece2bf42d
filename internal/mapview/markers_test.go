package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/property-api/internal/canon"
)

func records() []canon.Record {
	return []canon.Record{
		{ID: "exact", Title: "2 BHK", Latitude: 12.97, Longitude: 77.59, CoordSource: canon.CoordsFromTable, Flow: canon.ResidentialRent,
			Images: []canon.Image{{ID: "a", URL: "https://cdn/a.jpg"}, {ID: "b", URL: "https://cdn/b.jpg", IsPrimary: true}}},
		{ID: "approx", Latitude: 12.9716, Longitude: 77.5946, CoordSource: canon.CoordsFallback, Flow: canon.LandSale},
		{ID: "far", Latitude: 19.07, Longitude: 72.87, CoordSource: canon.CoordsFromLocation, Flow: canon.CommercialRent},
	}
}

func TestMarkersSuppressFallbackByDefault(t *testing.T) {
	icons := NewIconCache("https://static.example.com/")
	got := Markers(records(), Options{}, icons)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ID)
	assert.False(t, got[0].Approximate)
	assert.Equal(t, "https://cdn/b.jpg", got[0].ImageURL)
	assert.Equal(t, "https://static.example.com/markers/residential-rent.svg", got[0].Icon)
}

func TestMarkersIncludeFallbackWithinBounds(t *testing.T) {
	b, err := ParseBounds("12.8,77.4,13.1,77.8")
	require.NoError(t, err)
	got := Markers(records(), Options{Bounds: &b, IncludeFallback: true}, NewIconCache(""))
	require.Len(t, got, 2)
	assert.Equal(t, "approx", got[1].ID)
	assert.True(t, got[1].Approximate)
	assert.Equal(t, "/markers/land-sale-approximate.svg", got[1].Icon)
}

func TestParseBounds(t *testing.T) {
	_, err := ParseBounds("1,2,3")
	assert.ErrorIs(t, err, ErrBadBounds)
	_, err = ParseBounds("a,b,c,d")
	assert.ErrorIs(t, err, ErrBadBounds)
	_, err = ParseBounds("20,0,10,5")
	assert.ErrorIs(t, err, ErrBadBounds)

	b, err := ParseBounds("-10, 170, 10, -170")
	require.NoError(t, err)
	assert.True(t, b.Contains(0, 175))
	assert.True(t, b.Contains(0, -175))
	assert.False(t, b.Contains(0, 0))
}

func TestIconCacheClear(t *testing.T) {
	c := NewIconCache("")
	first := c.Icon(canon.ResidentialPGHostel, "exact")
	assert.Equal(t, first, c.Icon(canon.ResidentialPGHostel, "exact"))
	c.Icon(canon.ResidentialPGHostel, "approximate")
	assert.Equal(t, 2, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
