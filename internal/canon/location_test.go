package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLocationTiers(t *testing.T) {
	cases := []struct {
		name   string
		doc    Document
		lat    float64
		lng    float64
		source CoordSource
	}{
		{
			name:   "coordinates table",
			doc:    Document{Coordinates: &CoordinateRow{Latitude: 12.93, Longitude: 77.62}, Details: map[string]any{"location": map[string]any{"coordinates": map[string]any{"lat": 1.0, "lng": 1.0}}}},
			lat:    12.93, lng: 77.62, source: CoordsFromTable,
		},
		{
			name:   "location.coordinates lat/lng",
			doc:    Document{Details: map[string]any{"location": map[string]any{"coordinates": map[string]any{"lat": 19.07, "lng": 72.87}}}},
			lat:    19.07, lng: 72.87, source: CoordsFromLocation,
		},
		{
			name:   "location.coordinates latitude/longitude strings",
			doc:    Document{Details: map[string]any{"location": map[string]any{"coordinates": map[string]any{"latitude": "28.61", "longitude": "77.20"}}}},
			lat:    28.61, lng: 77.20, source: CoordsFromLocation,
		},
		{
			name:   "mapCoordinates",
			doc:    Document{Details: map[string]any{"mapCoordinates": map[string]any{"lat": 17.38, "lng": 78.48}}},
			lat:    17.38, lng: 78.48, source: CoordsFromMapPin,
		},
		{
			name: "location step",
			doc: Document{Details: map[string]any{"steps": map[string]any{
				"res_rent_basic":    map[string]any{"latitude": 5.0, "longitude": 5.0},
				"res_rent_location": map[string]any{"latitude": 13.08, "longitude": 80.27, "city": "Chennai"},
			}}},
			lat: 13.08, lng: 80.27, source: CoordsFromStep,
		},
		{
			name: "location step nested coordinates",
			doc: Document{Details: map[string]any{"steps": map[string]any{
				"com_rent_location_details": map[string]any{"coordinates": map[string]any{"lat": 18.52, "lng": 73.85}},
			}}},
			lat: 18.52, lng: 73.85, source: CoordsFromStep,
		},
		{
			name:   "direct fields",
			doc:    Document{Details: map[string]any{"latitude": 22.57, "longitude": 88.36}},
			lat:    22.57, lng: 88.36, source: CoordsFromDocument,
		},
		{
			name: "out of range latitude falls to next tier",
			doc: Document{Details: map[string]any{
				"location":       map[string]any{"coordinates": map[string]any{"lat": 91.0, "lng": 77.0}},
				"mapCoordinates": map[string]any{"lat": 12.5, "lng": 76.6},
			}},
			lat: 12.5, lng: 76.6, source: CoordsFromMapPin,
		},
		{
			name:   "zero pair is not a location",
			doc:    Document{Details: map[string]any{"latitude": 0.0, "longitude": 0.0, "mapCoordinates": map[string]any{"lat": 9.93, "lng": 76.26}}},
			lat:    9.93, lng: 76.26, source: CoordsFromMapPin,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractLocation(tc.doc, DefaultCenter)
			assert.Equal(t, tc.source, got.Source)
			assert.InDelta(t, tc.lat, got.Latitude, 1e-9)
			assert.InDelta(t, tc.lng, got.Longitude, 1e-9)
			assert.True(t, got.Verified())
		})
	}
}

func TestExtractLocationGeocodedRow(t *testing.T) {
	doc := Document{Coordinates: &CoordinateRow{Latitude: 12.9, Longitude: 77.6, Source: string(CoordsFromGeocoder)}}
	got := ExtractLocation(doc, DefaultCenter)
	assert.Equal(t, CoordsFromGeocoder, got.Source)
	assert.True(t, got.Verified())
}

func TestExtractLocationFallbackIsDeterministic(t *testing.T) {
	doc := Document{ID: "abc123", Details: map[string]any{}}
	first := ExtractLocation(doc, DefaultCenter)
	for i := 0; i < 5; i++ {
		again := ExtractLocation(doc, DefaultCenter)
		assert.Equal(t, first.Latitude, again.Latitude)
		assert.Equal(t, first.Longitude, again.Longitude)
	}
	assert.Equal(t, CoordsFallback, first.Source)
	assert.False(t, first.Verified())
	assert.InDelta(t, DefaultCenter.Latitude, first.Latitude, 0.0101)
	assert.InDelta(t, DefaultCenter.Longitude, first.Longitude, 0.0101)

	// "abc123" sums to 444; 444 % 200 = 44.
	assert.InDelta(t, DefaultCenter.Latitude-0.0056, first.Latitude, 1e-9)
	assert.InDelta(t, DefaultCenter.Longitude+0.0008, first.Longitude, 1e-9)

	other := ExtractLocation(Document{ID: "xyz999"}, DefaultCenter)
	assert.NotEqual(t, first.Latitude, other.Latitude)
}

func TestExtractLocationCarriesAddress(t *testing.T) {
	doc := Document{
		City: "Bengaluru",
		Details: map[string]any{
			"location": map[string]any{"address": "12, 5th Cross, Indiranagar", "state": "Karnataka"},
		},
	}
	got := ExtractLocation(doc, DefaultCenter)
	assert.Equal(t, "12, 5th Cross, Indiranagar", got.Address)
	assert.Equal(t, "Bengaluru", got.City)
	assert.Equal(t, "Karnataka", got.State)
}

func TestHaversineRefusesFallback(t *testing.T) {
	a := Location{Latitude: 12.9716, Longitude: 77.5946, Source: CoordsFromTable}
	b := Location{Latitude: 13.0827, Longitude: 80.2707, Source: CoordsFromLocation}
	d, ok := HaversineKm(a, b)
	require.True(t, ok)
	assert.InDelta(t, 290, d, 5)

	b.Source = CoordsFallback
	_, ok = HaversineKm(a, b)
	assert.False(t, ok)
}
