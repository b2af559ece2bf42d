package canon

import (
	"math"
	"strings"
)

type CoordSource string

const (
	CoordsFromTable    CoordSource = "coordinates_table"
	CoordsFromLocation CoordSource = "location.coordinates"
	CoordsFromMapPin   CoordSource = "mapCoordinates"
	CoordsFromStep     CoordSource = "steps"
	CoordsFromDocument CoordSource = "document"
	CoordsFromGeocoder CoordSource = "geocoded"
	CoordsFallback     CoordSource = "fallback"
)

// Center is the point fallback coordinates are scattered around.
type Center struct {
	Latitude  float64
	Longitude float64
}

// DefaultCenter is Bengaluru city centre.
var DefaultCenter = Center{Latitude: 12.9716, Longitude: 77.5946}

type Location struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Source    CoordSource `json:"source"`
	Address   string      `json:"address,omitempty"`
	City      string      `json:"city,omitempty"`
	State     string      `json:"state,omitempty"`
}

// Verified reports whether the point came from stored data rather than the
// identifier-derived placeholder.
func (l Location) Verified() bool { return l.Source != CoordsFallback && l.Source != "" }

// ExtractLocation always returns a plottable point. Fallback points carry
// Source == CoordsFallback and must not feed distance computations.
func ExtractLocation(doc Document, center Center) Location {
	loc := Location{
		Address: firstString(doc.Details, addressPaths...),
		City:    firstNonEmpty(doc.City, firstString(doc.Details, cityPaths...)),
		State:   firstNonEmpty(doc.State, firstString(doc.Details, statePaths...)),
	}
	for _, tier := range coordTiers {
		if lat, lng, ok := tier.extract(doc); ok {
			loc.Latitude, loc.Longitude, loc.Source = lat, lng, tier.source
			if loc.Source == CoordsFromTable && doc.Coordinates.Source == string(CoordsFromGeocoder) {
				loc.Source = CoordsFromGeocoder
			}
			return loc
		}
	}
	loc.Latitude, loc.Longitude = FallbackPoint(doc.ID, center)
	loc.Source = CoordsFallback
	return loc
}

var coordTiers = []struct {
	source  CoordSource
	extract func(Document) (float64, float64, bool)
}{
	{CoordsFromTable, coordsFromTable},
	{CoordsFromLocation, func(d Document) (float64, float64, bool) {
		return pairAt(LookupMap(d.Details, "location.coordinates"))
	}},
	{CoordsFromMapPin, func(d Document) (float64, float64, bool) {
		return pairAt(LookupMap(d.Details, "mapCoordinates"))
	}},
	{CoordsFromStep, coordsFromSteps},
	{CoordsFromDocument, func(d Document) (float64, float64, bool) {
		return pairAt(d.Details)
	}},
}

func coordsFromTable(d Document) (float64, float64, bool) {
	if d.Coordinates == nil {
		return 0, 0, false
	}
	return validPair(d.Coordinates.Latitude, d.Coordinates.Longitude)
}

func coordsFromSteps(d Document) (float64, float64, bool) {
	keys, m := steps(d.Details)
	for _, k := range keys {
		if !strings.Contains(strings.ToLower(k), "location") {
			continue
		}
		step, ok := m[k].(map[string]any)
		if !ok {
			continue
		}
		if lat, lng, ok := pairAt(step); ok {
			return lat, lng, true
		}
		if lat, lng, ok := pairAt(LookupMap(step, "coordinates")); ok {
			return lat, lng, true
		}
	}
	return 0, 0, false
}

// pairAt reads {lat,lng} or {latitude,longitude} from obj.
func pairAt(obj map[string]any) (float64, float64, bool) {
	if obj == nil {
		return 0, 0, false
	}
	for _, keys := range [][2]string{{"lat", "lng"}, {"latitude", "longitude"}, {"lat", "lon"}} {
		lv, lok := obj[keys[0]]
		gv, gok := obj[keys[1]]
		if !lok || !gok {
			continue
		}
		lat := Amount(lv, math.NaN())
		lng := Amount(gv, math.NaN())
		if la, ln, ok := validPair(lat, lng); ok {
			return la, ln, true
		}
	}
	return 0, 0, false
}

func validPair(lat, lng float64) (float64, float64, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return 0, 0, false
	}
	if lat == 0 || lng == 0 {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// FallbackPoint derives a stable offset (within ±0.01°) from the identifier.
func FallbackPoint(id string, center Center) (float64, float64) {
	sum := 0
	for _, r := range id {
		sum += int(r)
	}
	h := sum % 200
	latOff := (float64(h) - 100) / 10000
	lngOff := (float64((h*7)%200) - 100) / 10000
	return center.Latitude + latOff, center.Longitude + lngOff
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance, refusing unverified points.
func HaversineKm(a, b Location) (float64, bool) {
	if !a.Verified() || !b.Verified() {
		return 0, false
	}
	rad := math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * rad
	dLng := (b.Longitude - a.Longitude) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*rad)*math.Cos(b.Latitude*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h)), true
}
