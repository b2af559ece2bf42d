package maps

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// MapGeocodePayload maps a geocode response to its first result. Provider
// status strings decide between quota, empty and hard failures.
func MapGeocodePayload(raw []byte) (Result, error) {
	type component struct {
		LongName  string   `json:"long_name"`
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	}
	type gResult struct {
		FormattedAddress string      `json:"formatted_address"`
		Components       []component `json:"address_components"`
		Geometry         struct {
			Location struct {
				Lat flexFloat `json:"lat"`
				Lng flexFloat `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Partial bool `json:"partial_match"`
	}
	var root struct {
		Status  string    `json:"status"`
		Error   string    `json:"error_message"`
		Results []gResult `json:"results"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return Result{}, err
	}
	switch strings.ToUpper(root.Status) {
	case "", "OK":
	case "ZERO_RESULTS":
		return Result{}, ErrNoResults
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return Result{}, ErrQuotaExceeded
	default:
		return Result{}, fmt.Errorf("maps status %s: %s", root.Status, root.Error)
	}
	for _, r := range root.Results {
		lat, lng := float64(r.Geometry.Location.Lat), float64(r.Geometry.Location.Lng)
		if lat == 0 && lng == 0 {
			continue
		}
		out := Result{Lat: lat, Lng: lng, FormattedAddress: r.FormattedAddress, Partial: r.Partial}
		for _, c := range r.Components {
			switch {
			case hasType(c.Types, "sublocality_level_1"), hasType(c.Types, "sublocality") && out.Locality == "":
				out.Locality = c.LongName
			case hasType(c.Types, "locality"):
				out.City = c.LongName
			case hasType(c.Types, "administrative_area_level_1"):
				out.State = c.LongName
			case hasType(c.Types, "postal_code"):
				out.PostalCode = c.LongName
			}
		}
		return out, nil
	}
	return Result{}, ErrNoResults
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
