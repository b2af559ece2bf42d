package mapview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/yourorg/property-api/internal/canon"
)

type Marker struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	PriceLabel  string            `json:"price_label"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Flow        canon.Flow        `json:"flow"`
	Source      canon.CoordSource `json:"coord_source"`
	Approximate bool              `json:"approximate"`
	Icon        string            `json:"icon"`
	ImageURL    string            `json:"image_url,omitempty"`
}

// Bounds is a viewport in degrees. West may exceed East when the viewport
// crosses the antimeridian.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

var ErrBadBounds = errors.New("mapview: bounds must be south,west,north,east")

// ParseBounds reads "south,west,north,east".
func ParseBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, ErrBadBounds
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: %v", ErrBadBounds, err)
		}
		v[i] = f
	}
	b := Bounds{South: v[0], West: v[1], North: v[2], East: v[3]}
	if b.South > b.North || b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return Bounds{}, ErrBadBounds
	}
	return b, nil
}

func (b Bounds) Contains(lat, lng float64) bool {
	if lat < b.South || lat > b.North {
		return false
	}
	if b.West <= b.East {
		return lng >= b.West && lng <= b.East
	}
	return lng >= b.West || lng <= b.East
}

type Options struct {
	Bounds *Bounds
	// IncludeFallback plots records without stored coordinates at their
	// placeholder point, flagged approximate.
	IncludeFallback bool
}

// Markers builds map markers for records, in input order.
func Markers(recs []canon.Record, opts Options, icons *IconCache) []Marker {
	out := make([]Marker, 0, len(recs))
	for _, r := range recs {
		approx := !r.Location().Verified()
		if approx && !opts.IncludeFallback {
			continue
		}
		if opts.Bounds != nil && !opts.Bounds.Contains(r.Latitude, r.Longitude) {
			continue
		}
		m := Marker{
			ID:          r.ID,
			Title:       r.Title,
			PriceLabel:  r.PriceLabel,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Flow:        r.Flow,
			Source:      r.CoordSource,
			Approximate: approx,
		}
		if img, ok := canon.PrimaryImage(r.Images); ok {
			m.ImageURL = img.URL
		}
		if icons != nil {
			state := "exact"
			if approx {
				state = "approximate"
			}
			m.Icon = icons.Icon(r.Flow, state)
		}
		out = append(out, m)
	}
	return out
}

// IconCache memoizes marker icon URLs per (flow, state). It is owned by the
// caller; Clear drops every entry.
type IconCache struct {
	BaseURL string
	mu      sync.Mutex
	icons   map[string]string
}

func NewIconCache(baseURL string) *IconCache {
	return &IconCache{BaseURL: strings.TrimRight(baseURL, "/"), icons: map[string]string{}}
}

func (c *IconCache) Icon(flow canon.Flow, state string) string {
	k := string(flow) + "|" + state
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.icons == nil {
		c.icons = map[string]string{}
	}
	if u, ok := c.icons[k]; ok {
		return u
	}
	u := fmt.Sprintf("%s/markers/%s-%s.svg", c.BaseURL, flow.Category(), flow.ListingType())
	if state != "" && state != "exact" {
		u = fmt.Sprintf("%s/markers/%s-%s-%s.svg", c.BaseURL, flow.Category(), flow.ListingType(), state)
	}
	c.icons[k] = u
	return u
}

func (c *IconCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.icons)
}

func (c *IconCache) Clear() {
	c.mu.Lock()
	c.icons = map[string]string{}
	c.mu.Unlock()
}
