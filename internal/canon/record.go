package canon

import (
	"math"
	"time"
)

// Record is the flattened, best-effort view every listing surface renders.
type Record struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Price        float64        `json:"price"`
	PriceLabel   string         `json:"price_label"`
	PriceSource  PriceSource    `json:"price_source,omitempty"`
	Bedrooms     int            `json:"bedrooms"`
	Bathrooms    int            `json:"bathrooms"`
	Area         float64        `json:"area"`
	Address      string         `json:"address,omitempty"`
	Locality     string         `json:"locality,omitempty"`
	City         string         `json:"city,omitempty"`
	State        string         `json:"state,omitempty"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	CoordSource  CoordSource    `json:"coord_source"`
	PropertyType string         `json:"property_type,omitempty"`
	ListingType  string         `json:"listing_type"`
	Flow         Flow           `json:"flow"`
	FlowSource   FlowSource     `json:"flow_source"`
	Shape        Shape          `json:"shape"`
	Images       []Image        `json:"images"`
	CreatedAt    time.Time      `json:"created_at"`
	Details      map[string]any `json:"property_details,omitempty"`
}

// Location returns the record's point with its provenance.
func (r Record) Location() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude, Source: r.CoordSource, Address: r.Address, City: r.City, State: r.State}
}

type Options struct {
	Center Center
	URLs   URLResolver
	// OmitDetails drops the raw payload from the record (list views).
	OmitDetails bool
}

var (
	bedroomPaths  = []string{"bedrooms", "bhk", "bedroomCount", "meta.bedrooms", "basic.bedrooms", "propertyDetails.bedrooms"}
	bathroomPaths = []string{"bathrooms", "bathroomCount", "meta.bathrooms", "basic.bathrooms", "propertyDetails.bathrooms"}
	areaPaths     = []string{"area", "builtUpArea", "carpetArea", "superBuiltUpArea", "plotArea", "size", "meta.area", "propertyDetails.builtUpArea"}
	addressPaths  = []string{"location.address", "address", "meta.address", "locationDetails.address", "fullAddress"}
	localityPaths = []string{"location.locality", "locality", "location.area", "meta.locality"}
	cityPaths     = []string{"location.city", "city", "meta.city", "locationDetails.city"}
	statePaths    = []string{"location.state", "state", "meta.state", "locationDetails.state"}
	propTypePaths = []string{"propertyType", "property_type", "flow.propertyType", "meta.propertyType", "basic.propertyType"}
)

// Normalize turns a raw document into a canonical record in one synchronous
// pass. It never fails; missing data degrades to zero values.
func Normalize(doc Document, opts Options) Record {
	if opts.Center == (Center{}) {
		opts.Center = DefaultCenter
	}
	d := doc.Details
	rec := Record{
		ID:          doc.ID,
		OwnerID:     doc.OwnerID,
		Title:       storedTitle(d),
		Description: storedDescription(d),
		Bedrooms:    int(math.Round(fieldAmount(d, bedroomPaths, "bedrooms", "bhk"))),
		Bathrooms:   int(math.Round(fieldAmount(d, bathroomPaths, "bathrooms"))),
		Area:        fieldAmount(d, areaPaths, "builtUpArea", "carpetArea", "area", "plotArea"),
		Locality:    firstNonEmpty(firstString(d, localityPaths...), stepString(d, "locality")),
		Shape:       DetectShape(d),
		CreatedAt:   doc.CreatedAt,
	}
	rec.PropertyType = firstNonEmpty(firstString(d, propTypePaths...), stepString(d, "propertyType", "property_type"))

	rec.Price, rec.PriceSource = ResolvePrice(doc)
	rec.PriceLabel = FormatINR(rec.Price)

	cls := Classify(doc)
	rec.Flow, rec.FlowSource = cls.Flow, cls.Source
	rec.ListingType = rec.Flow.ListingType()

	loc := ExtractLocation(doc, opts.Center)
	rec.Latitude, rec.Longitude, rec.CoordSource = loc.Latitude, loc.Longitude, loc.Source
	rec.Address = firstNonEmpty(loc.Address, stepString(d, "address"))
	rec.City = firstNonEmpty(loc.City, stepString(d, "city"))
	rec.State = firstNonEmpty(loc.State, stepString(d, "state"))

	rec.Images = ExtractImages(doc, opts.URLs)

	if rec.Title == "" {
		rec.Title = GenerateTitle(rec)
	}
	if !opts.OmitDetails {
		rec.Details = d
	}
	return rec
}

// NormalizeAll normalizes a page of documents, preserving order.
func NormalizeAll(docs []Document, opts Options) []Record {
	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Normalize(doc, opts))
	}
	return out
}

func fieldAmount(details map[string]any, paths []string, stepKeys ...string) float64 {
	if f := firstAmount(details, paths...); f > 0 {
		return f
	}
	return stepAmount(details, stepKeys...)
}

// stepString looks for the first step (in key order) carrying one of keys.
func stepString(details map[string]any, keys ...string) string {
	names, m := steps(details)
	for _, n := range names {
		for _, k := range keys {
			if s := LookupString(m[n], k); s != "" {
				return s
			}
		}
	}
	return ""
}

func stepAmount(details map[string]any, keys ...string) float64 {
	names, m := steps(details)
	for _, n := range names {
		for _, k := range keys {
			if f := LookupAmount(m[n], k, 0); f > 0 {
				return f
			}
		}
	}
	return 0
}
