package canon

import "time"

// CoordinateRow is the dedicated coordinates relation for a property, when one exists.
type CoordinateRow struct {
	Latitude  float64
	Longitude float64
	Source    string
}

// Document is a raw property row as stored by the backend. Nothing in it is
// guaranteed to be present.
type Document struct {
	ID          string
	OwnerID     string
	Price       any
	City        string
	State       string
	FlowType    string
	CreatedAt   time.Time
	Details     map[string]any
	Coordinates *CoordinateRow
}

// priceScope is what the last-resort price scan may walk: the price column
// and the payload. Identifier and text columns stay out.
func (d Document) priceScope() map[string]any {
	m := map[string]any{}
	if d.Price != nil {
		m["price"] = d.Price
	}
	if d.Details != nil {
		m["property_details"] = d.Details
	}
	return m
}

// Shape identifies which generation of property_details a payload belongs to.
type Shape string

const (
	ShapeUnknown Shape = "unknown"
	ShapeLegacy  Shape = "legacy"
	ShapeV2      Shape = "v2"
)

var legacyMarkers = []string{"title", "price", "category", "listingType", "propertyType", "images", "location", "bedrooms", "description"}

func DetectShape(details map[string]any) Shape {
	if len(details) == 0 {
		return ShapeUnknown
	}
	for _, k := range []string{"meta", "flow", "steps", "media"} {
		if _, ok := details[k].(map[string]any); ok {
			return ShapeV2
		}
	}
	for _, k := range legacyMarkers {
		if _, ok := details[k]; ok {
			return ShapeLegacy
		}
	}
	return ShapeUnknown
}

// steps returns the v2 steps map in a deterministic key order.
func steps(details map[string]any) ([]string, map[string]any) {
	m := LookupMap(details, "steps")
	if len(m) == 0 {
		return nil, nil
	}
	return sortedKeys(m), m
}
