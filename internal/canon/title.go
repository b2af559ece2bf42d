package canon

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titlePaths       = []string{"meta.title", "title", "propertyTitle", "basic.title", "meta.name", "name"}
	descriptionPaths = []string{"meta.description", "description", "propertyDescription", "basic.description", "about"}
)

func storedTitle(details map[string]any) string {
	if t := firstString(details, titlePaths...); t != "" {
		return t
	}
	return stepString(details, "title", "propertyTitle")
}

func storedDescription(details map[string]any) string {
	if d := firstString(details, descriptionPaths...); d != "" {
		return d
	}
	return stepString(details, "description", "propertyDescription")
}

// GenerateTitle builds a card headline for records that never stored one.
func GenerateTitle(rec Record) string {
	place := firstNonEmpty(rec.Locality, rec.City)
	in := ""
	if place != "" {
		in = " in " + place
	}
	switch rec.Flow {
	case ResidentialPGHostel:
		return "PG/Hostel" + in
	case ResidentialFlatmates:
		return "Flatmate Wanted" + in
	case CommercialCoworking:
		return "Coworking Space" + in
	case LandSale:
		return "Plot for Sale" + in
	}
	kind := cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(rec.PropertyType), "_", " "))
	if kind == "" {
		kind = "Property"
		if rec.Flow.Category() == "commercial" {
			kind = "Commercial Space"
		}
	}
	if rec.Flow.Category() == "commercial" && (kind == "Office" || kind == "Shop") {
		kind += " Space"
	}
	head := kind
	if rec.Bedrooms > 0 && rec.Flow.Category() == "residential" {
		head = fmt.Sprintf("%d BHK %s", rec.Bedrooms, kind)
	}
	verb := "Rent"
	if rec.Flow.ListingType() == "sale" {
		verb = "Sale"
	}
	return head + " for " + verb + in
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
