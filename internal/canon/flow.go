package canon

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Flow is the kind of transaction a listing represents.
type Flow string

const (
	ResidentialRent      Flow = "residential_rent"
	ResidentialSale      Flow = "residential_sale"
	ResidentialFlatmates Flow = "residential_flatmates"
	ResidentialPGHostel  Flow = "residential_pghostel"
	CommercialRent       Flow = "commercial_rent"
	CommercialSale       Flow = "commercial_sale"
	CommercialCoworking  Flow = "commercial_coworking"
	LandSale             Flow = "land_sale"
)

// DefaultFlow is applied when no evidence is found at all.
const DefaultFlow = ResidentialRent

var Flows = []Flow{
	ResidentialRent, ResidentialSale, ResidentialFlatmates, ResidentialPGHostel,
	CommercialRent, CommercialSale, CommercialCoworking, LandSale,
}

func ParseFlow(s string) (Flow, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range Flows {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

func (f Flow) Category() string {
	switch {
	case strings.HasPrefix(string(f), "commercial_"):
		return "commercial"
	case f == LandSale:
		return "land"
	}
	return "residential"
}

func (f Flow) ListingType() string {
	if strings.HasSuffix(string(f), "_sale") {
		return "sale"
	}
	return "rent"
}

func (f Flow) Label() string {
	switch f {
	case ResidentialRent:
		return "Residential Rent"
	case ResidentialSale:
		return "Residential Sale"
	case ResidentialFlatmates:
		return "Flatmates"
	case ResidentialPGHostel:
		return "PG/Hostel"
	case CommercialRent:
		return "Commercial Rent"
	case CommercialSale:
		return "Commercial Sale"
	case CommercialCoworking:
		return "Coworking"
	case LandSale:
		return "Land/Plot Sale"
	}
	return string(f)
}

type FlowSource string

const (
	FlowFromRootTag    FlowSource = "root_tag"
	FlowFromPayloadTag FlowSource = "payload_tag"
	FlowFromStepKeys   FlowSource = "step_keys"
	FlowFromLegacy     FlowSource = "legacy_fields"
	FlowFromKeywords   FlowSource = "keywords"
	FlowFromDefault    FlowSource = "default"
)

type Classification struct {
	Flow   Flow       `json:"flow"`
	Source FlowSource `json:"source"`
}

// Classify assigns a flow, taking the first tier that yields evidence. When
// nothing matches the result is DefaultFlow with Source "default", so callers
// can tell a guess from a finding.
func Classify(doc Document) Classification {
	for _, tier := range flowTiers {
		if f, ok := tier.detect(doc); ok {
			return Classification{Flow: f, Source: tier.source}
		}
	}
	return Classification{Flow: DefaultFlow, Source: FlowFromDefault}
}

var flowTiers = []struct {
	source FlowSource
	detect func(Document) (Flow, bool)
}{
	{FlowFromRootTag, flowFromRootTag},
	{FlowFromPayloadTag, flowFromPayloadTag},
	{FlowFromStepKeys, flowFromStepKeys},
	{FlowFromLegacy, flowFromLegacyFields},
	{FlowFromKeywords, flowFromKeywords},
}

func flowFromRootTag(doc Document) (Flow, bool) {
	if f, ok := ParseFlow(doc.FlowType); ok {
		return f, true
	}
	return ParseFlow(firstString(doc.Details, "flow_type", "flowType"))
}

func flowFromPayloadTag(doc Document) (Flow, bool) {
	for _, p := range []string{"flow.flowType", "flow.flow_type", "flow.type", "meta.flowType", "meta.flow_type"} {
		if f, ok := ParseFlow(LookupString(doc.Details, p)); ok {
			return f, true
		}
	}
	return "", false
}

// stepPatterns is checked in order; the more specific fragments come first.
var stepPatterns = []struct {
	fragment string
	flow     Flow
}{
	{"res_flat", ResidentialFlatmates},
	{"flatmate", ResidentialFlatmates},
	{"res_pg", ResidentialPGHostel},
	{"pghostel", ResidentialPGHostel},
	{"pg_hostel", ResidentialPGHostel},
	{"res_rent", ResidentialRent},
	{"res_sale", ResidentialSale},
	{"com_cow", CommercialCoworking},
	{"coworking", CommercialCoworking},
	{"com_rent", CommercialRent},
	{"com_sale", CommercialSale},
	{"land_sale", LandSale},
	{"land_", LandSale},
}

func flowFromStepKeys(doc Document) (Flow, bool) {
	keys, _ := steps(doc.Details)
	for _, p := range stepPatterns {
		for _, k := range keys {
			if strings.Contains(strings.ToLower(k), p.fragment) {
				return p.flow, true
			}
		}
	}
	return "", false
}

func flowFromLegacyFields(doc Document) (Flow, bool) {
	for _, base := range []string{"flow", ""} {
		var obj map[string]any
		if base == "" {
			obj = doc.Details
		} else {
			obj = LookupMap(doc.Details, base)
		}
		if f, ok := detectLegacy(
			strings.ToLower(LookupString(obj, "category")),
			strings.ToLower(LookupString(obj, "listingType")),
			strings.ToLower(firstString(obj, "propertyType", "property_type")),
		); ok {
			return f, true
		}
	}
	return "", false
}

func detectLegacy(category, listing, propType string) (Flow, bool) {
	if category == "" && listing == "" && propType == "" {
		return "", false
	}
	all := []string{category, listing, propType}
	sale := isSale(listing)
	switch {
	case anyEquals(all, "pg", "hostel", "pghostel", "pg_hostel", "pg/hostel") || anyContains(all, "hostel", "paying guest"):
		return ResidentialPGHostel, true
	case anyContains(all, "flatmate", "roommate", "flat_mate", "flatmates"):
		return ResidentialFlatmates, true
	case anyContains(all, "coworking", "co-working", "co_working"):
		return CommercialCoworking, true
	case anyEquals(all, "land", "plot") || anyContains(all, "land", "plot"):
		return LandSale, true
	case anyContains(all, "commercial", "office", "shop", "retail", "warehouse", "showroom"):
		if sale {
			return CommercialSale, true
		}
		return CommercialRent, true
	}
	if sale {
		return ResidentialSale, true
	}
	if isRent(listing) || anyContains(all, "residential", "apartment", "villa", "house", "flat") {
		return ResidentialRent, true
	}
	return "", false
}

func isSale(s string) bool {
	switch s {
	case "sale", "sell", "buy", "resale":
		return true
	}
	return strings.Contains(s, "sale") || strings.Contains(s, "sell")
}

func isRent(s string) bool {
	switch s {
	case "rent", "lease", "rental":
		return true
	}
	return strings.Contains(s, "rent") || strings.Contains(s, "lease")
}

func anyEquals(vals []string, want ...string) bool {
	for _, v := range vals {
		for _, w := range want {
			if v == w {
				return true
			}
		}
	}
	return false
}

func anyContains(vals []string, frags ...string) bool {
	for _, v := range vals {
		if v == "" {
			continue
		}
		for _, f := range frags {
			if strings.Contains(v, f) {
				return true
			}
		}
	}
	return false
}

var (
	reKwPG        = regexp.MustCompile(`\b(pg|hostel|paying guest)\b`)
	reKwFlatmate  = regexp.MustCompile(`\b(flatmates?|roommates?)\b`)
	reKwCoworking = regexp.MustCompile(`\bco-?working\b`)
	reKwLand      = regexp.MustCompile(`\b(land|plots?)\b`)
	reKwComm      = regexp.MustCompile(`\b(office|shop|showroom|commercial|warehouse)\b`)
	reKwSale      = regexp.MustCompile(`\b(sale|sell|selling|buy|resale)\b`)
	reKwRent      = regexp.MustCompile(`\b(rent|rental|lease)\b`)
)

func flowFromKeywords(doc Document) (Flow, bool) {
	text := strings.ToLower(norm.NFC.String(storedTitle(doc.Details) + " " + storedDescription(doc.Details)))
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	sale := reKwSale.MatchString(text)
	switch {
	case reKwPG.MatchString(text):
		return ResidentialPGHostel, true
	case reKwFlatmate.MatchString(text):
		return ResidentialFlatmates, true
	case reKwCoworking.MatchString(text):
		return CommercialCoworking, true
	case reKwLand.MatchString(text):
		return LandSale, true
	case reKwComm.MatchString(text):
		if sale {
			return CommercialSale, true
		}
		return CommercialRent, true
	case sale:
		return ResidentialSale, true
	case reKwRent.MatchString(text):
		return ResidentialRent, true
	}
	return "", false
}
