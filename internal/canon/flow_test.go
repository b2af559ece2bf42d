package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyExplicitTagWins(t *testing.T) {
	doc := Document{
		FlowType: "land_sale",
		Details: map[string]any{
			"steps": map[string]any{"res_rent_basic": map[string]any{}},
			"meta":  map[string]any{"title": "PG for boys, rent 8000"},
		},
	}
	got := Classify(doc)
	assert.Equal(t, LandSale, got.Flow)
	assert.Equal(t, FlowFromRootTag, got.Source)
}

func TestClassifyInvalidRootTagIsIgnored(t *testing.T) {
	doc := Document{
		FlowType: "villa_party",
		Details:  map[string]any{"flow": map[string]any{"flowType": "commercial_sale"}},
	}
	got := Classify(doc)
	assert.Equal(t, CommercialSale, got.Flow)
	assert.Equal(t, FlowFromPayloadTag, got.Source)
}

func TestClassifyStepKeys(t *testing.T) {
	cases := map[string]Flow{
		"com_coworking_details": CommercialCoworking,
		"res_rent_basic":        ResidentialRent,
		"res_sale_pricing":      ResidentialSale,
		"res_flatmates_room":    ResidentialFlatmates,
		"res_pg_rooms":          ResidentialPGHostel,
		"com_rent_specs":        CommercialRent,
		"com_sale_specs":        CommercialSale,
		"land_sale_plot":        LandSale,
	}
	for key, want := range cases {
		t.Run(key, func(t *testing.T) {
			doc := Document{Details: map[string]any{"steps": map[string]any{key: map[string]any{"x": 1.0}}}}
			got := Classify(doc)
			assert.Equal(t, want, got.Flow)
			assert.Equal(t, FlowFromStepKeys, got.Source)
		})
	}
}

func TestClassifyLegacyFields(t *testing.T) {
	cases := []struct {
		name    string
		details map[string]any
		want    Flow
	}{
		{"v2 flow object", map[string]any{"flow": map[string]any{"category": "residential", "listingType": "sale"}}, ResidentialSale},
		{"lease synonym", map[string]any{"category": "Commercial", "listingType": "lease"}, CommercialRent},
		{"sell synonym", map[string]any{"category": "commercial", "listingType": "sell"}, CommercialSale},
		{"pg equality", map[string]any{"propertyType": "PG"}, ResidentialPGHostel},
		{"hostel substring", map[string]any{"propertyType": "girls hostel"}, ResidentialPGHostel},
		{"roommate", map[string]any{"category": "roommate"}, ResidentialFlatmates},
		{"plot", map[string]any{"propertyType": "residential plot"}, LandSale},
		{"co-working", map[string]any{"propertyType": "co-working"}, CommercialCoworking},
		{"apartment rent", map[string]any{"propertyType": "apartment"}, ResidentialRent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(Document{Details: tc.details})
			assert.Equal(t, tc.want, got.Flow)
			assert.Equal(t, FlowFromLegacy, got.Source)
		})
	}
}

func TestClassifyKeywords(t *testing.T) {
	cases := []struct {
		title, desc string
		want        Flow
	}{
		{"Boys PG near metro", "", ResidentialPGHostel},
		{"Looking for a flatmate", "", ResidentialFlatmates},
		{"Coworking desks available", "", CommercialCoworking},
		{"Corner plot in gated layout", "", LandSale},
		{"Office on MG Road", "Available for sale", CommercialSale},
		{"Retail shop", "", CommercialRent},
		{"3BHK independent house", "Owner wants to sell quickly", ResidentialSale},
		{"Cosy studio", "On rent from June", ResidentialRent},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			doc := Document{Details: map[string]any{"meta": map[string]any{"title": tc.title, "description": tc.desc}}}
			got := Classify(doc)
			assert.Equal(t, tc.want, got.Flow)
			assert.Equal(t, FlowFromKeywords, got.Source)
		})
	}
}

func TestClassifyDefaultsVisibly(t *testing.T) {
	got := Classify(Document{Details: map[string]any{"meta": map[string]any{"title": "Lovely home"}}})
	assert.Equal(t, DefaultFlow, got.Flow)
	assert.Equal(t, FlowFromDefault, got.Source)

	got = Classify(Document{})
	assert.Equal(t, ResidentialRent, got.Flow)
	assert.Equal(t, FlowFromDefault, got.Source)
}

func TestFlowHelpers(t *testing.T) {
	f, ok := ParseFlow(" Commercial_Coworking ")
	require.True(t, ok)
	assert.Equal(t, CommercialCoworking, f)
	assert.Equal(t, "commercial", f.Category())
	assert.Equal(t, "rent", f.ListingType())
	assert.Equal(t, "sale", LandSale.ListingType())
	assert.Equal(t, "land", LandSale.Category())
	assert.Equal(t, "PG/Hostel", ResidentialPGHostel.Label())

	_, ok = ParseFlow("unknown")
	assert.False(t, ok)
}
