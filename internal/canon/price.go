package canon

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// MaxPriceDepth bounds the nested search. Deeper payloads are treated as
// having no price rather than walked exhaustively.
const MaxPriceDepth = 5

type PriceSource string

const (
	PriceNone     PriceSource = ""
	PriceColumn   PriceSource = "column"
	PricePayload  PriceSource = "payload"
	PriceTitle    PriceSource = "title"
	PriceDocument PriceSource = "document"
)

var priceFields = []string{
	"price", "rentAmount", "expectedPrice", "seatPrice", "rent", "salePrice",
	"monthlyRent", "expectedRent", "pricePerSeat", "rentPerBed", "totalPrice",
}

var priceHints = []string{"price", "rent", "sale", "amount"}

var reCurrency = regexp.MustCompile(`(?i)^\s*(?:rs\.?|inr)?\s*\d[\d,]*(?:\.\d+)?\s*(?:cr|crore|crores|l|lac|lacs|lakh|lakhs)?\s*(?:/\s*[a-z]+)?\s*$`)

var reTitlePrice = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(cr|crore|crores|l|lac|lacs|lakh|lakhs)\b`)

// ResolvePrice returns a positive price or 0, and which tier found it.
func ResolvePrice(doc Document) (float64, PriceSource) {
	if doc.Price != nil {
		if p := Amount(doc.Price, 0); p > 0 {
			return p, PriceColumn
		}
	}
	if p := searchPrice(doc.Details, 0); p > 0 {
		return p, PricePayload
	}
	if p := priceFromTitle(storedTitle(doc.Details)); p > 0 {
		return p, PriceTitle
	}
	if p := searchPrice(doc.priceScope(), 0); p > 0 {
		return p, PriceDocument
	}
	return 0, PriceNone
}

func searchPrice(obj map[string]any, depth int) float64 {
	if obj == nil || depth > MaxPriceDepth {
		return 0
	}
	for _, f := range priceFields {
		if p := Amount(obj[f], 0); p > 0 {
			return p
		}
		if p := Amount(obj[capitalize(f)], 0); p > 0 {
			return p
		}
	}
	keys := sortedKeys(obj)
	if hintsAtPrice(keys) {
		for _, k := range keys {
			switch v := obj[k].(type) {
			case float64, int, int64, json.Number:
				if p := Amount(v, 0); p > 0 {
					return p
				}
			case string:
				if !looksLikeCurrency(v) {
					continue
				}
				if p := Amount(v, 0); p > 0 {
					return p
				}
			}
		}
	}
	for _, k := range keys {
		if nested, ok := obj[k].(map[string]any); ok {
			if p := searchPrice(nested, depth+1); p > 0 {
				return p
			}
		}
	}
	return 0
}

// looksLikeCurrency admits "₹ 25,000 pm", "45L/month" and "32,000" but not
// free text that happens to contain digits.
func looksLikeCurrency(s string) bool {
	return strings.Contains(s, "₹") || reCurrency.MatchString(s)
}

func hintsAtPrice(keys []string) bool {
	for _, k := range keys {
		lk := strings.ToLower(k)
		for _, h := range priceHints {
			if strings.Contains(lk, h) {
				return true
			}
		}
	}
	return false
}

func priceFromTitle(title string) float64 {
	m := reTitlePrice.FindStringSubmatch(title)
	if m == nil {
		return 0
	}
	n, ok := leadingDecimal(m[1])
	if !ok {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "c") {
		return n * crore
	}
	return n * lakh
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
