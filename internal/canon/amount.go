package canon

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	crore = 10_000_000
	lakh  = 100_000
)

var reDecimal = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?|-?\.\d+`)

// Amount coerces a number, a currency string ("₹2.50 Cr", "₹5.00 L") or free
// text into a numeric amount. Anything unparseable yields def.
func Amount(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return finite(n, def)
	case float32:
		return finite(float64(n), def)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return def
		}
		return finite(f, def)
	case string:
		return parseAmountString(n, def)
	}
	return def
}

func parseAmountString(s string, def float64) float64 {
	lead, ok := leadingDecimal(s)
	if !ok {
		return def
	}
	switch {
	case strings.Contains(s, "Cr"):
		return lead * crore
	case strings.Contains(s, "L"):
		return lead * lakh
	}
	return lead
}

func leadingDecimal(s string) (float64, bool) {
	m := reDecimal.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func finite(f, def float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// FormatINR renders an amount the way listing cards display it.
func FormatINR(amount float64) string {
	switch {
	case amount <= 0:
		return "Price on request"
	case amount >= crore:
		return "₹" + strconv.FormatFloat(amount/crore, 'f', 2, 64) + " Cr"
	case amount >= lakh:
		return "₹" + strconv.FormatFloat(amount/lakh, 'f', 2, 64) + " L"
	}
	return "₹" + groupIndian(int64(math.Round(amount)))
}

// groupIndian formats n with lakh-style grouping (12,34,567).
func groupIndian(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
