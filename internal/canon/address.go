package canon

import (
	"regexp"
	"strings"
)

var rePunct = regexp.MustCompile(`[^A-Za-z0-9\s]`)

// Canonicalize normalizes a free-text address and computes a stable key for
// geocode caching. Flat/door numbers are dropped so every unit in a building
// shares one key.
func Canonicalize(line, city, state string) (normLine, normCity, normState, key string) {
	n1 := strings.TrimSpace(strings.ToUpper(line))
	n1 = stripUnit(n1)
	n1 = rePunct.ReplaceAllString(n1, " ")
	n1 = abbreviateSuffix(" " + n1 + " ")
	n1 = collapseSpaces(n1)

	c := collapseSpaces(rePunct.ReplaceAllString(strings.ToUpper(strings.TrimSpace(city)), " "))
	c = cityAlias(c)
	st := collapseSpaces(strings.ToUpper(strings.TrimSpace(state)))
	if len(st) > 2 {
		st = stateCode(st)
	}
	key = strings.ToLower(n1 + "|" + c + "|" + st)
	return n1, c, st, key
}

// Query renders the canonical parts as a single geocoder query string.
func Query(line, city, state string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{line, city, state} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		parts = append(parts, "India")
	}
	return strings.Join(parts, ", ")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripUnit(s string) string {
	// Leading designators like "FLAT 402," or "#12," precede the street part.
	for _, p := range []string{"FLAT ", "APT ", "DOOR NO ", "DOOR NO. ", "NO. ", "#", "H.NO ", "H NO "} {
		if strings.HasPrefix(s, p) {
			if i := strings.Index(s, ","); i >= 0 {
				return strings.TrimSpace(s[i+1:])
			}
		}
	}
	return strings.TrimSpace(s)
}

var suffixes = []struct{ long, short string }{
	{" ROAD ", " RD "},
	{" MAIN ", " MN "},
	{" CROSS ", " CRS "},
	{" LAYOUT ", " LYT "},
	{" SECTOR ", " SEC "},
	{" STAGE ", " STG "},
	{" PHASE ", " PH "},
	{" BLOCK ", " BLK "},
	{" STREET ", " ST "},
	{" NAGAR ", " NGR "},
	{" EXTENSION ", " EXTN "},
	{" APARTMENTS ", " APTS "},
}

func abbreviateSuffix(s string) string {
	out := s
	for _, r := range suffixes {
		for strings.Contains(out, r.long) {
			out = strings.ReplaceAll(out, r.long, r.short)
		}
	}
	return out
}

func cityAlias(c string) string {
	m := map[string]string{
		"BANGALORE": "BENGALURU", "BOMBAY": "MUMBAI", "MADRAS": "CHENNAI", "CALCUTTA": "KOLKATA",
		"GURGAON": "GURUGRAM", "MYSORE": "MYSURU", "POONA": "PUNE",
	}
	if v, ok := m[c]; ok {
		return v
	}
	return c
}

func stateCode(s string) string {
	m := map[string]string{
		"ANDHRA PRADESH": "AP", "ARUNACHAL PRADESH": "AR", "ASSAM": "AS", "BIHAR": "BR", "CHHATTISGARH": "CG", "GOA": "GA", "GUJARAT": "GJ", "HARYANA": "HR", "HIMACHAL PRADESH": "HP", "JHARKHAND": "JH", "KARNATAKA": "KA", "KERALA": "KL", "MADHYA PRADESH": "MP", "MAHARASHTRA": "MH", "MANIPUR": "MN", "MEGHALAYA": "ML", "MIZORAM": "MZ", "NAGALAND": "NL", "ODISHA": "OD", "PUNJAB": "PB", "RAJASTHAN": "RJ", "SIKKIM": "SK", "TAMIL NADU": "TN", "TELANGANA": "TS", "TRIPURA": "TR", "UTTAR PRADESH": "UP", "UTTARAKHAND": "UK", "WEST BENGAL": "WB", "DELHI": "DL", "JAMMU AND KASHMIR": "JK", "PUDUCHERRY": "PY", "CHANDIGARH": "CH",
	}
	if v, ok := m[s]; ok {
		return v
	}
	return s
}
