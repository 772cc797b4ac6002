package analytics

import (
	"log/slog"
	"net/http"
	"strings"
)

// Edge geo headers. Cloudflare names are preferred; the X-Geo pair is used
// by proxies that do their own lookup.
const (
	HeaderCFCountry  = "CF-IPCountry"
	HeaderCFCity     = "CF-IPCity"
	HeaderCFRegion   = "CF-Region"
	HeaderCFTimezone = "CF-Timezone"
	HeaderGeoCountry = "X-Geo-Country"
	HeaderGeoCity    = "X-Geo-City"
)

// GeoInfo is the coarse location hint attached to a request by the edge.
// Empty fields mean unknown.
type GeoInfo struct {
	Country  string
	City     string
	Region   string
	Timezone string
}

// LogValue implements slog.LogValuer.
func (g GeoInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("country", orUnknown(g.Country)),
		slog.String("city", orUnknown(g.City)),
		slog.String("region", g.Region),
		slog.String("timezone", g.Timezone),
	)
}

// GeoFromRequest reads geo hints from request headers.
func GeoFromRequest(r *http.Request) GeoInfo {
	country := r.Header.Get(HeaderCFCountry)
	if country == "" {
		country = r.Header.Get(HeaderGeoCountry)
	}
	city := r.Header.Get(HeaderCFCity)
	if city == "" {
		city = r.Header.Get(HeaderGeoCity)
	}

	return GeoInfo{
		Country:  ExtractCountryCode(country),
		City:     strings.TrimSpace(city),
		Region:   strings.TrimSpace(r.Header.Get(HeaderCFRegion)),
		Timezone: strings.TrimSpace(r.Header.Get(HeaderCFTimezone)),
	}
}

// ExtractCountryCode normalizes a two-letter country header.
// Returns empty string if the value is missing, malformed, or one of the
// Cloudflare placeholders (XX unknown, T1 Tor).
func ExtractCountryCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return ""
	}
	if code == "XX" || code == "T1" {
		return ""
	}
	return code
}
