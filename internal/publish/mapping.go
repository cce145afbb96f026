package publish

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultStartTime    = "09:00"
	DefaultEndTime      = "17:00"
	DefaultNeighborhood = "Other"

	PriceFree   = "free"
	PriceUnder5 = "under-5"
	Price5To15  = "5-15"
	Price15To25 = "15-25"
	PriceVaries = "varies"
)

const excerptRunes = 200

// Neighborhoods is checked in order against the event location; the first match wins
var Neighborhoods = []string{
	"Deep Ellum",
	"Bishop Arts",
	"Oak Cliff",
	"Lower Greenville",
	"Lakewood",
	"Lake Highlands",
	"Uptown",
	"Oak Lawn",
	"Design District",
	"Knox-Henderson",
	"Preston Hollow",
	"Casa Linda",
	"Downtown Dallas",
	"Stockyards",
	"Near Southside",
	"Magnolia",
	"West 7th",
	"Arlington",
	"Plano",
	"Frisco",
	"McKinney",
	"Richardson",
	"Garland",
	"Irving",
	"Carrollton",
	"Denton",
	"Mesquite",
	"Grand Prairie",
	"Lewisville",
	"Fort Worth",
	"Dallas",
}

var pricePhrases = []struct {
	phrase string
	label  string
}{
	{"free", PriceFree},
	{"no cost", PriceFree},
	{"no charge", PriceFree},
	{"no admission", PriceFree},
	{"under $5", PriceUnder5},
	{"less than $5", PriceUnder5},
	{"$5-$15", Price5To15},
	{"$5 - $15", Price5To15},
	{"$5 to $15", Price5To15},
	{"$15-$25", Price15To25},
	{"$15 - $25", Price15To25},
	{"$15 to $25", Price15To25},
}

var dollarAmount = regexp.MustCompile(`\$\s?(\d+(?:\.\d{1,2})?)`)

// Neighborhood returns the first known neighborhood named in location
func Neighborhood(location string) string {
	loc := strings.ToLower(location)
	for _, n := range Neighborhoods {
		if strings.Contains(loc, strings.ToLower(n)) {
			return n
		}
	}
	return DefaultNeighborhood
}

// PriceRange buckets the price mentioned in details. Fixed phrases are
// checked first, then the first dollar amount.
func PriceRange(details string) string {
	d := strings.ToLower(details)
	for _, p := range pricePhrases {
		if strings.Contains(d, p.phrase) {
			return p.label
		}
	}

	m := dollarAmount.FindStringSubmatch(d)
	if m == nil {
		return PriceVaries
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return PriceVaries
	}
	switch {
	case amount == 0:
		return PriceFree
	case amount < 5:
		return PriceUnder5
	case amount <= 15:
		return Price5To15
	case amount <= 25:
		return Price15To25
	}
	return PriceVaries
}

// Venue is the first comma-separated part of a location
func Venue(location string) string {
	venue, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(venue)
}

func excerpt(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= excerptRunes {
		return string(r)
	}
	return strings.TrimSpace(string(r[:excerptRunes]))
}
