package ai

import (
	"strings"

	"github.com/dfwthrift/contentpipe/internal/models"
)

const (
	thriftKeywordPoints = 2
	geoKeywordPoints    = 1
	minScore            = 1
	maxScore            = 10
)

var thriftKeywords = []string{
	"thrift", "garage sale", "yard sale", "estate sale", "moving sale", "flea market",
	"vintage", "antique", "consignment", "resale", "secondhand", "second-hand",
	"pre-owned", "goodwill", "salvation army", "rummage", "swap meet", "bargain",
	"upcycl", "donation",
}

var geoKeywords = []string{
	"dallas", "fort worth", "dfw", "north texas", "arlington", "plano", "irving",
	"garland", "frisco", "mckinney", "denton", "richardson", "carrollton",
	"grand prairie", "mesquite", "lewisville", "tarrant", "collin county",
	"deep ellum", "bishop arts", "oak cliff",
}

// categoryPhrases is checked in order; the first phrase found wins
var categoryPhrases = []struct {
	phrase   string
	category string
}{
	{"estate sale", models.CategoryEstateSale},
	{"garage sale", models.CategoryGarageSale},
	{"yard sale", models.CategoryGarageSale},
	{"moving sale", models.CategoryGarageSale},
	{"rummage", models.CategoryGarageSale},
	{"flea market", models.CategoryFleaMarket},
	{"swap meet", models.CategoryFleaMarket},
	{"consignment", models.CategoryConsignment},
	{"vintage", models.CategoryVintage},
	{"antique", models.CategoryVintage},
	{"thrift", models.CategoryThriftStore},
	{"goodwill", models.CategoryThriftStore},
	{"resale", models.CategoryThriftStore},
	{"secondhand", models.CategoryThriftStore},
	{"upcycl", models.CategorySustainability},
	{"sustainab", models.CategorySustainability},
	{"donation", models.CategorySustainability},
	{"% off", models.CategoryDeals},
	{"discount", models.CategoryDeals},
	{"bargain", models.CategoryDeals},
}

func itemText(item models.RawContentItem) string {
	return strings.ToLower(item.Title + " " + item.Description)
}

// HeuristicScore scores an item by keyword presence, clamped to [1,10]
func HeuristicScore(item models.RawContentItem) int {
	text := itemText(item)

	score := 0
	for _, kw := range thriftKeywords {
		if strings.Contains(text, kw) {
			score += thriftKeywordPoints
		}
	}
	for _, kw := range geoKeywords {
		if strings.Contains(text, kw) {
			score += geoKeywordPoints
		}
	}

	return clampScore(score)
}

// HeuristicCategory derives a category label from the item text
func HeuristicCategory(item models.RawContentItem) string {
	text := itemText(item)
	for _, cp := range categoryPhrases {
		if strings.Contains(text, cp.phrase) {
			return cp.category
		}
	}
	if models.IsKnownCategory(item.Type) {
		return item.Type
	}
	return models.CategoryGeneral
}

func clampScore(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
