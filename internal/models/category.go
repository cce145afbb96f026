package models

// Category labels used by the relevance filter and the publisher
const (
	CategoryGarageSale     = "garage_sale"
	CategoryEstateSale     = "estate_sale"
	CategoryFleaMarket     = "flea_market"
	CategoryThriftStore    = "thrift_store"
	CategoryVintage        = "vintage"
	CategoryConsignment    = "consignment"
	CategoryCommunity      = "community"
	CategorySustainability = "sustainability"
	CategoryDeals          = "deals"
	CategoryGeneral        = "general"
)

// Categories is the fixed label set handed to the language model
var Categories = []string{
	CategoryGarageSale,
	CategoryEstateSale,
	CategoryFleaMarket,
	CategoryThriftStore,
	CategoryVintage,
	CategoryConsignment,
	CategoryCommunity,
	CategorySustainability,
	CategoryDeals,
	CategoryGeneral,
}

// IsEventCategory reports whether items of category c publish as events
func IsEventCategory(c string) bool {
	switch c {
	case CategoryGarageSale, CategoryEstateSale, CategoryFleaMarket:
		return true
	}
	return false
}

// IsKnownCategory reports whether c is in the fixed label set
func IsKnownCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
