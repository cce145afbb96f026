package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dfwthrift/contentpipe/internal/models"
)

// PromptVariant selects the source-specific part of the system prompt
type PromptVariant string

const (
	VariantRSS        PromptVariant = "rss"
	VariantReddit     PromptVariant = "reddit"
	VariantGoogleNews PromptVariant = "google_news"
)

// PromptTemplates contains the prompt text shared by every relevance request
var PromptTemplates = struct {
	Base       string
	RSS        string
	Reddit     string
	GoogleNews string
	Extraction string
}{
	Base: `You are the editor of a thrift-shopping guide for the Dallas-Fort Worth metroplex.
You receive a JSON array of harvested items. For each item decide whether it belongs in the guide.

Rules:
1. Only keep items about Dallas-Fort Worth and North Texas. Drop anything clearly located elsewhere.
2. Give every kept item a relevance_score from 1 to 10 for thrift, resale, vintage, estate sale, garage sale and flea market shoppers.
3. If two items describe the same sale or story, keep only the more detailed one.
4. Assign exactly one category from: %s.
5. Extract actionable details a shopper needs: dates, hours, address, prices, payment methods.

Respond with a JSON array only, no prose. Each element must have:
- index (the index of the input item)
- relevance_score (integer 1-10)
- category
- title
- description (1-3 sentences)
- location
- date (YYYY-MM-DD when known)
- actionable_details`,

	RSS: `Items come from local blogs, event listings and news feeds. Listings with a street address and a date are usually highly relevant.`,

	Reddit: `Items are Reddit posts. Ignore memes, hauls without a location, and questions that do not announce a sale, store or event.`,

	GoogleNews: `Items are headlines aggregated by Google News. National retail news is only relevant when it names a DFW location.`,

	Extraction: `You extract individual sale and event listings from a scraped web page for a Dallas-Fort Worth thrift guide.
Return a JSON array only, no prose. Each element must have: title, description, location, date (YYYY-MM-DD when known), url, price.
Return an empty array when the page has no listings.`,
}

// VariantFor picks the prompt variant for a source from its URL
func VariantFor(src *models.ContentSource) PromptVariant {
	u := strings.ToLower(src.URL)
	switch {
	case strings.Contains(u, "reddit.com"):
		return VariantReddit
	case strings.Contains(u, "news.google.com"):
		return VariantGoogleNews
	}
	return VariantRSS
}

// BuildSystemPrompt returns the base instruction plus the variant-specific addendum
func BuildSystemPrompt(variant PromptVariant) string {
	base := fmt.Sprintf(PromptTemplates.Base, strings.Join(models.Categories, ", "))

	var extra string
	switch variant {
	case VariantReddit:
		extra = PromptTemplates.Reddit
	case VariantGoogleNews:
		extra = PromptTemplates.GoogleNews
	default:
		extra = PromptTemplates.RSS
	}
	return base + "\n\n" + extra
}

type promptItem struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Date        string `json:"date,omitempty"`
	URL         string `json:"url,omitempty"`
	Price       string `json:"price,omitempty"`
	Source      string `json:"source,omitempty"`
}

// BuildBatchPrompt serialises a batch for the user message
func BuildBatchPrompt(items []models.RawContentItem) (string, error) {
	payload := make([]promptItem, 0, len(items))
	for i, item := range items {
		payload = append(payload, promptItem{
			Index:       i,
			Title:       escapeForPrompt(item.Title),
			Description: escapeForPrompt(item.Description),
			Location:    item.Location,
			Date:        item.Date,
			URL:         item.URL,
			Price:       item.Price,
			Source:      item.Source,
		})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}
	return string(data), nil
}

// escapeForPrompt flattens whitespace so each field stays on one line
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
