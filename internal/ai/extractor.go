package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/models"
)

const maxExtractionInput = 12000

var errNoCompleter = errors.New("language model not configured")

// Extractor turns scraped page text into raw items. Unlike relevance
// scoring it has no local fallback: failures are returned to the caller.
type Extractor struct {
	completer Completer
	now       func() time.Time
}

func NewExtractor(completer Completer) *Extractor {
	return &Extractor{completer: completer, now: time.Now}
}

type extractedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	URL         string `json:"url"`
	Price       string `json:"price"`
}

// Extract asks the model for the listings on a page and attributes them to src
func (e *Extractor) Extract(ctx context.Context, pageText string, src *models.ContentSource) ([]models.RawContentItem, error) {
	if e.completer == nil {
		return nil, &apperr.UpstreamServiceError{Service: serviceOpenAI, Err: errNoCompleter}
	}

	if r := []rune(pageText); len(r) > maxExtractionInput {
		pageText = string(r[:maxExtractionInput])
	}

	content, err := e.completer.Complete(ctx, []Message{
		{Role: "system", Content: PromptTemplates.Extraction},
		{Role: "user", Content: "Source: " + src.Name + " (" + src.URL + ")\n\n" + pageText},
	})
	if err != nil {
		return nil, err
	}

	var extracted []extractedItem
	if err := json.Unmarshal([]byte(StripCodeFence(content)), &extracted); err != nil {
		return nil, &apperr.UpstreamServiceError{
			Service: serviceOpenAI,
			Err:     &apperr.ParseError{Reason: "extraction response is not a JSON array", Err: err},
		}
	}

	itemType := src.Category
	if itemType == "" {
		itemType = models.CategoryGeneral
	}

	now := e.now()
	items := make([]models.RawContentItem, 0, len(extracted))
	for _, x := range extracted {
		title := strings.TrimSpace(x.Title)
		if title == "" {
			continue
		}
		location := strings.TrimSpace(x.Location)
		if location == "" {
			location = src.GeographicFocus
		}
		items = append(items, models.RawContentItem{
			Title:       title,
			Description: strings.TrimSpace(x.Description),
			Location:    location,
			Date:        strings.TrimSpace(x.Date),
			URL:         strings.TrimSpace(x.URL),
			PageURL:     src.URL,
			Price:       strings.TrimSpace(x.Price),
			Type:        itemType,
			Source:      src.Name,
			ScrapedAt:   now,
		})
	}
	return items, nil
}
