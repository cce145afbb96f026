package feed

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/mmcdole/gofeed"
)

const (
	MaxItems             = 10
	MinTitleLength       = 10
	MinDescriptionLength = 20
	MaxItemAge           = 30 * 24 * time.Hour
)

// ParsedFeed is the channel metadata plus the items that passed the filters
type ParsedFeed struct {
	Type        string
	Title       string
	Description string
	Items       []models.RSSItem
}

// Parser turns RSS/Atom documents into RSSItems and drops low-quality or stale entries
type Parser struct {
	htmlTagRegex *regexp.Regexp
	now          func() time.Time
}

func NewParser() *Parser {
	return &Parser{
		htmlTagRegex: regexp.MustCompile(`<[^>]*>`),
		now:          time.Now,
	}
}

// CleanHTML removes HTML tags, decodes entities and normalizes whitespace
func (p *Parser) CleanHTML(input string) string {
	cleaned := p.htmlTagRegex.ReplaceAllString(input, " ")
	cleaned = html.UnescapeString(cleaned)
	// strings.Fields also splits on the NBSP that &nbsp; decodes to
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.TrimSpace(cleaned)
}

// Parse extracts up to MaxItems entries from an RSS or Atom document
func (p *Parser) Parse(raw []byte) (*ParsedFeed, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(raw)) {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
	default:
		return nil, &apperr.ParseError{Reason: "no <rss> or <feed> root element"}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &apperr.ParseError{Reason: "malformed feed", Err: err}
	}

	out := &ParsedFeed{
		Type:        parsed.FeedType,
		Title:       p.CleanHTML(parsed.Title),
		Description: p.CleanHTML(parsed.Description),
		Items:       []models.RSSItem{},
	}

	entries := parsed.Items
	if len(entries) > MaxItems {
		entries = entries[:MaxItems]
	}

	now := p.now()
	for _, entry := range entries {
		item, ok := p.convert(entry, now)
		if !ok {
			continue
		}
		out.Items = append(out.Items, item)
	}

	return out, nil
}

func (p *Parser) convert(entry *gofeed.Item, now time.Time) (models.RSSItem, bool) {
	title := p.CleanHTML(entry.Title)
	if title == "" {
		return models.RSSItem{}, false
	}

	description := p.CleanHTML(entry.Description)
	if description == "" {
		description = p.CleanHTML(entry.Content)
	}

	if utf8.RuneCountInString(title) < MinTitleLength ||
		utf8.RuneCountInString(description) < MinDescriptionLength {
		return models.RSSItem{}, false
	}

	pubDate := now
	switch {
	case entry.PublishedParsed != nil:
		pubDate = *entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		pubDate = *entry.UpdatedParsed
	}
	if now.Sub(pubDate) > MaxItemAge {
		return models.RSSItem{}, false
	}

	var category string
	if len(entry.Categories) > 0 {
		category = p.CleanHTML(entry.Categories[0])
	}

	return models.RSSItem{
		Title:       title,
		Description: description,
		Link:        UnwrapGoogleNewsURL(strings.TrimSpace(entry.Link)),
		PubDate:     pubDate,
		Category:    category,
	}, true
}

// ToRawItems maps parsed entries to raw items attributed to src
func ToRawItems(items []models.RSSItem, src *models.ContentSource, scrapedAt time.Time) []models.RawContentItem {
	itemType := src.Category
	if itemType == "" {
		itemType = models.CategoryGeneral
	}

	raw := make([]models.RawContentItem, 0, len(items))
	for _, item := range items {
		raw = append(raw, models.RawContentItem{
			Title:       item.Title,
			Description: item.Description,
			Location:    src.GeographicFocus,
			Date:        item.PubDate.UTC().Format("2006-01-02"),
			URL:         item.Link,
			Type:        itemType,
			Source:      src.Name,
			ScrapedAt:   scrapedAt,
		})
	}
	return raw
}
