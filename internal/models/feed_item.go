package models

import "time"

// RSSItem is a single entry extracted from an RSS <item> or Atom <entry>
type RSSItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pub_date"`
	Category    string    `json:"category,omitempty"`
}

// RawContentItem is harvested content before relevance filtering.
// It is never stored on its own; a pipeline item keeps it verbatim as raw_data.
type RawContentItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Date        string    `json:"date,omitempty"`
	URL         string    `json:"url,omitempty"`
	PageURL     string    `json:"page_url,omitempty"`
	Price       string    `json:"price,omitempty"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Link is the listing's own URL, or the page it was scraped from when the
// listing had none
func (r RawContentItem) Link() string {
	if r.URL != "" {
		return r.URL
	}
	return r.PageURL
}

// FeedValidation is the cached outcome of validating a feed URL
type FeedValidation struct {
	URL           string    `json:"url"`
	IsValid       bool      `json:"is_valid"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	ItemCount     int       `json:"item_count"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	FeedItems     []RSSItem `json:"feed_items"`
	LastValidated time.Time `json:"last_validated"`
}

// IsFresh reports whether the entry was validated less than ttl ago
func (v *FeedValidation) IsFresh(now time.Time, ttl time.Duration) bool {
	if v == nil || v.LastValidated.IsZero() {
		return false
	}
	return now.Sub(v.LastValidated) < ttl
}
