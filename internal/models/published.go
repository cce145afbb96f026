package models

import "time"

// Event is a published sale or market listing
type Event struct {
	ID             string    `json:"id"`
	PipelineItemID string    `json:"pipeline_item_id,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Venue          string    `json:"venue"`
	EventDate      string    `json:"event_date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	Category       string    `json:"category"`
	Neighborhood   string    `json:"neighborhood"`
	PriceRange     string    `json:"price_range"`
	Featured       bool      `json:"featured"`
	SourceURL      string    `json:"source_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Article is a published editorial piece
type Article struct {
	ID             string    `json:"id"`
	PipelineItemID string    `json:"pipeline_item_id,omitempty"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	Excerpt        string    `json:"excerpt"`
	Body           string    `json:"body"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	Author         string    `json:"author"`
	PublishedAt    time.Time `json:"published_at"`
	SourceURL      string    `json:"source_url,omitempty"`
}

// PublishedEvent is the notification emitted after a pipeline item goes live
type PublishedEvent struct {
	PipelineItemID string    `json:"pipeline_item_id"`
	Target         string    `json:"target"` // "events" or "articles"
	RecordID       string    `json:"record_id"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	SourceURL      string    `json:"source_url,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
}
