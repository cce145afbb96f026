package models

import "time"

// SourceType identifies how content is pulled from a source
type SourceType string

const (
	SourceRSS       SourceType = "rss"
	SourceWebScrape SourceType = "web_scrape"
	SourceAPI       SourceType = "api"
	SourceEmail     SourceType = "email"
	SourceCalendar  SourceType = "calendar"
)

// Valid reports whether t is one of the known source types
func (t SourceType) Valid() bool {
	switch t {
	case SourceRSS, SourceWebScrape, SourceAPI, SourceEmail, SourceCalendar:
		return true
	}
	return false
}

// SourceHealth holds the running fetch counters of a source
type SourceHealth struct {
	TotalAttempts       int        `json:"total_attempts"`
	SuccessfulAttempts  int        `json:"successful_attempts"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	SuccessRate         float64    `json:"success_rate"`
	LastErrorMessage    string     `json:"last_error_message,omitempty"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
}

// ContentSource is a configured origin that pipeline items are harvested from
type ContentSource struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	URL             string       `json:"url"`
	SourceType      SourceType   `json:"source_type"`
	Category        string       `json:"category"`
	GeographicFocus string       `json:"geographic_focus"`
	Keywords        []string     `json:"keywords"`
	Active          bool         `json:"active"`
	Schedule        string       `json:"schedule,omitempty"` // cron expression for the admin UI; nothing reads it
	Health          SourceHealth `json:"health"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
