package models

import "time"

// Status is the review state of a pipeline item
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
)

// StageProcessed is the only stage a saved item is ever in
const StageProcessed = "processed"

// AllStatuses lists the statuses in pipeline order
var AllStatuses = []Status{StatusPending, StatusProcessed, StatusPublished, StatusRejected}

// ParseStatus returns the status named s. Matching is case-sensitive.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no transition leaves s
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// CanTransitionTo reports whether s may move to next.
// Items only move forward (pending -> processed -> published) or sideways to rejected.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessed || next == StatusRejected
	case StatusProcessed:
		return next == StatusPublished || next == StatusRejected
	}
	return false
}

// Predecessors returns every status that may move to next
func Predecessors(next Status) []Status {
	var out []Status
	for _, s := range AllStatuses {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// ProcessedData is the AI-normalized form of a raw item
type ProcessedData struct {
	Title             string `json:"title" validate:"required"`
	Description       string `json:"description" validate:"required_without=ActionableDetails"`
	Location          string `json:"location,omitempty"`
	Category          string `json:"category,omitempty"`
	Date              string `json:"date,omitempty"`
	ActionableDetails string `json:"actionable_details,omitempty"`
}

// PipelineItem is one unit of harvested content awaiting or past review
type PipelineItem struct {
	ID             string         `json:"id"`
	SourceID       string         `json:"source_id,omitempty"`
	Stage          string         `json:"stage"`
	ContentType    string         `json:"content_type"`
	RawData        RawContentItem `json:"raw_data"`
	ProcessedData  ProcessedData  `json:"processed_data"`
	RelevanceScore int            `json:"relevance_score"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Category returns processed_data.category, falling back to the content type
func (p *PipelineItem) Category() string {
	if p.ProcessedData.Category != "" {
		return p.ProcessedData.Category
	}
	return p.ContentType
}
