package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/utils"
)

// ProcessedTracker remembers content hashes across runs
type ProcessedTracker interface {
	IsProcessed(ctx context.Context, hash string) (bool, error)
	MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error
}

// Deduper drops items already seen in this batch or in an earlier run
type Deduper struct {
	tracker ProcessedTracker
	ttl     time.Duration
}

// NewDeduper builds a deduper. A nil tracker limits it to in-batch duplicates.
func NewDeduper(tracker ProcessedTracker, ttl time.Duration) *Deduper {
	return &Deduper{tracker: tracker, ttl: ttl}
}

// FilterNew returns the items not seen before, in input order, and the number dropped
func (d *Deduper) FilterNew(ctx context.Context, items []models.RawContentItem) ([]models.RawContentItem, int) {
	log := logger.Get()
	seen := make(map[string]bool, len(items))
	unique := make([]models.RawContentItem, 0, len(items))
	duplicates := 0

	for _, item := range items {
		hash := utils.DedupKey(item.URL, item.Source, item.Title)
		if seen[hash] {
			duplicates++
			continue
		}
		seen[hash] = true

		if d.tracker != nil {
			isProcessed, err := d.tracker.IsProcessed(ctx, hash)
			if err != nil {
				// keep the item; a cache outage must not hide new content
				log.Error().
					Err(err).
					Str("url", item.URL).
					Msg("Error checking cache for item")
			} else if isProcessed {
				log.Debug().
					Str("url", item.URL).
					Str("title", item.Title).
					Msg("Skipping already processed item")
				duplicates++
				continue
			}
		}

		unique = append(unique, item)
	}

	return unique, duplicates
}

// MarkProcessed records the items so later runs skip them
func (d *Deduper) MarkProcessed(ctx context.Context, items []models.RawContentItem) error {
	if d.tracker == nil {
		return nil
	}
	for _, item := range items {
		hash := utils.DedupKey(item.URL, item.Source, item.Title)
		if err := d.tracker.MarkProcessed(ctx, hash, d.ttl); err != nil {
			return fmt.Errorf("error marking %s as processed: %w", item.URL, err)
		}
	}
	return nil
}
