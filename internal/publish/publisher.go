package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/storage"
)

const (
	opPublish       = "Publishing failed"
	maxSlugAttempts = 5
)

// Notifier announces published content. Failures never undo a publish.
type Notifier interface {
	Notify(ctx context.Context, ev models.PublishedEvent) error
}

// Result identifies the row created for a published item
type Result struct {
	ID       string `json:"id"`
	Target   Target `json:"target"`
	RecordID string `json:"record_id"`
}

// Failure is one item a bulk publish could not publish
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult lists the outcome of every id in a bulk publish
type BulkResult struct {
	Success []string  `json:"success"`
	Failed  []Failure `json:"failed"`
}

// Publisher moves processed pipeline items into the public tables
type Publisher struct {
	items    storage.PipelineStore
	targets  storage.PublishStore
	mapper   *Mapper
	notifier Notifier
}

func NewPublisher(items storage.PipelineStore, targets storage.PublishStore, mapper *Mapper, notifier Notifier) *Publisher {
	return &Publisher{items: items, targets: targets, mapper: mapper, notifier: notifier}
}

// Publish inserts the event or article for a processed item and then marks
// it published. If the insert fails the item keeps its status.
func (p *Publisher) Publish(ctx context.Context, id string) (*Result, error) {
	log := logger.Get()

	item, err := p.items.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != models.StatusProcessed {
		return nil, fmt.Errorf("%w: only processed items can be published, item is %s",
			apperr.ErrInvalidTransition, item.Status)
	}

	draft, err := p.mapper.Draft(item)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Pipeline item is not publishable")
		return nil, err
	}

	target, recordID, title, err := p.insert(ctx, id, draft)
	if err != nil {
		log.Error().Err(err).Str("id", id).Str("target", string(draft.Target)).Msg("Error inserting published record")
		return nil, &apperr.PersistenceError{Op: opPublish, Err: err}
	}

	if _, err := p.items.UpdateStatus(ctx, id, []models.Status{models.StatusProcessed}, models.StatusPublished); err != nil {
		log.Error().
			Err(err).
			Str("id", id).
			Str("record_id", recordID).
			Msg("Record inserted but pipeline item status not updated")
		return nil, &apperr.PersistenceError{Op: opPublish, Err: err}
	}

	log.Info().
		Str("id", id).
		Str("target", string(target)).
		Str("record_id", recordID).
		Msg("Pipeline item published")

	p.notify(ctx, models.PublishedEvent{
		PipelineItemID: id,
		Target:         string(target),
		RecordID:       recordID,
		Title:          title,
		Category:       item.Category(),
		SourceURL:      item.RawData.Link(),
		PublishedAt:    p.mapper.now().UTC(),
	})

	return &Result{ID: id, Target: target, RecordID: recordID}, nil
}

// insert writes the draft's row, or reuses the row left by an earlier attempt
// whose status update failed. A taken article slug is bumped and retried.
func (p *Publisher) insert(ctx context.Context, id string, draft Draft) (Target, string, string, error) {
	existing, recordID, err := p.targets.PublishedRecord(ctx, id)
	switch {
	case err == nil:
		logger.Get().Info().Str("id", id).Str("record_id", recordID).Msg("Reusing existing published record")
		return Target(existing), recordID, draft.title(), nil
	case !errors.Is(err, apperr.ErrNotFound):
		return "", "", "", err
	}

	if draft.Target == TargetEvents {
		if err := p.targets.InsertEvent(ctx, draft.Event); err != nil {
			return "", "", "", err
		}
		return TargetEvents, draft.Event.ID, draft.Event.Title, nil
	}

	for attempt := 1; ; attempt++ {
		err := p.targets.InsertArticle(ctx, draft.Article)
		if err == nil {
			return TargetArticles, draft.Article.ID, draft.Article.Title, nil
		}
		if !errors.Is(err, apperr.ErrDuplicate) || attempt == maxSlugAttempts {
			return "", "", "", err
		}
		draft.Article.Slug = NextSlug(draft.Article.Slug)
	}
}

// BulkPublish publishes ids one at a time. A failed item is recorded and
// the loop moves on.
func (p *Publisher) BulkPublish(ctx context.Context, ids []string) BulkResult {
	result := BulkResult{Success: []string{}, Failed: []Failure{}}
	for _, id := range ids {
		if _, err := p.Publish(ctx, id); err != nil {
			result.Failed = append(result.Failed, Failure{ID: id, Error: err.Error()})
			continue
		}
		result.Success = append(result.Success, id)
	}

	logger.Get().Info().
		Int("requested", len(ids)).
		Int("published", len(result.Success)).
		Int("failed", len(result.Failed)).
		Msg("Bulk publish finished")

	return result
}

func (p *Publisher) notify(ctx context.Context, ev models.PublishedEvent) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, ev); err != nil {
		logger.Get().Warn().Err(err).Str("id", ev.PipelineItemID).Msg("Error sending publish notification")
	}
}
