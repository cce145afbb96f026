package pipeline

import (
	"context"
	"fmt"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/storage"
)

// Reviewer applies admin status decisions to pipeline items
type Reviewer struct {
	store storage.PipelineStore
}

func NewReviewer(store storage.PipelineStore) *Reviewer {
	return &Reviewer{store: store}
}

// UpdateStatus moves one item to status if its current status allows it.
// The write is conditional on the status that was read, so a concurrent
// change between read and write surfaces as ErrInvalidTransition.
func (r *Reviewer) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.PipelineItem, error) {
	if err := reviewable(status); err != nil {
		return nil, err
	}

	item, err := r.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if item.Status.Terminal() {
		return nil, fmt.Errorf("%w: item is already %s", apperr.ErrInvalidTransition, item.Status)
	}
	if !item.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, item.Status, status)
	}

	updated, err := r.store.UpdateStatus(ctx, id, []models.Status{item.Status}, status)
	if err != nil {
		logger.Get().Error().
			Err(err).
			Str("id", id).
			Str("status", string(status)).
			Msg("Error updating pipeline item status")
		return nil, err
	}

	logger.Get().Info().
		Str("id", id).
		Str("from", string(item.Status)).
		Str("to", string(status)).
		Msg("Pipeline item status updated")

	return updated, nil
}

// reviewable rejects target statuses that only the publisher may set.
// An item is published once its event or article row exists.
func reviewable(status models.Status) error {
	if status == models.StatusPublished {
		return fmt.Errorf("%w: items are published through the publish operation", apperr.ErrInvalidTransition)
	}
	return nil
}

// BulkUpdateStatus applies status to every id whose current status may move
// there, in one batched write. Items in any other status are left as they are
// and are absent from the result.
func (r *Reviewer) BulkUpdateStatus(ctx context.Context, ids []string, status models.Status) ([]models.PipelineItem, error) {
	if len(ids) == 0 {
		return nil, &apperr.ValidationError{Field: "ids", Message: "at least one id is required"}
	}
	if err := reviewable(status); err != nil {
		return nil, err
	}

	from := models.Predecessors(status)
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: nothing may move to %s", apperr.ErrInvalidTransition, status)
	}

	updated, err := r.store.BulkUpdateStatus(ctx, ids, from, status)
	if err != nil {
		logger.Get().Error().
			Err(err).
			Int("count", len(ids)).
			Str("status", string(status)).
			Msg("Error bulk updating pipeline items")
		return nil, err
	}

	logger.Get().Info().
		Int("requested", len(ids)).
		Int("updated", len(updated)).
		Str("status", string(status)).
		Msg("Bulk status update finished")

	return updated, nil
}

// BulkDelete removes the given items in one statement
func (r *Reviewer) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, &apperr.ValidationError{Field: "ids", Message: "at least one id is required"}
	}

	n, err := r.store.BulkDelete(ctx, ids)
	if err != nil {
		logger.Get().Error().Err(err).Int("count", len(ids)).Msg("Error deleting pipeline items")
		return 0, err
	}
	return n, nil
}

func (r *Reviewer) ListByStatus(ctx context.Context, status models.Status) ([]models.PipelineItem, error) {
	return r.store.ListByStatus(ctx, status)
}

// GroupByStatus returns every item keyed by status. Each status has an entry, possibly empty.
func (r *Reviewer) GroupByStatus(ctx context.Context) (map[models.Status][]models.PipelineItem, error) {
	items, err := r.store.ListByStatus(ctx, "")
	if err != nil {
		return nil, err
	}

	groups := make(map[models.Status][]models.PipelineItem, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		groups[st] = []models.PipelineItem{}
	}
	for _, item := range items {
		groups[item.Status] = append(groups[item.Status], item)
	}
	return groups, nil
}
