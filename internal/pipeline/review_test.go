package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/storage"
)

func seed(t *testing.T, s *storage.MemoryStore, statuses ...models.Status) []string {
	t.Helper()
	ids := make([]string, 0, len(statuses))
	for _, st := range statuses {
		item := &models.PipelineItem{
			Stage:         models.StageProcessed,
			ContentType:   models.CategoryVintage,
			ProcessedData: models.ProcessedData{Title: "Vintage market returns"},
			Status:        st,
		}
		if err := s.SaveItem(context.Background(), item); err != nil {
			t.Fatalf("save: %v", err)
		}
		ids = append(ids, item.ID)
	}
	return ids
}

func TestUpdateStatusFollowsTransitions(t *testing.T) {
	s := storage.NewMemoryStore()
	r := NewReviewer(s)
	ctx := context.Background()
	ids := seed(t, s, models.StatusPending)

	if _, err := r.UpdateStatus(ctx, ids[0], models.StatusPublished); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("pending -> published must fail, got %v", err)
	}

	item, err := r.UpdateStatus(ctx, ids[0], models.StatusProcessed)
	if err != nil || item.Status != models.StatusProcessed {
		t.Fatalf("expected processed, got %+v %v", item, err)
	}

	if _, err := r.UpdateStatus(ctx, ids[0], models.StatusPublished); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("publishing without a published record must fail, got %v", err)
	}
	if got, _ := s.GetItem(ctx, ids[0]); got.Status != models.StatusProcessed {
		t.Fatalf("expected item to stay processed, got %s", got.Status)
	}

	if _, err := r.UpdateStatus(ctx, ids[0], models.StatusRejected); err != nil {
		t.Fatalf("processed -> rejected must succeed, got %v", err)
	}
	if _, err := r.UpdateStatus(ctx, ids[0], models.StatusProcessed); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("rejected is terminal, got %v", err)
	}

	if _, err := r.UpdateStatus(ctx, "missing", models.StatusRejected); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBulkUpdateStatusSkipsDisallowedItems(t *testing.T) {
	s := storage.NewMemoryStore()
	r := NewReviewer(s)
	ctx := context.Background()
	ids := seed(t, s, models.StatusPending, models.StatusPending, models.StatusPublished)

	updated, err := r.BulkUpdateStatus(ctx, ids, models.StatusProcessed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 approved items, got %d", len(updated))
	}

	published, _ := s.GetItem(ctx, ids[2])
	if published.Status != models.StatusPublished {
		t.Errorf("published item changed to %s", published.Status)
	}

	if _, err := r.BulkUpdateStatus(ctx, ids, models.StatusPending); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("nothing may move to pending, got %v", err)
	}
	if _, err := r.BulkUpdateStatus(ctx, ids[:2], models.StatusPublished); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("bulk publishing through status must fail, got %v", err)
	}

	var ve *apperr.ValidationError
	if _, err := r.BulkUpdateStatus(ctx, nil, models.StatusRejected); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for empty ids, got %v", err)
	}
}

func TestGroupByStatus(t *testing.T) {
	s := storage.NewMemoryStore()
	r := NewReviewer(s)
	ids := seed(t, s, models.StatusPending, models.StatusRejected, models.StatusPending)

	groups, err := r.GroupByStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups[models.StatusPending]) != 2 || len(groups[models.StatusRejected]) != 1 {
		t.Errorf("unexpected grouping: %+v", groups)
	}
	if groups[models.StatusPublished] == nil {
		t.Error("expected an empty published group")
	}

	n, err := r.BulkDelete(context.Background(), ids[:2])
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted, got %d %v", n, err)
	}
	remaining, _ := r.ListByStatus(context.Background(), "")
	if len(remaining) != 1 {
		t.Errorf("expected 1 remaining item, got %d", len(remaining))
	}
}
