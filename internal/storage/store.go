package storage

import (
	"context"

	"github.com/dfwthrift/contentpipe/internal/models"
)

// PipelineStore persists pipeline items. Status writes are conditional on the
// current status being one of from; nothing locks rows between read and write.
type PipelineStore interface {
	SaveItem(ctx context.Context, item *models.PipelineItem) error
	GetItem(ctx context.Context, id string) (*models.PipelineItem, error)
	// ListByStatus returns items newest first. An empty status lists everything.
	ListByStatus(ctx context.Context, status models.Status) ([]models.PipelineItem, error)
	UpdateStatus(ctx context.Context, id string, from []models.Status, to models.Status) (*models.PipelineItem, error)
	BulkUpdateStatus(ctx context.Context, ids []string, from []models.Status, to models.Status) ([]models.PipelineItem, error)
	BulkDelete(ctx context.Context, ids []string) (int, error)
}

// SourceStore persists content sources and their health counters
type SourceStore interface {
	CreateSource(ctx context.Context, src *models.ContentSource) error
	GetSource(ctx context.Context, id string) (*models.ContentSource, error)
	ListSources(ctx context.Context, activeOnly bool) ([]models.ContentSource, error)
	SetSourceActive(ctx context.Context, id string, active bool) (*models.ContentSource, error)
	RecordFetchAttempt(ctx context.Context, id string, ok bool, errMsg string) (*models.SourceHealth, error)
}

// PublishStore holds the public events and articles tables
type PublishStore interface {
	InsertEvent(ctx context.Context, ev *models.Event) error
	InsertArticle(ctx context.Context, a *models.Article) error
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)
	ListArticles(ctx context.Context, limit int) ([]models.Article, error)
	// PublishedRecord finds the event or article already created for a
	// pipeline item and returns its table and id, or ErrNotFound.
	PublishedRecord(ctx context.Context, pipelineItemID string) (target, recordID string, err error)
}

// FeedValidationStore caches feed validation results by URL.
// GetFeedValidation returns nil, nil on a miss.
type FeedValidationStore interface {
	GetFeedValidation(ctx context.Context, url string) (*models.FeedValidation, error)
	UpsertFeedValidation(ctx context.Context, v *models.FeedValidation) error
}

// Store is everything the pipeline needs from its database
type Store interface {
	PipelineStore
	SourceStore
	PublishStore
	FeedValidationStore
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

const DefaultListLimit = 50

func containsStatus(set []models.Status, s models.Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
