package cache

import (
	"context"
	"time"

	"github.com/dfwthrift/contentpipe/internal/models"
)

// Client is implemented by RedisClient and MemoryClient
type Client interface {
	Close() error
	IsProcessed(ctx context.Context, hash string) (bool, error)
	MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error
	ClearProcessed(ctx context.Context) error
	GetFeedValidation(ctx context.Context, url string) (*models.FeedValidation, error)
	UpsertFeedValidation(ctx context.Context, v *models.FeedValidation) error
}

var (
	_ Client = (*RedisClient)(nil)
	_ Client = (*MemoryClient)(nil)
)
