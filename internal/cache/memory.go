package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dfwthrift/contentpipe/internal/models"
)

// MemoryClient is an in-process stand-in for RedisClient, used when Redis is
// not configured and in tests. Entries do not survive a restart.
type MemoryClient struct {
	mu          sync.RWMutex
	processed   map[string]time.Time
	validations map[string]models.FeedValidation
	now         func() time.Time
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		processed:   make(map[string]time.Time),
		validations: make(map[string]models.FeedValidation),
		now:         time.Now,
	}
}

func (m *MemoryClient) Close() error {
	return nil
}

func (m *MemoryClient) IsProcessed(ctx context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expires, exists := m.processed[hash]
	if !exists {
		return false, nil
	}
	return expires.IsZero() || m.now().Before(expires), nil
}

func (m *MemoryClient) MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.processed[hash] = expires
	return nil
}

func (m *MemoryClient) ClearProcessed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = make(map[string]time.Time)
	return nil
}

func (m *MemoryClient) GetFeedValidation(ctx context.Context, url string) (*models.FeedValidation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.validations[url]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemoryClient) UpsertFeedValidation(ctx context.Context, v *models.FeedValidation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations[v.URL] = *v
	return nil
}
