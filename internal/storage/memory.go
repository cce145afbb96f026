package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/health"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for development and tests
type MemoryStore struct {
	mu          sync.RWMutex
	items       map[string]models.PipelineItem
	sources     map[string]models.ContentSource
	events      []models.Event
	articles    []models.Article
	validations map[string]models.FeedValidation
	now         func() time.Time

	// FailInserts makes InsertEvent and InsertArticle fail, for exercising publish errors
	FailInserts error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:       make(map[string]models.PipelineItem),
		sources:     make(map[string]models.ContentSource),
		validations: make(map[string]models.FeedValidation),
		now:         time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) SaveItem(ctx context.Context, item *models.PipelineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := m.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	m.items[item.ID] = *item
	return nil
}

func (m *MemoryStore) GetItem(ctx context.Context, id string) (*models.PipelineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &item, nil
}

func (m *MemoryStore) ListByStatus(ctx context.Context, status models.Status) ([]models.PipelineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.PipelineItem{}
	for _, item := range m.items {
		if status == "" || item.Status == status {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, from []models.Status, to models.Status) (*models.PipelineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if !containsStatus(from, item.Status) {
		return nil, apperr.ErrInvalidTransition
	}
	item.Status = to
	item.UpdatedAt = m.now()
	m.items[id] = item
	return &item, nil
}

func (m *MemoryStore) BulkUpdateStatus(ctx context.Context, ids []string, from []models.Status, to models.Status) ([]models.PipelineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	updated := []models.PipelineItem{}
	for _, id := range ids {
		item, ok := m.items[id]
		if !ok || !containsStatus(from, item.Status) {
			continue
		}
		item.Status = to
		item.UpdatedAt = now
		m.items[id] = item
		updated = append(updated, item)
	}
	return updated, nil
}

func (m *MemoryStore) BulkDelete(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			delete(m.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) CreateSource(ctx context.Context, src *models.ContentSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := m.now()
	src.CreatedAt = now
	src.UpdatedAt = now
	if src.Keywords == nil {
		src.Keywords = []string{}
	}
	m.sources[src.ID] = *src
	return nil
}

func (m *MemoryStore) GetSource(ctx context.Context, id string) (*models.ContentSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, ok := m.sources[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &src, nil
}

func (m *MemoryStore) ListSources(ctx context.Context, activeOnly bool) ([]models.ContentSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.ContentSource{}
	for _, src := range m.sources {
		if activeOnly && !src.Active {
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) SetSourceActive(ctx context.Context, id string, active bool) (*models.ContentSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	src.Active = active
	src.UpdatedAt = m.now()
	m.sources[id] = src
	return &src, nil
}

func (m *MemoryStore) RecordFetchAttempt(ctx context.Context, id string, ok bool, errMsg string) (*models.SourceHealth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, found := m.sources[id]
	if !found {
		return nil, apperr.ErrNotFound
	}
	now := m.now()
	src.Health = health.Apply(src.Health, ok, errMsg, now)
	src.UpdatedAt = now
	m.sources[id] = src

	h := src.Health
	return &h, nil
}

func (m *MemoryStore) InsertEvent(ctx context.Context, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInserts != nil {
		return m.FailInserts
	}
	if err := m.checkPublishedLocked(ev.PipelineItemID); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *MemoryStore) InsertArticle(ctx context.Context, a *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInserts != nil {
		return m.FailInserts
	}
	for _, existing := range m.articles {
		if existing.Slug == a.Slug {
			return fmt.Errorf("slug %s: %w", a.Slug, apperr.ErrDuplicate)
		}
	}
	if err := m.checkPublishedLocked(a.PipelineItemID); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.articles = append(m.articles, *a)
	return nil
}

func (m *MemoryStore) PublishedRecord(ctx context.Context, pipelineItemID string) (string, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.publishedLocked(pipelineItemID)
}

func (m *MemoryStore) publishedLocked(pipelineItemID string) (string, string, error) {
	if pipelineItemID != "" {
		for _, ev := range m.events {
			if ev.PipelineItemID == pipelineItemID {
				return "events", ev.ID, nil
			}
		}
		for _, a := range m.articles {
			if a.PipelineItemID == pipelineItemID {
				return "articles", a.ID, nil
			}
		}
	}
	return "", "", apperr.ErrNotFound
}

// checkPublishedLocked mirrors the unique index on pipeline_item_id
func (m *MemoryStore) checkPublishedLocked(pipelineItemID string) error {
	if _, _, err := m.publishedLocked(pipelineItemID); err == nil {
		return fmt.Errorf("pipeline item %s: %w", pipelineItemID, apperr.ErrDuplicate)
	}
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Event, len(m.events))
	copy(out, m.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventDate > out[j].EventDate })
	return truncate(out, limit), nil
}

func (m *MemoryStore) ListArticles(ctx context.Context, limit int) ([]models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Article, len(m.articles))
	copy(out, m.articles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return truncate(out, limit), nil
}

func (m *MemoryStore) GetFeedValidation(ctx context.Context, url string) (*models.FeedValidation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.validations[url]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MemoryStore) UpsertFeedValidation(ctx context.Context, v *models.FeedValidation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.validations[v.URL] = *v
	return nil
}

func truncate[T any](s []T, limit int) []T {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
