package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	itemColumns = []string{
		"id", "source_id", "stage", "content_type", "raw_data", "processed_data",
		"relevance_score", "status", "created_at", "updated_at",
	}
	sourceColumns = []string{
		"id", "name", "url", "source_type", "category", "geographic_focus", "keywords",
		"active", "schedule", "total_attempts", "successful_attempts", "consecutive_failures",
		"success_rate", "last_error_message", "last_attempt_at", "created_at", "updated_at",
	}
	healthColumns = []string{
		"total_attempts", "successful_attempts", "consecutive_failures",
		"success_rate", "last_error_message", "last_attempt_at",
	}
	eventColumns = []string{
		"id", "pipeline_item_id", "title", "description", "location", "venue", "event_date",
		"start_time", "end_time", "category", "neighborhood", "price_range", "featured",
		"source_url", "created_at",
	}
	articleColumns = []string{
		"id", "pipeline_item_id", "title", "slug", "excerpt", "body", "category", "tags",
		"author", "published_at", "source_url",
	}
)

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore implements Store on Postgres through database/sql and lib/pq
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore opens and pings the database
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{db: db, now: time.Now}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Get().Info().Int("statements", len(schema)).Msg("Database schema up to date")
	return nil
}

func (s *PostgresStore) SaveItem(ctx context.Context, item *models.PipelineItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	raw, err := json.Marshal(item.RawData)
	if err != nil {
		return fmt.Errorf("marshal raw data: %w", err)
	}
	processed, err := json.Marshal(item.ProcessedData)
	if err != nil {
		return fmt.Errorf("marshal processed data: %w", err)
	}

	query, args, err := psql.Insert("pipeline_items").
		Columns(itemColumns...).
		Values(item.ID, nullString(item.SourceID), item.Stage, item.ContentType, raw, processed,
			item.RelevanceScore, string(item.Status), item.CreatedAt, item.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.Persistence("insert pipeline item", err)
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*models.PipelineItem, error) {
	query, args, err := psql.Select(itemColumns...).From("pipeline_items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, apperr.Persistence("get pipeline item", err)
	}
	return item, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]models.PipelineItem, error) {
	b := psql.Select(itemColumns...).From("pipeline_items").OrderBy("created_at DESC", "id")
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	items, err := s.queryItems(ctx, query, args...)
	return items, apperr.Persistence("list pipeline items", err)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from []models.Status, to models.Status) (*models.PipelineItem, error) {
	query, args, err := statusUpdateQuery([]string{id}, from, to, s.now().UTC())
	if err != nil {
		return nil, err
	}

	items, err := s.queryItems(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("update status", err)
	}
	if len(items) == 1 {
		return &items[0], nil
	}

	// nothing matched: tell a missing row from a disallowed transition
	if _, err := s.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return nil, apperr.ErrInvalidTransition
}

func (s *PostgresStore) BulkUpdateStatus(ctx context.Context, ids []string, from []models.Status, to models.Status) ([]models.PipelineItem, error) {
	if len(ids) == 0 {
		return []models.PipelineItem{}, nil
	}
	query, args, err := statusUpdateQuery(ids, from, to, s.now().UTC())
	if err != nil {
		return nil, err
	}

	items, err := s.queryItems(ctx, query, args...)
	return items, apperr.Persistence("bulk update status", err)
}

// statusUpdateQuery builds one UPDATE for every id whose status is in from
func statusUpdateQuery(ids []string, from []models.Status, to models.Status, at time.Time) (string, []any, error) {
	fromValues := make([]string, len(from))
	for i, st := range from {
		fromValues[i] = string(st)
	}

	query, args, err := psql.Update("pipeline_items").
		Set("status", string(to)).
		Set("updated_at", at).
		Where(sq.Eq{"id": ids}).
		Where(sq.Eq{"status": fromValues}).
		Suffix("RETURNING " + joinColumns(itemColumns)).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return query, args, nil
}

func (s *PostgresStore) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := psql.Delete("pipeline_items").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperr.Persistence("bulk delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Persistence("bulk delete", err)
	}
	return int(n), nil
}

func (s *PostgresStore) queryItems(ctx context.Context, query string, args ...any) ([]models.PipelineItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.PipelineItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (*models.PipelineItem, error) {
	var (
		item      models.PipelineItem
		sourceID  sql.NullString
		status    string
		raw       []byte
		processed []byte
	)
	err := row.Scan(&item.ID, &sourceID, &item.Stage, &item.ContentType, &raw, &processed,
		&item.RelevanceScore, &status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline item: %w", err)
	}

	item.SourceID = sourceID.String
	item.Status = models.Status(status)
	if err := json.Unmarshal(raw, &item.RawData); err != nil {
		return nil, fmt.Errorf("decode raw data: %w", err)
	}
	if err := json.Unmarshal(processed, &item.ProcessedData); err != nil {
		return nil, fmt.Errorf("decode processed data: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) CreateSource(ctx context.Context, src *models.ContentSource) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := s.now().UTC()
	src.CreatedAt = now
	src.UpdatedAt = now
	if src.Keywords == nil {
		src.Keywords = []string{}
	}

	query, args, err := psql.Insert("content_sources").
		Columns("id", "name", "url", "source_type", "category", "geographic_focus", "keywords",
			"active", "schedule", "created_at", "updated_at").
		Values(src.ID, src.Name, src.URL, string(src.SourceType), src.Category, src.GeographicFocus,
			pq.Array(src.Keywords), src.Active, src.Schedule, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.Persistence("insert source", err)
	}
	return nil
}

func (s *PostgresStore) GetSource(ctx context.Context, id string) (*models.ContentSource, error) {
	query, args, err := psql.Select(sourceColumns...).From("content_sources").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	src, err := scanSource(s.db.QueryRowContext(ctx, query, args...))
	return src, apperr.Persistence("get source", err)
}

func (s *PostgresStore) ListSources(ctx context.Context, activeOnly bool) ([]models.ContentSource, error) {
	b := psql.Select(sourceColumns...).From("content_sources").OrderBy("name")
	if activeOnly {
		b = b.Where(sq.Eq{"active": true})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("list sources", err)
	}
	defer rows.Close()

	sources := []models.ContentSource{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, apperr.Persistence("list sources", err)
		}
		sources = append(sources, *src)
	}
	return sources, apperr.Persistence("list sources", rows.Err())
}

func (s *PostgresStore) SetSourceActive(ctx context.Context, id string, active bool) (*models.ContentSource, error) {
	query, args, err := psql.Update("content_sources").
		Set("active", active).
		Set("updated_at", s.now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(sourceColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	src, err := scanSource(s.db.QueryRowContext(ctx, query, args...))
	return src, apperr.Persistence("set source active", err)
}

// RecordFetchAttempt applies the health rules in a single UPDATE so that
// concurrent attempts increment from the stored values, not a stale read.
func (s *PostgresStore) RecordFetchAttempt(ctx context.Context, id string, ok bool, errMsg string) (*models.SourceHealth, error) {
	query, args, err := fetchAttemptQuery(id, ok, errMsg, s.now().UTC())
	if err != nil {
		return nil, err
	}

	var (
		h           models.SourceHealth
		lastAttempt sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&h.TotalAttempts, &h.SuccessfulAttempts,
		&h.ConsecutiveFailures, &h.SuccessRate, &h.LastErrorMessage, &lastAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("record fetch attempt", err)
	}
	if lastAttempt.Valid {
		h.LastAttemptAt = &lastAttempt.Time
	}
	return &h, nil
}

func fetchAttemptQuery(id string, ok bool, errMsg string, at time.Time) (string, []any, error) {
	success := 0
	if ok {
		success = 1
	}

	b := psql.Update("content_sources").
		Set("total_attempts", sq.Expr("total_attempts + 1")).
		Set("successful_attempts", sq.Expr("successful_attempts + ?", success)).
		Set("success_rate", sq.Expr("(successful_attempts + ?)::float8 / (total_attempts + 1)", success)).
		Set("last_attempt_at", at).
		Set("updated_at", at)
	if ok {
		b = b.Set("consecutive_failures", 0)
	} else {
		b = b.Set("consecutive_failures", sq.Expr("consecutive_failures + 1")).
			Set("last_error_message", errMsg)
	}

	query, args, err := b.Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(healthColumns)).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return query, args, nil
}

func scanSource(row rowScanner) (*models.ContentSource, error) {
	var (
		src         models.ContentSource
		sourceType  string
		lastAttempt sql.NullTime
	)
	err := row.Scan(&src.ID, &src.Name, &src.URL, &sourceType, &src.Category, &src.GeographicFocus,
		pq.Array(&src.Keywords), &src.Active, &src.Schedule,
		&src.Health.TotalAttempts, &src.Health.SuccessfulAttempts, &src.Health.ConsecutiveFailures,
		&src.Health.SuccessRate, &src.Health.LastErrorMessage, &lastAttempt,
		&src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}

	src.SourceType = models.SourceType(sourceType)
	if lastAttempt.Valid {
		src.Health.LastAttemptAt = &lastAttempt.Time
	}
	if src.Keywords == nil {
		src.Keywords = []string{}
	}
	return &src, nil
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *models.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}

	query, args, err := psql.Insert("events").
		Columns(eventColumns...).
		Values(ev.ID, nullString(ev.PipelineItemID), ev.Title, ev.Description, ev.Location, ev.Venue,
			ev.EventDate, ev.StartTime, ev.EndTime, ev.Category, ev.Neighborhood, ev.PriceRange,
			ev.Featured, ev.SourceURL, ev.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return insertError("insert event", err)
	}
	return nil
}

func (s *PostgresStore) InsertArticle(ctx context.Context, a *models.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	query, args, err := psql.Insert("articles").
		Columns(articleColumns...).
		Values(a.ID, nullString(a.PipelineItemID), a.Title, a.Slug, a.Excerpt, a.Body, a.Category,
			pq.Array(a.Tags), a.Author, a.PublishedAt, a.SourceURL).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return insertError("insert article", err)
	}
	return nil
}

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// insertError reports unique constraint failures as ErrDuplicate so callers
// can react to a taken slug or an already published item
func insertError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.Persistence(op, fmt.Errorf("%s: %w", pqErr.Constraint, apperr.ErrDuplicate))
	}
	return apperr.Persistence(op, err)
}

func (s *PostgresStore) PublishedRecord(ctx context.Context, pipelineItemID string) (string, string, error) {
	for _, table := range []string{"events", "articles"} {
		query, args, err := psql.Select("id").From(table).
			Where(sq.Eq{"pipeline_item_id": pipelineItemID}).Limit(1).ToSql()
		if err != nil {
			return "", "", fmt.Errorf("build select: %w", err)
		}

		var id string
		err = s.db.QueryRowContext(ctx, query, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", "", apperr.Persistence("find published record", err)
		}
		return table, id, nil
	}
	return "", "", apperr.ErrNotFound
}

func (s *PostgresStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query, args, err := psql.Select(eventColumns...).From("events").
		OrderBy("event_date DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("list events", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			ev     models.Event
			itemID sql.NullString
		)
		if err := rows.Scan(&ev.ID, &itemID, &ev.Title, &ev.Description, &ev.Location, &ev.Venue,
			&ev.EventDate, &ev.StartTime, &ev.EndTime, &ev.Category, &ev.Neighborhood,
			&ev.PriceRange, &ev.Featured, &ev.SourceURL, &ev.CreatedAt); err != nil {
			return nil, apperr.Persistence("list events", err)
		}
		ev.PipelineItemID = itemID.String
		events = append(events, ev)
	}
	return events, apperr.Persistence("list events", rows.Err())
}

func (s *PostgresStore) ListArticles(ctx context.Context, limit int) ([]models.Article, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query, args, err := psql.Select(articleColumns...).From("articles").
		OrderBy("published_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("list articles", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		var (
			a      models.Article
			itemID sql.NullString
		)
		if err := rows.Scan(&a.ID, &itemID, &a.Title, &a.Slug, &a.Excerpt, &a.Body, &a.Category,
			pq.Array(&a.Tags), &a.Author, &a.PublishedAt, &a.SourceURL); err != nil {
			return nil, apperr.Persistence("list articles", err)
		}
		a.PipelineItemID = itemID.String
		articles = append(articles, a)
	}
	return articles, apperr.Persistence("list articles", rows.Err())
}

func (s *PostgresStore) GetFeedValidation(ctx context.Context, url string) (*models.FeedValidation, error) {
	query, args, err := psql.Select("url", "is_valid", "title", "description", "item_count",
		"error_message", "feed_items", "last_validated").
		From("feed_validation_cache").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		v     models.FeedValidation
		items []byte
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&v.URL, &v.IsValid, &v.Title, &v.Description,
		&v.ItemCount, &v.ErrorMessage, &items, &v.LastValidated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("get feed validation", err)
	}
	if err := json.Unmarshal(items, &v.FeedItems); err != nil {
		return nil, fmt.Errorf("decode feed items: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) UpsertFeedValidation(ctx context.Context, v *models.FeedValidation) error {
	feedItems := v.FeedItems
	if feedItems == nil {
		feedItems = []models.RSSItem{}
	}
	items, err := json.Marshal(feedItems)
	if err != nil {
		return fmt.Errorf("marshal feed items: %w", err)
	}

	query, args, err := psql.Insert("feed_validation_cache").
		Columns("url", "is_valid", "title", "description", "item_count", "error_message",
			"feed_items", "last_validated").
		Values(v.URL, v.IsValid, v.Title, v.Description, v.ItemCount, v.ErrorMessage, items,
			v.LastValidated.UTC()).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			is_valid = EXCLUDED.is_valid,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			item_count = EXCLUDED.item_count,
			error_message = EXCLUDED.error_message,
			feed_items = EXCLUDED.feed_items,
			last_validated = EXCLUDED.last_validated`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.Persistence("upsert feed validation", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
