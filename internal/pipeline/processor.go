package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dfwthrift/contentpipe/internal/ai"
	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/feed"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/scrape"
	"github.com/dfwthrift/contentpipe/internal/storage"
)

// Report summarises one source run
type Report struct {
	SourceID     string   `json:"source_id"`
	SourceName   string   `json:"source_name"`
	Fetched      int      `json:"fetched"`
	Duplicates   int      `json:"duplicates"`
	BelowCutoff  int      `json:"below_threshold"`
	Saved        int      `json:"saved"`
	SaveFailures int      `json:"save_failures"`
	UsedFallback bool     `json:"used_fallback"`
	ItemIDs      []string `json:"item_ids"`
	Error        string   `json:"error,omitempty"`
}

// Processor runs the ingestion chain for a single source:
// fetch, parse, record health, dedupe, score, save.
type Processor struct {
	sources   storage.SourceStore
	items     storage.PipelineStore
	fetcher   feed.RawFetcher
	parser    *feed.Parser
	deduper   *feed.Deduper
	filter    *ai.RelevanceFilter
	scraper   scrape.Scraper
	extractor *ai.Extractor
	archive   storage.Archive
	now       func() time.Time
}

// Deps are the collaborators of a Processor. Scraper, Extractor and Archive may be nil.
type Deps struct {
	Sources   storage.SourceStore
	Items     storage.PipelineStore
	Fetcher   feed.RawFetcher
	Parser    *feed.Parser
	Deduper   *feed.Deduper
	Filter    *ai.RelevanceFilter
	Scraper   scrape.Scraper
	Extractor *ai.Extractor
	Archive   storage.Archive
}

func NewProcessor(d Deps) *Processor {
	if d.Parser == nil {
		d.Parser = feed.NewParser()
	}
	if d.Deduper == nil {
		d.Deduper = feed.NewDeduper(nil, 0)
	}
	if d.Filter == nil {
		d.Filter = ai.NewRelevanceFilter(nil, nil, 0)
	}
	return &Processor{
		sources:   d.Sources,
		items:     d.Items,
		fetcher:   d.Fetcher,
		parser:    d.Parser,
		deduper:   d.Deduper,
		filter:    d.Filter,
		scraper:   d.Scraper,
		extractor: d.Extractor,
		archive:   d.Archive,
		now:       time.Now,
	}
}

// ProcessSource runs one source with the per-source relevance threshold
func (p *Processor) ProcessSource(ctx context.Context, sourceID string) (*Report, error) {
	src, err := p.sources.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !src.Active {
		return nil, &apperr.ValidationError{Field: "source", Message: "source is paused"}
	}
	return p.process(ctx, src, ai.ThresholdSourceProcessing)
}

func (p *Processor) process(ctx context.Context, src *models.ContentSource, threshold int) (*Report, error) {
	log := logger.Get().With().
		Str("source_id", src.ID).
		Str("source", src.Name).
		Logger()

	report := &Report{SourceID: src.ID, SourceName: src.Name, ItemIDs: []string{}}

	var (
		raw []models.RawContentItem
		err error
	)
	switch src.SourceType {
	case models.SourceRSS:
		raw, err = p.harvestFeed(ctx, src)
	case models.SourceWebScrape:
		raw, err = p.harvestPage(ctx, src)
	default:
		err = &apperr.ValidationError{
			Field:   "source_type",
			Message: fmt.Sprintf("%s sources cannot be processed", src.SourceType),
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("Source harvest failed")
		report.Error = err.Error()
		return report, err
	}
	report.Fetched = len(raw)

	unique, duplicates := p.deduper.FilterNew(ctx, raw)
	report.Duplicates = duplicates

	result := p.filter.Filter(ctx, unique, ai.VariantFor(src), threshold)
	report.BelowCutoff = result.Dropped
	report.UsedFallback = result.UsedFallback()

	saved := make([]models.RawContentItem, 0, len(result.Items))
	for _, scored := range result.Items {
		item := &models.PipelineItem{
			SourceID:       src.ID,
			Stage:          models.StageProcessed,
			ContentType:    contentType(scored),
			RawData:        scored.Raw,
			ProcessedData:  scored.Processed,
			RelevanceScore: scored.Score,
			Status:         models.StatusPending,
		}
		if err := p.items.SaveItem(ctx, item); err != nil {
			log.Error().Err(err).Str("title", scored.Raw.Title).Msg("Error saving pipeline item")
			report.SaveFailures++
			continue
		}
		saved = append(saved, scored.Raw)
		report.Saved++
		report.ItemIDs = append(report.ItemIDs, item.ID)
		p.archiveItem(ctx, item)
	}

	// only saved items are marked: anything dropped here may still clear a
	// lower threshold on another run, and failed saves are retried
	if err := p.deduper.MarkProcessed(ctx, saved); err != nil {
		log.Error().Err(err).Msg("Error marking items as processed")
	}

	log.Info().
		Int("fetched", report.Fetched).
		Int("duplicates", report.Duplicates).
		Int("below_threshold", report.BelowCutoff).
		Int("saved", report.Saved).
		Bool("fallback", report.UsedFallback).
		Msg("Source processed")

	return report, nil
}

func (p *Processor) harvestFeed(ctx context.Context, src *models.ContentSource) ([]models.RawContentItem, error) {
	body, err := p.fetcher.Fetch(ctx, src.URL)
	if err == nil {
		var parsed *feed.ParsedFeed
		parsed, err = p.parser.Parse(body)
		if err == nil {
			p.recordAttempt(ctx, src, nil)
			return feed.ToRawItems(parsed.Items, src, p.now()), nil
		}
	}
	p.recordAttempt(ctx, src, err)
	return nil, err
}

func (p *Processor) harvestPage(ctx context.Context, src *models.ContentSource) ([]models.RawContentItem, error) {
	if p.scraper == nil || p.extractor == nil {
		return nil, &apperr.ValidationError{Field: "source_type", Message: "web scraping is not configured"}
	}

	page, err := p.scraper.Scrape(ctx, src.URL)
	p.recordAttempt(ctx, src, err)
	if err != nil {
		return nil, err
	}
	if page.Text == "" {
		return []models.RawContentItem{}, nil
	}
	return p.extractor.Extract(ctx, page.Text, src)
}

// recordAttempt updates source health. A failed write is logged, never returned.
func (p *Processor) recordAttempt(ctx context.Context, src *models.ContentSource, attemptErr error) {
	msg := ""
	if attemptErr != nil {
		msg = attemptErr.Error()
	}
	h, err := p.sources.RecordFetchAttempt(ctx, src.ID, attemptErr == nil, msg)
	if err != nil {
		logger.Get().Error().Err(err).Str("source_id", src.ID).Msg("Error recording fetch attempt")
		return
	}
	if attemptErr != nil {
		logger.Get().Warn().
			Str("source_id", src.ID).
			Int("consecutive_failures", h.ConsecutiveFailures).
			Float64("success_rate", h.SuccessRate).
			Msg("Fetch attempt failed")
	}
}

func (p *Processor) archiveItem(ctx context.Context, item *models.PipelineItem) {
	if p.archive == nil {
		return
	}
	if err := p.archive.Put(ctx, item); err != nil && !errors.Is(err, context.Canceled) {
		logger.Get().Warn().Err(err).Str("id", item.ID).Msg("Error archiving raw item")
	}
}

func contentType(s ai.ScoredItem) string {
	if s.Processed.Category != "" {
		return s.Processed.Category
	}
	if s.Raw.Type != "" {
		return s.Raw.Type
	}
	return models.CategoryGeneral
}
