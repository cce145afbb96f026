package feed

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
)

// DefaultValidationTTL is how long a cached validation is served without refetching
const DefaultValidationTTL = time.Hour

// RawFetcher is the part of Fetcher the validator and processor depend on
type RawFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ValidationCache stores validation results keyed by URL.
// GetFeedValidation returns nil, nil when nothing is cached.
type ValidationCache interface {
	GetFeedValidation(ctx context.Context, url string) (*models.FeedValidation, error)
	UpsertFeedValidation(ctx context.Context, v *models.FeedValidation) error
}

// Validator checks whether a URL serves a usable feed
type Validator struct {
	fetcher RawFetcher
	parser  *Parser
	cache   ValidationCache
	ttl     time.Duration
	now     func() time.Time
}

func NewValidator(fetcher RawFetcher, parser *Parser, cache ValidationCache, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = DefaultValidationTTL
	}
	return &Validator{
		fetcher: fetcher,
		parser:  parser,
		cache:   cache,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Validate returns the validation result for rawURL, serving a fresh cached
// entry when one exists. Fetch and parse failures produce an invalid result,
// not an error; only a malformed URL is returned as an error.
func (v *Validator) Validate(ctx context.Context, rawURL string) (*models.FeedValidation, error) {
	log := logger.Get()
	feedURL := strings.TrimSpace(rawURL)
	if err := checkFeedURL(feedURL); err != nil {
		return nil, err
	}

	if v.cache != nil {
		cached, err := v.cache.GetFeedValidation(ctx, feedURL)
		if err != nil {
			log.Error().Err(err).Str("url", feedURL).Msg("Error reading feed validation cache")
		} else if cached.IsFresh(v.now(), v.ttl) {
			log.Debug().Str("url", feedURL).Msg("Serving cached feed validation")
			return cached, nil
		}
	}

	result := v.check(ctx, feedURL)

	if v.cache != nil {
		if err := v.cache.UpsertFeedValidation(ctx, result); err != nil {
			log.Error().Err(err).Str("url", feedURL).Msg("Error writing feed validation cache")
		}
	}

	log.Info().
		Str("url", feedURL).
		Bool("is_valid", result.IsValid).
		Int("item_count", result.ItemCount).
		Msg("Validated feed")

	return result, nil
}

func (v *Validator) check(ctx context.Context, feedURL string) *models.FeedValidation {
	result := &models.FeedValidation{
		URL:           feedURL,
		FeedItems:     []models.RSSItem{},
		LastValidated: v.now(),
	}

	raw, err := v.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	parsed, err := v.parser.Parse(raw)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	result.IsValid = true
	result.Title = parsed.Title
	result.Description = parsed.Description
	result.ItemCount = len(parsed.Items)
	result.FeedItems = parsed.Items
	return result
}

func checkFeedURL(raw string) error {
	if raw == "" {
		return &apperr.ValidationError{Field: "url", Message: "is required"}
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &apperr.ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
	}
	return nil
}
