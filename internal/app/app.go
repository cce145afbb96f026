package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfwthrift/contentpipe/internal/ai"
	"github.com/dfwthrift/contentpipe/internal/api"
	"github.com/dfwthrift/contentpipe/internal/cache"
	"github.com/dfwthrift/contentpipe/internal/config"
	"github.com/dfwthrift/contentpipe/internal/feed"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/notify"
	"github.com/dfwthrift/contentpipe/internal/pipeline"
	"github.com/dfwthrift/contentpipe/internal/publish"
	"github.com/dfwthrift/contentpipe/internal/scrape"
	"github.com/dfwthrift/contentpipe/internal/storage"
	"github.com/gofiber/fiber/v2"
)

// App holds every wired component of the content pipeline
type App struct {
	Config    *config.Config
	Store     storage.Store
	Cache     cache.Client
	Validator *feed.Validator
	Processor *pipeline.Processor
	Harvester *pipeline.Harvester
	Reviewer  *pipeline.Reviewer
	Publisher *publish.Publisher

	notifier *notify.RabbitMQNotifier
}

// New builds the application from cfg. Optional integrations (Redis,
// OpenAI, Firecrawl, R2, RabbitMQ) are skipped when unconfigured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()
	a := &App{Config: cfg}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store

	var validationCache feed.ValidationCache = store
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL, cfg.RedisPrefix, cfg.FeedValidationTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
		}
		a.Cache = redisClient
		validationCache = redisClient
	} else {
		log.Warn().Msg("REDIS_URL not set, dedupe markers are kept in memory")
		a.Cache = cache.NewMemoryClient()
	}

	fetcher := feed.NewFetcher(cfg.FeedFetchTimeout, cfg.FeedUserAgent)
	parser := feed.NewParser()
	a.Validator = feed.NewValidator(fetcher, parser, validationCache, cfg.FeedValidationTTL)

	var completer ai.Completer
	if cfg.AIApiKey != "" {
		completer = ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:            cfg.AIApiKey,
			BaseURL:           cfg.AIBaseURL,
			Model:             cfg.AIModel,
			Temperature:       cfg.AITemperature,
			MaxTokens:         cfg.AIMaxTokens,
			Timeout:           cfg.AITimeout,
			RequestsPerMinute: cfg.AIRequestsPerMinute,
		})
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, relevance scoring uses the local heuristic")
	}

	deps := pipeline.Deps{
		Sources: store,
		Items:   store,
		Fetcher: fetcher,
		Parser:  parser,
		Deduper: feed.NewDeduper(a.Cache, cfg.CacheTTL),
		Filter:  ai.NewRelevanceFilter(completer, ai.NewPostProcessor(), cfg.AIBatchSize),
	}

	if cfg.FirecrawlAPIKey != "" && completer != nil {
		deps.Scraper = scrape.NewFirecrawlClient(cfg.FirecrawlAPIKey, cfg.FirecrawlBaseURL, cfg.HTTPTimeout)
		deps.Extractor = ai.NewExtractor(completer)
	}

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Raw item archive disabled")
	} else {
		deps.Archive = archive
	}

	a.Processor = pipeline.NewProcessor(deps)
	a.Harvester = pipeline.NewHarvester(a.Processor)
	a.Reviewer = pipeline.NewReviewer(store)

	var notifier publish.Notifier
	if cfg.RabbitMQURL != "" {
		n, err := notify.NewRabbitMQNotifier(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Warn().Err(err).Msg("Publish notifications disabled")
		} else {
			a.notifier = n
			notifier = n
		}
	}
	a.Publisher = publish.NewPublisher(store, store, publish.NewMapper(cfg.ArticleAuthor), notifier)

	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StoreDriver == "memory" {
		logger.Get().Warn().Msg("Using the in-memory store, nothing survives a restart")
		return storage.NewMemoryStore(), nil
	}

	pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return pg, nil
}

func newArchive(ctx context.Context, cfg *config.Config) (storage.Archive, error) {
	if cfg.R2Endpoint != "" {
		return storage.NewS3Archive(ctx, cfg.R2Endpoint, cfg.R2AccessKey, cfg.R2SecretKey, cfg.R2Bucket)
	}
	if cfg.ArchivePath == "" {
		return nil, errors.New("no archive location configured")
	}
	return storage.NewFileArchive(cfg.ArchivePath)
}

// Migrate creates the Postgres schema. It is a no-op for the memory store.
func (a *App) Migrate(ctx context.Context) error {
	pg, ok := a.Store.(*storage.PostgresStore)
	if !ok {
		return nil
	}
	return pg.Migrate(ctx)
}

// HTTP returns the fiber app serving the public and admin APIs
func (a *App) HTTP() *fiber.App {
	h := api.NewHandlers(api.Services{
		Store:     a.Store,
		Validator: a.Validator,
		Processor: a.Processor,
		Harvester: a.Harvester,
		Reviewer:  a.Reviewer,
		Publisher: a.Publisher,
	}, 0)

	return api.NewApp(h, api.AuthOptions{
		APIKey:    a.Config.AdminAPIKey,
		JWTSecret: a.Config.SupabaseJWTSecret,
	}, a.Config.HTTPTimeout)
}

// Close releases connections in reverse order of creation
func (a *App) Close() error {
	var errs []error
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
