package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/feed"
	"github.com/dfwthrift/contentpipe/internal/health"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/middleware"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/pipeline"
	"github.com/dfwthrift/contentpipe/internal/publish"
	"github.com/dfwthrift/contentpipe/internal/storage"
	"github.com/gofiber/fiber/v2"
)

const (
	version      = "1.0.0"
	maxListLimit = 200
)

// Services are the pipeline components the handlers call into
type Services struct {
	Store     storage.Store
	Validator *feed.Validator
	Processor *pipeline.Processor
	Harvester *pipeline.Harvester
	Reviewer  *pipeline.Reviewer
	Publisher *publish.Publisher
}

type Handlers struct {
	Services
	harvestTimeout time.Duration
	startedAt      time.Time
}

func NewHandlers(s Services, harvestTimeout time.Duration) *Handlers {
	if harvestTimeout <= 0 {
		harvestTimeout = 30 * time.Minute
	}
	return &Handlers{Services: s, harvestTimeout: harvestTimeout, startedAt: time.Now()}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": version,
		"time":    time.Now().Format(time.RFC3339),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

type validateFeedRequest struct {
	URL string `json:"url" validate:"required"`
}

// ValidateFeed handles POST /api/v1/feeds/validate
func (h *Handlers) ValidateFeed(c *fiber.Ctx) error {
	var req validateFeedRequest
	if ok, err := middleware.ValidateBody(c, &req); !ok {
		return err
	}

	result, err := h.Validator.Validate(c.UserContext(), req.URL)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// ListEvents handles GET /api/v1/events
func (h *Handlers) ListEvents(c *fiber.Ctx) error {
	events, err := h.Store.ListEvents(c.UserContext(), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": events, "total": len(events)})
}

// ListArticles handles GET /api/v1/articles
func (h *Handlers) ListArticles(c *fiber.Ctx) error {
	articles, err := h.Store.ListArticles(c.UserContext(), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": articles, "total": len(articles)})
}

type sourceView struct {
	models.ContentSource
	HealthLevel health.Level `json:"health_level"`
}

// ListSources handles GET /admin/sources
func (h *Handlers) ListSources(c *fiber.Ctx) error {
	sources, err := h.Store.ListSources(c.UserContext(), c.QueryBool("active"))
	if err != nil {
		return err
	}

	views := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		views = append(views, sourceView{ContentSource: src, HealthLevel: health.Classify(src.Health)})
	}
	return c.JSON(fiber.Map{"items": views, "total": len(views)})
}

type createSourceRequest struct {
	Name            string   `json:"name" validate:"required"`
	URL             string   `json:"url" validate:"required,url"`
	SourceType      string   `json:"source_type" validate:"required,oneof=rss web_scrape api email calendar"`
	Category        string   `json:"category"`
	GeographicFocus string   `json:"geographic_focus"`
	Keywords        []string `json:"keywords"`
	Active          *bool    `json:"active"`
	Schedule        string   `json:"schedule"`
}

// CreateSource handles POST /admin/sources
func (h *Handlers) CreateSource(c *fiber.Ctx) error {
	var req createSourceRequest
	if ok, err := middleware.ValidateBody(c, &req); !ok {
		return err
	}

	src := &models.ContentSource{
		Name:            strings.TrimSpace(req.Name),
		URL:             strings.TrimSpace(req.URL),
		SourceType:      models.SourceType(req.SourceType),
		Category:        req.Category,
		GeographicFocus: req.GeographicFocus,
		Keywords:        req.Keywords,
		Active:          req.Active == nil || *req.Active,
		Schedule:        req.Schedule,
	}
	if err := h.Store.CreateSource(c.UserContext(), src); err != nil {
		return err
	}

	logger.Get().Info().Str("id", src.ID).Str("name", src.Name).Msg("Source created")
	return c.Status(fiber.StatusCreated).JSON(sourceView{ContentSource: *src, HealthLevel: health.Classify(src.Health)})
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetSourceActive handles PATCH /admin/sources/:id/active
func (h *Handlers) SetSourceActive(c *fiber.Ctx) error {
	var req setActiveRequest
	if ok, err := middleware.ValidateBody(c, &req); !ok {
		return err
	}

	src, err := h.Store.SetSourceActive(c.UserContext(), c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(sourceView{ContentSource: *src, HealthLevel: health.Classify(src.Health)})
}

// ProcessSource handles POST /admin/sources/:id/process
func (h *Handlers) ProcessSource(c *fiber.Ctx) error {
	report, err := h.Processor.ProcessSource(c.UserContext(), c.Params("id"))
	if err != nil {
		if report != nil {
			return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
				"error":  err.Error(),
				"report": report,
			})
		}
		return err
	}
	return c.JSON(report)
}

// Harvest handles POST /admin/harvest. The run is bounded by the harvest
// timeout rather than the request.
func (h *Handlers) Harvest(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.harvestTimeout)
	defer cancel()

	report, err := h.Harvester.Run(ctx)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// ListPipeline handles GET /admin/pipeline?status=
func (h *Handlers) ListPipeline(c *fiber.Ctx) error {
	var status models.Status
	if raw := c.Query("status"); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			return &apperr.ValidationError{Field: "status", Message: "unknown status " + strconv.Quote(raw)}
		}
		status = st
	}

	items, err := h.Reviewer.ListByStatus(c.UserContext(), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items, "total": len(items)})
}

// GroupedPipeline handles GET /admin/pipeline/grouped
func (h *Handlers) GroupedPipeline(c *fiber.Ctx) error {
	groups, err := h.Reviewer.GroupByStatus(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(groups)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processed rejected"`
}

// UpdateStatus handles PATCH /admin/pipeline/:id/status
func (h *Handlers) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if ok, err := middleware.ValidateBody(c, &req); !ok {
		return err
	}

	item, err := h.Reviewer.UpdateStatus(c.UserContext(), c.Params("id"), models.Status(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(item)
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
	Status string   `json:"status" validate:"required,oneof=pending processed rejected"`
}

// BulkUpdateStatus handles POST /admin/pipeline/bulk-status
func (h *Handlers) BulkUpdateStatus(c *fiber.Ctx) error {
	var req bulkStatusRequest
	if ok, err := middleware.ValidateBody(c, &req); !ok {
		return err
	}

	items, err := h.Reviewer.BulkUpdateStatus(c.UserContext(), req.IDs, models.Status(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"updated": len(items),
		"skipped": len(req.IDs) - len(items),
		"items":   items,
	})
}

type idsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// BulkDelete handles POST /admin/pipeline/bulk-delete
func (h *Handlers) BulkDelete(c *fiber.Ctx) error {
	var req idsRequest
	if ok, err := middleware.ValidateBody(c, &req); !ok {
		return err
	}

	deleted, err := h.Reviewer.BulkDelete(c.UserContext(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// Publish handles POST /admin/pipeline/:id/publish
func (h *Handlers) Publish(c *fiber.Ctx) error {
	result, err := h.Publisher.Publish(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// BulkPublish handles POST /admin/pipeline/bulk-publish. It always answers
// 200 with per-id outcomes.
func (h *Handlers) BulkPublish(c *fiber.Ctx) error {
	var req idsRequest
	if ok, err := middleware.ValidateBody(c, &req); !ok {
		return err
	}
	return c.JSON(h.Publisher.BulkPublish(c.UserContext(), req.IDs))
}

func queryLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", storage.DefaultListLimit)
	switch {
	case limit <= 0:
		return storage.DefaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
