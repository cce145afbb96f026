package publish

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/go-playground/validator/v10"
)

// Target names the public table a pipeline item is published to
type Target string

const (
	TargetEvents   Target = "events"
	TargetArticles Target = "articles"
)

// Draft is the row a pipeline item maps to. Exactly one of Event and Article is set.
type Draft struct {
	Target  Target
	Event   *models.Event
	Article *models.Article
}

func (d Draft) title() string {
	if d.Event != nil {
		return d.Event.Title
	}
	return d.Article.Title
}

// Mapper turns processed pipeline items into event or article rows
type Mapper struct {
	validate *validator.Validate
	author   string
	now      func() time.Time
}

func NewMapper(author string) *Mapper {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Mapper{validate: v, author: author, now: time.Now}
}

// Draft validates the item's processed data and maps it by category:
// event categories become events, everything else becomes an article.
func (m *Mapper) Draft(item *models.PipelineItem) (Draft, error) {
	if err := m.check(item.ProcessedData); err != nil {
		return Draft{}, err
	}

	category := item.Category()
	if models.IsEventCategory(category) {
		return Draft{Target: TargetEvents, Event: m.event(item, category)}, nil
	}
	return Draft{Target: TargetArticles, Article: m.article(item, category)}, nil
}

func (m *Mapper) check(pd models.ProcessedData) error {
	pd.Title = strings.TrimSpace(pd.Title)
	pd.Description = strings.TrimSpace(pd.Description)
	pd.ActionableDetails = strings.TrimSpace(pd.ActionableDetails)

	err := m.validate.Struct(pd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &apperr.ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return &apperr.ValidationError{Field: fe.Field(), Message: "is required"}
	case "required_without":
		return &apperr.ValidationError{Field: fe.Field(), Message: "description or actionable_details is required"}
	}
	return &apperr.ValidationError{Field: fe.Field(), Message: "failed " + fe.Tag() + " check"}
}

func (m *Mapper) event(item *models.PipelineItem, category string) *models.Event {
	pd := item.ProcessedData
	location := firstNonEmpty(pd.Location, item.RawData.Location)
	description := firstNonEmpty(pd.Description, pd.ActionableDetails)

	return &models.Event{
		PipelineItemID: item.ID,
		Title:          strings.TrimSpace(pd.Title),
		Description:    strings.TrimSpace(description),
		Location:       location,
		Venue:          Venue(location),
		EventDate:      m.eventDate(pd.Date, item.RawData.Date),
		StartTime:      DefaultStartTime,
		EndTime:        DefaultEndTime,
		Category:       category,
		Neighborhood:   Neighborhood(location),
		PriceRange:     PriceRange(pd.ActionableDetails),
		SourceURL:      item.RawData.Link(),
		CreatedAt:      m.now().UTC(),
	}
}

func (m *Mapper) article(item *models.PipelineItem, category string) *models.Article {
	pd := item.ProcessedData
	now := m.now().UTC()

	body := strings.TrimSpace(pd.Description)
	if details := strings.TrimSpace(pd.ActionableDetails); details != "" {
		if body != "" {
			body += "\n\n"
		}
		body += details
	}

	return &models.Article{
		PipelineItemID: item.ID,
		Title:          strings.TrimSpace(pd.Title),
		Slug:           UniqueSlug(pd.Title, now),
		Excerpt:        excerpt(firstNonEmpty(pd.Description, pd.ActionableDetails)),
		Body:           body,
		Category:       category,
		Tags:           []string{category},
		Author:         m.author,
		PublishedAt:    now,
		SourceURL:      item.RawData.Link(),
	}
}

// eventDate prefers the processed date, then the harvested date, then today
func (m *Mapper) eventDate(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if len(c) < 10 {
			continue
		}
		if _, err := time.Parse("2006-01-02", c[:10]); err == nil {
			return c[:10]
		}
	}
	return m.now().UTC().Format("2006-01-02")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
