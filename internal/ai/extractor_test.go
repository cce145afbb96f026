package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/models"
)

var testSource = &models.ContentSource{
	ID:              "src-1",
	Name:            "Estate Sales DFW",
	URL:             "https://example.com/sales",
	SourceType:      models.SourceWebScrape,
	Category:        models.CategoryEstateSale,
	GeographicFocus: "Dallas",
}

func TestExtractMapsListings(t *testing.T) {
	stub := &stubCompleter{responses: []string{`[
		{"title":"Lakewood estate sale","description":"Mid-century furniture","date":"2026-10-17","price":"Free entry"},
		{"title":"  ","description":"untitled"},
		{"title":"Plano moving sale","location":"Plano","url":"https://example.com/plano"}
	]`}}
	e := NewExtractor(stub)
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	items, err := e.Extract(context.Background(), "page text", testSource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Location != "Dallas" || first.Type != models.CategoryEstateSale {
		t.Errorf("expected source defaults, got %+v", first)
	}
	if first.URL != "" || first.PageURL != testSource.URL || first.Link() != testSource.URL {
		t.Errorf("listing without a link must keep its own URL empty, got %+v", first)
	}
	if first.Source != testSource.Name || !first.ScrapedAt.Equal(fixed) {
		t.Errorf("unexpected attribution: %+v", first)
	}
	if items[1].Location != "Plano" || items[1].URL != "https://example.com/plano" || items[1].Link() != items[1].URL {
		t.Errorf("unexpected second item: %+v", items[1])
	}
}

func TestExtractBadJSONIsUpstreamError(t *testing.T) {
	_, err := NewExtractor(&stubCompleter{responses: []string{"no listings here"}}).
		Extract(context.Background(), "page", testSource)

	var ue *apperr.UpstreamServiceError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamServiceError, got %v", err)
	}
	var pe *apperr.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected wrapped ParseError, got %v", err)
	}
}

func TestExtractPropagatesModelFailure(t *testing.T) {
	boom := &apperr.UpstreamServiceError{Service: "openai", StatusCode: 500, Err: errors.New("boom")}
	_, err := NewExtractor(&stubCompleter{errs: []error{boom}}).
		Extract(context.Background(), "page", testSource)
	if !errors.Is(err, boom) {
		t.Fatalf("expected model error to propagate, got %v", err)
	}
}
