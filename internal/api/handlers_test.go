package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dfwthrift/contentpipe/internal/cache"
	"github.com/dfwthrift/contentpipe/internal/feed"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/pipeline"
	"github.com/dfwthrift/contentpipe/internal/publish"
	"github.com/dfwthrift/contentpipe/internal/storage"
	"github.com/gofiber/fiber/v2"
)

const adminKey = "test-admin-key"

func testFeed() string {
	pub := time.Now().Add(-2 * time.Hour).Format(time.RFC1123Z)
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Plano Sales</title><description>Weekend sales</description>
<item><title>Estate sale in Plano this weekend</title>
<description>Antique furniture, vintage dishes and more at this Plano estate sale.</description>
<link>https://example.com/estate</link><pubDate>%s</pubDate></item>
</channel></rss>`, pub)
}

type testServer struct {
	app   *fiber.App
	store *storage.MemoryStore
	feed  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed())
	}))
	t.Cleanup(feedServer.Close)

	store := storage.NewMemoryStore()
	fetcher := feed.NewFetcher(5*time.Second, "")
	parser := feed.NewParser()
	processor := pipeline.NewProcessor(pipeline.Deps{
		Sources: store,
		Items:   store,
		Fetcher: fetcher,
		Parser:  parser,
		Deduper: feed.NewDeduper(cache.NewMemoryClient(), time.Hour),
	})

	h := NewHandlers(Services{
		Store:     store,
		Validator: feed.NewValidator(fetcher, parser, store, time.Hour),
		Processor: processor,
		Harvester: pipeline.NewHarvester(processor),
		Reviewer:  pipeline.NewReviewer(store),
		Publisher: publish.NewPublisher(store, store, publish.NewMapper("DFW Thrift Editorial"), nil),
	}, time.Minute)

	return &testServer{
		app:   NewApp(h, AuthOptions{APIKey: adminKey}, 0),
		store: store,
		feed:  feedServer,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, admin bool) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-API-Key", adminKey)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (s *testServer) saveItem(t *testing.T, status models.Status, category string) string {
	t.Helper()
	item := &models.PipelineItem{
		Stage:       models.StageProcessed,
		ContentType: category,
		RawData: models.RawContentItem{
			Title: "Estate sale in Plano",
			URL:   "https://example.com/estate",
		},
		ProcessedData: models.ProcessedData{
			Title:             "Estate sale in Plano",
			Description:       "Mid-century furniture and vintage dishes.",
			Location:          "Legacy West, Plano, TX",
			Category:          category,
			Date:              "2026-10-17",
			ActionableDetails: "Free admission, 8am to 2pm",
		},
		RelevanceScore: 8,
		Status:         status,
	}
	if err := s.store.SaveItem(context.Background(), item); err != nil {
		t.Fatalf("save: %v", err)
	}
	return item.ID
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/v1/health", nil, false)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("unexpected response %d %v", code, body)
	}
}

func TestAdminRequiresCredentials(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/admin/sources", nil, false)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/api/v1/nope", nil, false)
	if code != http.StatusNotFound || body["error"] == nil {
		t.Errorf("unexpected response %d %v", code, body)
	}
}

func TestValidateFeed(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/feeds/validate", map[string]string{"url": s.feed.URL + "/rss"}, false)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", code, body)
	}
	if body["is_valid"] != true || body["item_count"] != float64(1) {
		t.Errorf("unexpected validation %v", body)
	}

	code, body = s.do(t, http.MethodPost, "/api/v1/feeds/validate", map[string]string{"url": s.feed.URL + "/missing"}, false)
	if code != http.StatusOK || body["is_valid"] != false || body["error_message"] == nil {
		t.Errorf("expected an invalid result, got %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodPost, "/api/v1/feeds/validate", map[string]string{"url": "ftp://example.com"}, false)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a non-http URL, got %d", code)
	}

	code, _ = s.do(t, http.MethodPost, "/api/v1/feeds/validate", map[string]string{}, false)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a missing URL, got %d", code)
	}
}

func TestSourcesLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, created := s.do(t, http.MethodPost, "/admin/sources", map[string]any{
		"name":             "Plano Sales",
		"url":              s.feed.URL + "/rss",
		"source_type":      "rss",
		"category":         "estate_sale",
		"geographic_focus": "Plano",
	}, true)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", code, created)
	}
	id, _ := created["id"].(string)
	if id == "" || created["active"] != true || created["health_level"] != "healthy" {
		t.Fatalf("unexpected source %v", created)
	}

	code, report := s.do(t, http.MethodPost, "/admin/sources/"+id+"/process", nil, true)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", code, report)
	}
	if report["fetched"] != float64(1) || report["saved"] != float64(1) || report["used_fallback"] != true {
		t.Errorf("unexpected report %v", report)
	}

	code, listed := s.do(t, http.MethodGet, "/admin/sources", nil, true)
	if code != http.StatusOK || listed["total"] != float64(1) {
		t.Fatalf("unexpected listing %d %v", code, listed)
	}
	src := listed["items"].([]any)[0].(map[string]any)
	h := src["health"].(map[string]any)
	if h["total_attempts"] != float64(1) || h["success_rate"] != float64(1) {
		t.Errorf("unexpected health %v", h)
	}

	code, paused := s.do(t, http.MethodPatch, "/admin/sources/"+id+"/active", map[string]any{"active": false}, true)
	if code != http.StatusOK || paused["active"] != false {
		t.Fatalf("unexpected pause response %d %v", code, paused)
	}

	code, _ = s.do(t, http.MethodPost, "/admin/sources/"+id+"/process", nil, true)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a paused source, got %d", code)
	}

	code, _ = s.do(t, http.MethodPost, "/admin/sources/unknown/process", nil, true)
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestCreateSourceValidation(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/admin/sources", map[string]any{
		"name":        "Bad",
		"url":         "https://example.com",
		"source_type": "carrier_pigeon",
	}, true)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	fields := body["fields"].(map[string]any)
	if fields["source_type"] != "oneof" {
		t.Errorf("unexpected fields %v", fields)
	}
}

func TestProcessSourceReportsFetchFailure(t *testing.T) {
	s := newTestServer(t)

	src := &models.ContentSource{Name: "Broken", URL: s.feed.URL + "/missing", SourceType: models.SourceRSS, Active: true}
	if err := s.store.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("create: %v", err)
	}

	code, body := s.do(t, http.MethodPost, "/admin/sources/"+src.ID+"/process", nil, true)
	if code != http.StatusBadGateway || body["report"] == nil {
		t.Errorf("expected 502 with a report, got %d %v", code, body)
	}
}

func TestHarvest(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/rss", "/missing"} {
		src := &models.ContentSource{Name: path, URL: s.feed.URL + path, SourceType: models.SourceRSS, Active: true}
		if err := s.store.CreateSource(context.Background(), src); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	code, body := s.do(t, http.MethodPost, "/admin/harvest", nil, true)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", code, body)
	}
	if body["saved"] != float64(1) || body["failed"] != float64(1) {
		t.Errorf("unexpected harvest report %v", body)
	}
}

func TestPipelineStatusTransitions(t *testing.T) {
	s := newTestServer(t)
	id := s.saveItem(t, models.StatusPending, models.CategoryEstateSale)

	code, item := s.do(t, http.MethodPatch, "/admin/pipeline/"+id+"/status", map[string]string{"status": "processed"}, true)
	if code != http.StatusOK || item["status"] != "processed" {
		t.Fatalf("unexpected response %d %v", code, item)
	}

	code, _ = s.do(t, http.MethodPatch, "/admin/pipeline/"+id+"/status", map[string]string{"status": "published"}, true)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 publishing through a status change, got %d", code)
	}

	code, _ = s.do(t, http.MethodPatch, "/admin/pipeline/"+id+"/status", map[string]string{"status": "pending"}, true)
	if code != http.StatusConflict {
		t.Errorf("expected 409 moving backwards, got %d", code)
	}

	code, _ = s.do(t, http.MethodPatch, "/admin/pipeline/"+id+"/status", map[string]string{"status": "archived"}, true)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for an unknown status, got %d", code)
	}

	code, _ = s.do(t, http.MethodPatch, "/admin/pipeline/missing/status", map[string]string{"status": "rejected"}, true)
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	code, list := s.do(t, http.MethodGet, "/admin/pipeline?status=processed", nil, true)
	if code != http.StatusOK || list["total"] != float64(1) {
		t.Errorf("unexpected listing %d %v", code, list)
	}

	code, _ = s.do(t, http.MethodGet, "/admin/pipeline?status=Processed", nil, true)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a mis-cased status, got %d", code)
	}

	code, grouped := s.do(t, http.MethodGet, "/admin/pipeline/grouped", nil, true)
	if code != http.StatusOK {
		t.Fatalf("unexpected grouped response %d", code)
	}
	for _, st := range models.AllStatuses {
		if _, ok := grouped[string(st)]; !ok {
			t.Errorf("grouped response missing %s", st)
		}
	}
}

func TestBulkStatusAndDelete(t *testing.T) {
	s := newTestServer(t)
	pending := s.saveItem(t, models.StatusPending, models.CategoryGarageSale)
	published := s.saveItem(t, models.StatusPublished, models.CategoryGarageSale)

	code, body := s.do(t, http.MethodPost, "/admin/pipeline/bulk-status", map[string]any{
		"ids":    []string{pending, published},
		"status": "rejected",
	}, true)
	if code != http.StatusOK || body["updated"] != float64(1) || body["skipped"] != float64(1) {
		t.Fatalf("unexpected bulk status %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodPost, "/admin/pipeline/bulk-status", map[string]any{"ids": []string{pending}, "status": "published"}, true)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a bulk publish through status, got %d", code)
	}

	code, _ = s.do(t, http.MethodPost, "/admin/pipeline/bulk-status", map[string]any{"ids": []string{}, "status": "rejected"}, true)
	if code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for empty ids, got %d", code)
	}

	code, body = s.do(t, http.MethodPost, "/admin/pipeline/bulk-delete", map[string]any{"ids": []string{pending, "missing"}}, true)
	if code != http.StatusOK || body["deleted"] != float64(1) {
		t.Errorf("unexpected bulk delete %d %v", code, body)
	}
}

func TestPublishEndpoints(t *testing.T) {
	s := newTestServer(t)
	eventID := s.saveItem(t, models.StatusProcessed, models.CategoryEstateSale)
	articleID := s.saveItem(t, models.StatusProcessed, models.CategoryThriftStore)
	pendingID := s.saveItem(t, models.StatusPending, models.CategoryEstateSale)

	code, result := s.do(t, http.MethodPost, "/admin/pipeline/"+eventID+"/publish", nil, true)
	if code != http.StatusCreated || result["target"] != "events" {
		t.Fatalf("unexpected publish %d %v", code, result)
	}

	code, _ = s.do(t, http.MethodPost, "/admin/pipeline/"+pendingID+"/publish", nil, true)
	if code != http.StatusConflict {
		t.Errorf("expected 409 for a pending item, got %d", code)
	}

	code, bulk := s.do(t, http.MethodPost, "/admin/pipeline/bulk-publish", map[string]any{
		"ids": []string{articleID, eventID, "missing"},
	}, true)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(bulk["success"].([]any)) != 1 || len(bulk["failed"].([]any)) != 2 {
		t.Errorf("unexpected bulk publish %v", bulk)
	}

	code, events := s.do(t, http.MethodGet, "/api/v1/events", nil, false)
	if code != http.StatusOK || events["total"] != float64(1) {
		t.Errorf("unexpected events %d %v", code, events)
	}
	ev := events["items"].([]any)[0].(map[string]any)
	if ev["neighborhood"] != "Plano" || ev["price_range"] != "free" || ev["venue"] != "Legacy West" {
		t.Errorf("unexpected event mapping %v", ev)
	}

	code, articles := s.do(t, http.MethodGet, "/api/v1/articles?limit=1", nil, false)
	if code != http.StatusOK || articles["total"] != float64(1) {
		t.Errorf("unexpected articles %d %v", code, articles)
	}
}
