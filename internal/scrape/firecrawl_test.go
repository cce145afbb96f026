package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
)

func newScrapeServer(t *testing.T, status int, body string, got *scrapeRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrape" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got != nil {
			json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeReturnsMarkdown(t *testing.T) {
	var req scrapeRequest
	srv := newScrapeServer(t, http.StatusOK,
		`{"success":true,"data":{"markdown":"# Sales\n\nEstate sale Saturday","html":"<h1>x</h1>","metadata":{"title":"Sales"}}}`, &req)

	page, err := NewFirecrawlClient("key", srv.URL, time.Second).Scrape(context.Background(), "https://example.com/sales")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Text != "# Sales\n\nEstate sale Saturday" || page.Title != "Sales" {
		t.Errorf("unexpected page: %+v", page)
	}
	if req.URL != "https://example.com/sales" || !req.OnlyMainContent || len(req.Formats) != 2 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestScrapeFallsBackToHTMLText(t *testing.T) {
	html := `<html><body><nav>Menu</nav><h2>Lakewood estate sale</h2><p>Fri  to   Sun, 9am</p><script>x()</script></body></html>`
	body, _ := json.Marshal(map[string]any{
		"success": true,
		"data":    map[string]any{"markdown": "", "html": html},
	})
	srv := newScrapeServer(t, http.StatusOK, string(body), nil)

	page, err := NewFirecrawlClient("key", srv.URL, time.Second).Scrape(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Text != "Lakewood estate sale\nFri to Sun, 9am" {
		t.Errorf("unexpected text %q", page.Text)
	}
}

func TestScrapeFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-2xx", http.StatusPaymentRequired, `{"success":false,"error":"out of credits"}`},
		{"success false", http.StatusOK, `{"success":false,"error":"blocked"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newScrapeServer(t, tt.status, tt.body, nil)
			_, err := NewFirecrawlClient("key", srv.URL, time.Second).Scrape(context.Background(), "https://example.com")

			var ue *apperr.UpstreamServiceError
			if !errors.As(err, &ue) {
				t.Fatalf("expected UpstreamServiceError, got %v", err)
			}
		})
	}
}

func TestTextFromHTMLWithoutBlocks(t *testing.T) {
	text, err := TextFromHTML("<div>just   some <b>text</b></div>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "just some text") {
		t.Errorf("unexpected text %q", text)
	}
}
