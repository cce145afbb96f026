package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dfwthrift/contentpipe/internal/ai"
	"github.com/dfwthrift/contentpipe/internal/cache"
	"github.com/dfwthrift/contentpipe/internal/feed"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/dfwthrift/contentpipe/internal/scrape"
	"github.com/dfwthrift/contentpipe/internal/storage"
)

type entry struct {
	title, description, link string
}

var (
	estateSale = entry{
		"Estate sale in Plano this weekend",
		"Antique furniture, vintage dishes and more at this Plano estate sale.",
		"https://example.com/estate",
	}
	garageSale = entry{
		"Garage sale on Oak Lawn Saturday",
		"Neighborhood garage sale in Dallas with thrift finds galore.",
		"https://example.com/garage",
	}
	councilNews = entry{
		"City council approves new budget",
		"The council voted on the annual city budget on Tuesday evening.",
		"https://example.com/council",
	}
)

func rssFeed(entries ...entry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Local</title><description>Local news</description>`)
	pub := time.Now().Add(-time.Hour).Format(time.RFC1123Z)
	for _, e := range entries {
		fmt.Fprintf(&b, "<item><title>%s</title><description>%s</description><link>%s</link><pubDate>%s</pubDate></item>",
			e.title, e.description, e.link, pub)
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	return s.response, s.err
}

type stubScraper struct {
	page *scrape.Page
	err  error
}

func (s *stubScraper) Scrape(ctx context.Context, url string) (*scrape.Page, error) {
	return s.page, s.err
}

type fixture struct {
	store     *storage.MemoryStore
	tracker   *cache.MemoryClient
	processor *Processor
	server    *httptest.Server
	status    int
	body      string
	t         *testing.T
}

func newFixture(t *testing.T, completer ai.Completer) *fixture {
	t.Helper()
	f := &fixture{
		store:   storage.NewMemoryStore(),
		tracker: cache.NewMemoryClient(),
		status:  http.StatusOK,
		body:    rssFeed(estateSale, garageSale, councilNews),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(f.status)
		w.Write([]byte(f.body))
	}))
	t.Cleanup(f.server.Close)
	f.t = t

	f.processor = NewProcessor(Deps{
		Sources: f.store,
		Items:   f.store,
		Fetcher: feed.NewFetcher(2*time.Second, ""),
		Deduper: feed.NewDeduper(f.tracker, time.Hour),
		Filter:  ai.NewRelevanceFilter(completer, nil, 10),
	})
	return f
}

func (f *fixture) addSource(name string, typ models.SourceType, active bool) *models.ContentSource {
	return f.addSourceAt(f.server.URL+"/feed", name, typ, active)
}

func (f *fixture) addSourceAt(url, name string, typ models.SourceType, active bool) *models.ContentSource {
	src := &models.ContentSource{
		Name:            name,
		URL:             url,
		SourceType:      typ,
		Category:        models.CategoryGeneral,
		GeographicFocus: "Dallas",
		Active:          active,
	}
	if err := f.store.CreateSource(context.Background(), src); err != nil {
		f.t.Fatalf("create source: %v", err)
	}
	return src
}
