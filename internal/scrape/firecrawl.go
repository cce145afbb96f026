package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/go-resty/resty/v2"
)

const serviceFirecrawl = "firecrawl"

// Page is the content of one scraped URL
type Page struct {
	URL      string
	Markdown string
	HTML     string
	Title    string
	Text     string
}

// Scraper is implemented by FirecrawlClient
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
}

// FirecrawlClient calls a Firecrawl-compatible /scrape endpoint
type FirecrawlClient struct {
	client  *resty.Client
	apiKey  string
	baseURL string
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	IncludeTags     []string `json:"includeTags,omitempty"`
	ExcludeTags     []string `json:"excludeTags,omitempty"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
		Metadata struct {
			Title     string `json:"title"`
			SourceURL string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
}

var (
	includeTags = []string{"main", "article", ".event", ".listing", ".sale"}
	excludeTags = []string{"nav", "footer", "header", "script", "style", ".ad", ".advertisement"}
)

func NewFirecrawlClient(apiKey, baseURL string, timeout time.Duration) *FirecrawlClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &FirecrawlClient{
		client: resty.New().
			SetTimeout(timeout).
			SetLogger(logger.RestyLogger{Component: serviceFirecrawl}),
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Scrape fetches url through Firecrawl. Text is the markdown, or the
// visible text of the HTML when no markdown came back.
func (c *FirecrawlClient) Scrape(ctx context.Context, url string) (*Page, error) {
	if c.apiKey == "" {
		return nil, &apperr.UpstreamServiceError{Service: serviceFirecrawl, Err: errors.New("api key not configured")}
	}

	var result scrapeResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(scrapeRequest{
			URL:             url,
			Formats:         []string{"markdown", "html"},
			IncludeTags:     includeTags,
			ExcludeTags:     excludeTags,
			OnlyMainContent: true,
		}).
		SetResult(&result).
		Post(c.baseURL + "/scrape")

	if err != nil {
		return nil, &apperr.UpstreamServiceError{Service: serviceFirecrawl, Err: fmt.Errorf("request failed: %w", err)}
	}
	if resp.IsError() {
		return nil, &apperr.UpstreamServiceError{
			Service:    serviceFirecrawl,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("scrape %s failed", url),
		}
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "success=false"
		}
		return nil, &apperr.UpstreamServiceError{Service: serviceFirecrawl, Err: errors.New(msg)}
	}

	page := &Page{
		URL:      url,
		Markdown: strings.TrimSpace(result.Data.Markdown),
		HTML:     result.Data.HTML,
		Title:    result.Data.Metadata.Title,
	}

	page.Text = page.Markdown
	if page.Text == "" && page.HTML != "" {
		text, err := TextFromHTML(page.HTML)
		if err != nil {
			logger.Get().Warn().Err(err).Str("url", url).Msg("Could not extract text from scraped HTML")
		}
		page.Text = text
	}

	return page, nil
}

// TextFromHTML returns the visible text of an HTML document, one block per line
func TextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li, td, address, time").Each(func(i int, s *goquery.Selection) {
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}
