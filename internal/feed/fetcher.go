package feed

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultUserAgent    = "DFWThriftBot/1.0 (+https://dfwthrift.com/about)"

	acceptFeeds = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8"
)

// Fetcher retrieves raw feed documents. It never retries; that is the caller's call.
type Fetcher struct {
	client    *resty.Client
	timeout   time.Duration
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetLogger(logger.RestyLogger{Component: "feed-fetcher"}),
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Fetch GETs url and returns the body of a 2xx response
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", f.userAgent).
		SetHeader("Accept", acceptFeeds).
		Get(url)

	if err != nil {
		if isTimeout(err) {
			return nil, &apperr.TimeoutError{URL: url, Timeout: f.timeout}
		}
		return nil, &apperr.NetworkError{URL: url, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &apperr.FetchError{URL: url, StatusCode: resp.StatusCode()}
	}

	return resp.Body(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
