package feed

import (
	"net/url"
	"strings"
)

// UnwrapGoogleNewsURL returns the article URL behind a news.google.com
// redirect link when it is carried in a url= parameter. Encoded
// /rss/articles/ ids cannot be decoded offline and are returned unchanged.
func UnwrapGoogleNewsURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), "news.google.com") {
		return link
	}

	target := u.Query().Get("url")
	if target == "" {
		return link
	}

	t, err := url.Parse(target)
	if err != nil || (t.Scheme != "http" && t.Scheme != "https") || t.Host == "" {
		return link
	}
	return target
}
