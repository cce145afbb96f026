package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Hash generates a SHA-256 hash of the input string
func Hash(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// NormalizeURL lowercases scheme and host, drops the fragment, tracking
// parameters and any trailing slash so the same article hashes the same.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(key, "utm_") || key == "fbclid" || key == "gclid" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// DedupKey is the hash used to recognise content seen in an earlier run.
// Items without a link fall back to source and title.
func DedupKey(link, source, title string) string {
	if link != "" {
		return Hash(NormalizeURL(link))
	}
	return Hash(strings.ToLower(source) + "|" + strings.ToLower(strings.TrimSpace(title)))
}
