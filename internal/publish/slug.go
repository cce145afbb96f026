package publish

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallbackSlug = "article"
	maxSlugBase  = 80
	suffixDigits = 6
	suffixMod    = 1000000
)

// Slugify folds diacritics, lowercases, and joins alphanumeric runs with hyphens
func Slugify(title string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > maxSlugBase {
		slug = strings.TrimRight(slug[:maxSlugBase], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// UniqueSlug appends the last six digits of the millisecond timestamp
func UniqueSlug(title string, at time.Time) string {
	return fmt.Sprintf("%s-%06d", Slugify(title), at.UnixMilli()%suffixMod)
}

// NextSlug bumps the six-digit suffix of a slug made by UniqueSlug, wrapping
// at a million. A slug without that suffix gets one.
func NextSlug(slug string) string {
	if i := strings.LastIndexByte(slug, '-'); i >= 0 && len(slug)-i-1 == suffixDigits {
		if n, err := strconv.Atoi(slug[i+1:]); err == nil && strings.Trim(slug[i+1:], "0123456789") == "" {
			return fmt.Sprintf("%s-%06d", slug[:i], (n+1)%suffixMod)
		}
	}
	return fmt.Sprintf("%s-%06d", slug, 1)
}
