package ai

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dfwthrift/contentpipe/internal/models"
)

type PostProcessor struct {
	maxTitleLength       int
	maxDescriptionLength int
	controlChars         *regexp.Regexp
	unsafeBlocks         *regexp.Regexp
	unsafeTags           []*regexp.Regexp
}

func NewPostProcessor() *PostProcessor {
	p := &PostProcessor{
		maxTitleLength:       120,
		maxDescriptionLength: 1000,
		controlChars:         regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`),
		unsafeBlocks:         regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	}
	for _, tag := range []string{"script", "iframe", "object", "embed", "link", "meta", "style"} {
		p.unsafeTags = append(p.unsafeTags, regexp.MustCompile(fmt.Sprintf(`(?i)</?%s[^>]*>`, tag)))
	}
	return p
}

// Normalize cleans model output and fills gaps from the raw item
func (p *PostProcessor) Normalize(pd models.ProcessedData, raw models.RawContentItem) models.ProcessedData {
	pd.Title = p.cleanText(pd.Title)
	pd.Description = p.cleanText(p.stripUnsafe(pd.Description))
	pd.Location = p.cleanText(pd.Location)
	pd.Date = strings.TrimSpace(pd.Date)
	pd.ActionableDetails = p.cleanText(p.stripUnsafe(pd.ActionableDetails))
	pd.Category = normalizeCategory(pd.Category)

	if pd.Title == "" {
		pd.Title = p.cleanText(raw.Title)
	}
	if pd.Description == "" {
		pd.Description = p.cleanText(raw.Description)
	}
	if pd.Location == "" {
		pd.Location = raw.Location
	}
	if pd.Date == "" {
		pd.Date = raw.Date
	}
	if pd.ActionableDetails == "" && raw.Price != "" {
		pd.ActionableDetails = "Price: " + raw.Price
	}
	if !models.IsKnownCategory(pd.Category) {
		pd.Category = HeuristicCategory(raw)
	}

	pd.Title = truncateRunes(pd.Title, p.maxTitleLength)
	pd.Description = truncateRunes(pd.Description, p.maxDescriptionLength)

	return pd
}

// cleanText removes control characters and normalizes whitespace
func (p *PostProcessor) cleanText(s string) string {
	s = p.controlChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func (p *PostProcessor) stripUnsafe(s string) string {
	s = p.unsafeBlocks.ReplaceAllString(s, "")
	for _, re := range p.unsafeTags {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.ReplaceAll(c, " ", "_")
	return strings.ReplaceAll(c, "-", "_")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max-3])) + "..."
}
