// Package feed parses raw RSS/Atom payloads into canonical article drafts.
package feed

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/ingest"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalizer converts feed payloads into ordered ingest.ArticleDraft slices,
// degrading gracefully when entry fields are missing.
type Normalizer struct {
	parser *gofeed.Parser
	logger *zap.Logger
}

// NewNormalizer builds a Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// Normalize parses payload and yields one draft per usable entry, in feed
// order. Entries without any URL are skipped individually; a payload that
// cannot be parsed at all returns an ingest.ParseError.
func (n *Normalizer) Normalize(payload []byte, source ingest.Source) ([]ingest.ArticleDraft, error) {
	parsed, err := n.parser.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, &ingest.ParseError{URL: source.URL, Err: err}
	}

	drafts := make([]ingest.ArticleDraft, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		url := item.Link
		if url == "" {
			url = item.GUID
		}
		if url == "" {
			n.logger.Debug("feed entry has no link or guid, skipping",
				zap.String("source", source.Name),
				zap.String("title", item.Title))
			continue
		}

		raw := item.Description
		if raw == "" {
			raw = item.Content
		}

		draft := ingest.ArticleDraft{
			Title:        strings.TrimSpace(item.Title),
			Body:         HTMLToText(raw),
			CanonicalURL: url,
			SourceName:   source.Name,
			PublishedAt:  item.PublishedParsed,
			Category:     source.Category,
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// HTMLToText strips markup from an HTML fragment, unescapes entities, and
// collapses whitespace. Non-HTML input passes through unchanged apart from
// whitespace normalization.
func HTMLToText(raw string) string {
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(whitespaceRE.ReplaceAllString(raw, " "))
	}
	text := doc.Text()
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}
