// Package enrich implements the default enrichment adapter: a sentence-prefix
// summarizer and a stopword-filtered frequency keyword extractor. Both are
// pure functions of their input and tolerate empty text.
package enrich

import (
	"regexp"
	"sort"
	"strings"
)

var (
	sentenceSplitRE = regexp.MustCompile(`[。！？.!?]\s*`)
	wordRE          = regexp.MustCompile(`[0-9A-Za-z_\x{4e00}-\x{9fff}]{2,}`)
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "with": {}, "from": {},
	"this": {}, "have": {}, "has": {}, "are": {}, "was": {}, "were": {},
	"will": {}, "of": {}, "to": {}, "in": {}, "on": {}, "at": {}, "by": {},
	"an": {}, "is": {}, "as": {}, "it": {}, "or": {}, "be": {}, "we": {},
	"you": {},
	"我们": {}, "你们": {}, "他们": {}, "以及": {}, "但是": {}, "而且": {},
	"因为": {}, "所以": {}, "通过": {}, "进行": {}, "相关": {}, "报道": {},
	"新闻": {},
}

// Adapter implements ingest.Enricher.
type Adapter struct{}

// New returns the default enrichment adapter.
func New() *Adapter {
	return &Adapter{}
}

// Summarize returns the leading sentences of text, stopping before the
// sentence that would exceed maxChars. Empty text yields an empty summary.
func (a *Adapter) Summarize(text string, maxChars int) string {
	if text == "" || maxChars <= 0 {
		return ""
	}
	var parts []string
	for _, p := range sentenceSplitRE.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	var picked []string
	total := 0
	for _, p := range parts {
		n := len([]rune(p))
		if total+n > maxChars {
			break
		}
		picked = append(picked, p)
		total += n
	}
	summary := []rune(strings.Join(picked, "。"))
	if len(summary) > maxChars {
		summary = summary[:maxChars]
	}
	return string(summary)
}

// Keywords returns up to topK tokens ordered by descending frequency, ties
// broken by first appearance. Stopwords and single-rune tokens are dropped.
func (a *Adapter) Keywords(text string, topK int) []string {
	if text == "" || topK <= 0 {
		return nil
	}
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, token := range wordRE.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[token]; stop {
			continue
		}
		if len([]rune(token)) < 2 {
			continue
		}
		if _, ok := counts[token]; !ok {
			firstSeen[token] = i
		}
		counts[token]++
	}
	if len(counts) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(counts))
	for token := range counts {
		tokens = append(tokens, token)
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return firstSeen[tokens[i]] < firstSeen[tokens[j]]
	})
	if len(tokens) > topK {
		tokens = tokens[:topK]
	}
	return tokens
}
