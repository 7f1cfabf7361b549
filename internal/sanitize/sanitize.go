// Package sanitize restricts provider output to the markup the search page
// is allowed to render.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// Sanitizer cleans SummaryResults. It is safe for concurrent use.
type Sanitizer struct {
	answer *bluemonday.Policy
	text   *bluemonday.Policy
}

// New creates a Sanitizer.
func New() *Sanitizer {
	answer := bluemonday.NewPolicy()
	answer.AllowElements("p", "br", "strong", "em", "ul", "ol", "li", "h3", "h4")
	answer.AllowAttrs("href", "title", "target", "rel").OnElements("a")
	answer.AllowStandardURLs()
	answer.RequireParseableURLs(true)

	return &Sanitizer{
		answer: answer,
		text:   bluemonday.StrictPolicy(),
	}
}

// AnswerHTML strips every element and attribute outside the allow-list.
func (s *Sanitizer) AnswerHTML(html string) string {
	return strings.TrimSpace(s.answer.Sanitize(html))
}

// Text removes all markup.
func (s *Sanitizer) Text(text string) string {
	return strings.TrimSpace(s.text.Sanitize(text))
}

// Summary returns a sanitized, normalized copy of result. Sources whose URL
// is not http(s) lose the URL; sources left with neither title nor URL are
// dropped.
func (s *Sanitizer) Summary(result domain.SummaryResult) domain.SummaryResult {
	out := domain.SummaryResult{
		AnswerHTML: s.AnswerHTML(result.AnswerHTML),
		Sources:    make([]domain.Source, 0, len(result.Sources)),
	}

	for _, src := range result.Sources {
		cleaned := domain.Source{
			Title:   s.Text(src.Title),
			URL:     safeURL(src.URL),
			Excerpt: s.Text(src.Excerpt),
		}
		if cleaned.Title == "" && cleaned.URL == "" {
			continue
		}
		out.Sources = append(out.Sources, cleaned)
	}

	return out.Normalize()
}

func safeURL(raw string) string {
	u := strings.TrimSpace(raw)
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return u
	}
	return ""
}
