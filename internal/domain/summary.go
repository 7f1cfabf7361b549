package domain

import "strings"

// MaxSources is the maximum number of citations kept on a SummaryResult.
const MaxSources = 5

// Fixed answers used when the provider gives nothing usable or there is
// nothing to summarize.
const (
	FallbackAnswer  = "<p>We could not generate a summary for this search. Please see the results below.</p>"
	NoMatchesAnswer = "<p>No matching articles were found for this search.</p>"
)

// Source is a single citation attached to a summary.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// SummaryResult is the cached unit of work: an HTML answer fragment and its
// citations.
type SummaryResult struct {
	AnswerHTML string   `json:"answer_html"`
	Sources    []Source `json:"sources"`
}

// Normalize returns a copy of r with a non-empty answer and a non-nil source
// list of at most MaxSources entries. Normalizing a normalized result is a
// no-op.
func (r SummaryResult) Normalize() SummaryResult {
	out := SummaryResult{
		AnswerHTML: strings.TrimSpace(r.AnswerHTML),
		Sources:    make([]Source, 0, len(r.Sources)),
	}
	if out.AnswerHTML == "" {
		out.AnswerHTML = FallbackAnswer
	}
	for _, s := range r.Sources {
		if len(out.Sources) == MaxSources {
			break
		}
		out.Sources = append(out.Sources, s)
	}
	return out
}

// NoMatchesResult is returned when the content selector finds nothing.
func NoMatchesResult() *SummaryResult {
	return &SummaryResult{AnswerHTML: NoMatchesAnswer, Sources: []Source{}}
}
