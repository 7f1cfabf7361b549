package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryResult_NormalizeIsIdempotent(t *testing.T) {
	wellFormed := SummaryResult{
		AnswerHTML: "<p>Battery capacity drops slowly.</p>",
		Sources: []Source{
			{Title: "Battery FAQ", URL: "https://example.com/a", Excerpt: "..."},
			{Title: "Range test", URL: "https://example.com/b", Excerpt: "..."},
		},
	}

	once := wellFormed.Normalize()
	assert.Equal(t, wellFormed, once)
	assert.Equal(t, once, once.Normalize())
}

func TestSummaryResult_NormalizeMissingSources(t *testing.T) {
	got := SummaryResult{AnswerHTML: "<p>ok</p>"}.Normalize()

	require.NotNil(t, got.Sources)
	assert.Empty(t, got.Sources)
}

func TestSummaryResult_NormalizeEmptyAnswer(t *testing.T) {
	got := SummaryResult{AnswerHTML: "   "}.Normalize()
	assert.Equal(t, FallbackAnswer, got.AnswerHTML)
}

func TestSummaryResult_NormalizeCapsSources(t *testing.T) {
	var sources []Source
	for i := 0; i < 8; i++ {
		sources = append(sources, Source{Title: "t"})
	}

	got := SummaryResult{AnswerHTML: "<p>x</p>", Sources: sources}.Normalize()
	assert.Len(t, got.Sources, MaxSources)
}

func TestNoMatchesResult(t *testing.T) {
	r := NoMatchesResult()
	assert.Equal(t, NoMatchesAnswer, r.AnswerHTML)
	assert.NotNil(t, r.Sources)
}
