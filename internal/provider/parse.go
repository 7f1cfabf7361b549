package provider

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// ErrUnparseable is returned when no parse strategy yields a JSON object.
var ErrUnparseable = errors.New("no JSON object found in provider response")

// parseStrategy extracts a candidate JSON object from raw model output.
type parseStrategy struct {
	name    string
	extract func(content string) (string, bool)
}

// parseStrategies run in order; the first candidate that decodes wins.
var parseStrategies = []parseStrategy{
	{name: "direct", extract: extractDirect},
	{name: "fenced", extract: extractFenced},
	{name: "braces", extract: extractBraces},
}

func extractDirect(content string) (string, bool) {
	s := strings.TrimSpace(content)
	return s, strings.HasPrefix(s, "{")
}

func extractFenced(content string) (string, bool) {
	start := strings.Index(content, "```")
	if start < 0 {
		return "", false
	}
	rest := content[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func extractBraces(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// ParseSummary decodes model output into a normalized SummaryResult.
func ParseSummary(content string) (domain.SummaryResult, error) {
	obj, ok := decodeObject(content)
	if !ok {
		return domain.SummaryResult{}, ErrUnparseable
	}
	return summaryFromObject(obj).Normalize(), nil
}

func decodeObject(content string) (map[string]any, bool) {
	for _, strategy := range parseStrategies {
		candidate, ok := strategy.extract(content)
		if !ok {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil && obj != nil {
			return obj, true
		}
	}
	return nil, false
}

func summaryFromObject(obj map[string]any) domain.SummaryResult {
	answer, _ := obj["answer_html"].(string)
	results := resultsField(obj)

	// Some models put the whole JSON object inside answer_html, sometimes
	// fenced. Unwrap one level only. Inner results win when the outer list
	// is missing or empty.
	if strings.Contains(answer, "answer_html") {
		if nested, ok := decodeObject(answer); ok {
			if inner, ok := nested["answer_html"].(string); ok {
				answer = inner
				if len(results) == 0 {
					results = resultsField(nested)
				}
			}
		}
	}

	return domain.SummaryResult{
		AnswerHTML: answer,
		Sources:    sourcesFromList(results),
	}
}

func resultsField(obj map[string]any) []any {
	for _, name := range []string{"results", "sources"} {
		if list, ok := obj[name].([]any); ok {
			return list
		}
	}
	return nil
}

func sourcesFromList(list []any) []domain.Source {
	sources := make([]domain.Source, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		src := domain.Source{
			Title:   stringField(m, "title"),
			URL:     stringField(m, "url"),
			Excerpt: stringField(m, "excerpt"),
		}
		if src.Title == "" && src.URL == "" {
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
