package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// StaticSource searches a fixed in-memory document list. Documents are
// scored by how many query terms appear in them, with title matches
// weighted highest, then ordered newest first.
type StaticSource struct {
	docs []domain.SearchDocument
}

// NewStaticSource creates a StaticSource over docs.
func NewStaticSource(docs []domain.SearchDocument) *StaticSource {
	return &StaticSource{docs: slices.Clone(docs)}
}

// LoadStaticSource reads a JSON array of documents from path.
func LoadStaticSource(path string) (*StaticSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents file: %w", err)
	}
	var docs []domain.SearchDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents file %s: %w", path, err)
	}
	return NewStaticSource(docs), nil
}

type scoredDoc struct {
	doc   domain.SearchDocument
	score int
}

func (s *StaticSource) Search(ctx context.Context, query string, limit int, exclude []string) ([]domain.SearchDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []domain.SearchDocument{}, nil
	}

	var matches []scoredDoc
	for _, d := range s.docs {
		if slices.Contains(exclude, d.ID) {
			continue
		}
		if score := scoreDocument(d, terms); score > 0 {
			matches = append(matches, scoredDoc{doc: d, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].doc.PublishedDate.After(matches[j].doc.PublishedDate)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]domain.SearchDocument, len(matches))
	for i, m := range matches {
		out[i] = m.doc
	}
	return out, nil
}

func scoreDocument(d domain.SearchDocument, terms []string) int {
	title := strings.ToLower(d.Title)
	excerpt := strings.ToLower(d.Excerpt)
	body := strings.ToLower(d.Body)

	score := 0
	for _, t := range terms {
		if strings.Contains(title, t) {
			score += 3
		}
		if strings.Contains(excerpt, t) {
			score += 2
		}
		if strings.Contains(body, t) {
			score++
		}
	}
	return score
}
