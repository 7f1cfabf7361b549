package selector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/riviantrackr/aisearch/internal/domain"
)

// ElasticsearchSource searches an article index with a weighted
// multi_match query.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearchSource creates a source over an existing client.
func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	if index == "" {
		index = "articles"
	}
	return &ElasticsearchSource{client: client, index: index}
}

// NewElasticsearchClient creates a client for the given node addresses.
func NewElasticsearchClient(addresses ...string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

type esArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Excerpt     string    `json:"excerpt"`
	Body        string    `json:"body"`
	SourceType  string          `json:"source_type"`
	PublishedAt json.RawMessage `json:"published_at"`
}

// publishedLayouts are the date forms accepted in published_at, in order.
var publishedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parsePublished reads published_at leniently. Strings in any of
// publishedLayouts and epoch milliseconds are accepted; anything else
// yields the zero time.
func parsePublished(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		for _, layout := range publishedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return time.Time{}
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		return time.UnixMilli(millis).UTC()
	}
	return time.Time{}
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string    `json:"_id"`
			Source esArticle `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildQuery(query string, limit int, exclude []string) map[string]any {
	boolQuery := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^3", "excerpt^2", "body"},
			},
		},
	}
	if len(exclude) > 0 {
		boolQuery["must_not"] = map[string]any{
			"ids": map[string]any{"values": exclude},
		}
	}
	return map[string]any{
		"size":  limit,
		"query": map[string]any{"bool": boolQuery},
		"sort":  []any{"_score", map[string]any{"published_at": map[string]any{"order": "desc", "unmapped_type": "date"}}},
	}
}

func (s *ElasticsearchSource) Search(ctx context.Context, query string, limit int, exclude []string) ([]domain.SearchDocument, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(buildQuery(query, limit, exclude)); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  &body,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]domain.SearchDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, domain.SearchDocument{
			ID:            hit.ID,
			Title:         hit.Source.Title,
			URL:           hit.Source.URL,
			Excerpt:       hit.Source.Excerpt,
			Body:          hit.Source.Body,
			SourceType:    hit.Source.SourceType,
			PublishedDate: parsePublished(hit.Source.PublishedAt),
		})
	}
	return docs, nil
}
