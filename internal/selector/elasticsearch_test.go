package selector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeElasticsearch(t *testing.T, status int, hits []map[string]any) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`))
			return
		}

		if strings.HasSuffix(r.URL.Path, "/_search") {
			_ = json.NewDecoder(r.Body).Decode(&captured)
			w.WriteHeader(status)
			if status >= 400 {
				_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"hits": map[string]any{"hits": hits},
			})
			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestElasticsearchSource_Search(t *testing.T) {
	srv, captured := newFakeElasticsearch(t, http.StatusOK, []map[string]any{
		{
			"_id": "42",
			"_source": map[string]any{
				"title":        "Battery degradation study",
				"url":          "https://example.com/42",
				"excerpt":      "Results from 1,000 vehicles.",
				"body":         "Full text.",
				"source_type":  "post",
				"published_at": "2025-05-01T00:00:00Z",
			},
		},
	})

	client, err := NewElasticsearchClient(srv.URL)
	require.NoError(t, err)
	source := NewElasticsearchSource(client, "articles")

	docs, err := source.Search(context.Background(), "battery degradation", 6, []string{"7"})

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "42", docs[0].ID)
	assert.Equal(t, "Battery degradation study", docs[0].Title)
	assert.Equal(t, 2025, docs[0].PublishedDate.Year())

	require.NotNil(t, *captured)
	assert.EqualValues(t, 6, (*captured)["size"])
	boolQuery := (*captured)["query"].(map[string]any)["bool"].(map[string]any)
	match := boolQuery["must"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "battery degradation", match["query"])
	assert.Equal(t, []any{"title^3", "excerpt^2", "body"}, match["fields"])
	ids := boolQuery["must_not"].(map[string]any)["ids"].(map[string]any)
	assert.Equal(t, []any{"7"}, ids["values"])
}

func TestElasticsearchSource_LenientPublishedAt(t *testing.T) {
	hit := func(id string, published any) map[string]any {
		return map[string]any{
			"_id":     id,
			"_source": map[string]any{"title": "Doc " + id, "url": "https://example.com/" + id, "published_at": published},
		}
	}
	srv, _ := newFakeElasticsearch(t, http.StatusOK, []map[string]any{
		hit("1", "2025-05-01"),
		hit("2", "last spring"),
		hit("3", 1746057600000),
		hit("4", nil),
	})

	client, err := NewElasticsearchClient(srv.URL)
	require.NoError(t, err)

	docs, err := NewElasticsearchSource(client, "articles").Search(context.Background(), "battery", 6, nil)

	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), docs[0].PublishedDate)
	assert.True(t, docs[1].PublishedDate.IsZero())
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), docs[2].PublishedDate)
	assert.True(t, docs[3].PublishedDate.IsZero())
}

func TestElasticsearchSource_ErrorResponse(t *testing.T) {
	srv, _ := newFakeElasticsearch(t, http.StatusNotFound, nil)

	client, err := NewElasticsearchClient(srv.URL)
	require.NoError(t, err)

	_, err = NewElasticsearchSource(client, "missing").Search(context.Background(), "battery", 6, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestBuildQuery_NoExclusions(t *testing.T) {
	q := buildQuery("range", 3, nil)

	boolQuery := q["query"].(map[string]any)["bool"].(map[string]any)
	assert.NotContains(t, boolQuery, "must_not")
	assert.Equal(t, 3, q["size"])
}
