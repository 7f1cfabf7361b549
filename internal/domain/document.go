package domain

import "time"

// SearchDocument is a candidate source article selected for one request.
// It is never persisted by the summary pipeline.
type SearchDocument struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Excerpt       string    `json:"excerpt"`
	Body          string    `json:"body"`
	SourceType    string    `json:"source_type"`
	PublishedDate time.Time `json:"published_date"`
}
