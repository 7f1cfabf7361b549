package provider

import (
	"fmt"
	"strings"

	"github.com/riviantrackr/aisearch/internal/domain"
)

const systemPromptTemplate = `You are the search assistant for %s. You answer a reader's search query using only the articles provided below.

Rules:
- Answer only from the provided articles. Do not use outside knowledge.
- If articles disagree, prefer the most recently published one.
- If the articles do not contain the answer, say so plainly instead of guessing.
- Keep the answer short: one to three paragraphs, or a short list.

Respond with a single JSON object and nothing else, in this exact shape:
{
  "answer_html": "<p>...</p>",
  "results": [
    {"title": "...", "url": "...", "excerpt": "..."}
  ]
}

"answer_html" is an HTML fragment using only these tags: p, br, strong, em, ul, ol, li, h3, h4, a (with href, title, target, rel).
"results" lists at most 5 of the provided articles that support the answer, most relevant first, using their exact title and url.`

// BuildPrompt returns the system and user parts of the summary prompt.
func BuildPrompt(siteName, query string, docs []domain.SearchDocument) (string, string) {
	if siteName == "" {
		siteName = "this site"
	}
	system := fmt.Sprintf(systemPromptTemplate, siteName)

	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %s\n\nArticles:\n", query)
	for i, doc := range docs {
		b.WriteString("\n")
		writeDocument(&b, i+1, doc)
	}
	return system, b.String()
}

func writeDocument(b *strings.Builder, n int, doc domain.SearchDocument) {
	fmt.Fprintf(b, "[%d] id: %s\n", n, doc.ID)
	fmt.Fprintf(b, "title: %s\n", doc.Title)
	fmt.Fprintf(b, "url: %s\n", doc.URL)
	if doc.SourceType != "" {
		fmt.Fprintf(b, "type: %s\n", doc.SourceType)
	}
	if !doc.PublishedDate.IsZero() {
		fmt.Fprintf(b, "date: %s\n", doc.PublishedDate.Format("2006-01-02"))
	}
	if doc.Excerpt != "" {
		fmt.Fprintf(b, "excerpt: %s\n", doc.Excerpt)
	}
	if doc.Body != "" {
		fmt.Fprintf(b, "content: %s\n", doc.Body)
	}
}
