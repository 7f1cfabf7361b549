// Package botfilter classifies inbound requests as automated traffic. It is
// a cost-control heuristic, not a security boundary.
package botfilter

import (
	"net/http"
	"strings"
)

// signatures are matched case-insensitively anywhere in the User-Agent.
var signatures = []string{
	"bot",
	"crawl",
	"spider",
	"slurp",
	"scrape",
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"httpclient",
	"headless",
	"phantomjs",
	"selenium",
	"puppeteer",
	"playwright",
	"scrapy",
	"axios",
	"node-fetch",
	"libwww",
	"java/",
	"okhttp",
}

// IsBot reports whether userAgent looks automated. A missing or blank
// User-Agent counts as a bot.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return true
	}
	for _, sig := range signatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// Classify applies IsBot to the request headers.
func Classify(h http.Header) bool {
	return IsBot(h.Get("User-Agent"))
}
