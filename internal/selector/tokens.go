package selector

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// TokenCounter measures and trims text in model tokens.
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, tokens int) string
}

// TiktokenCounter counts with the cl100k_base encoding. The encoding is
// loaded on first use; when it cannot be loaded the counter falls back to
// RuneEstimator.
type TiktokenCounter struct {
	logger   *slog.Logger
	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback RuneEstimator
}

// NewTiktokenCounter creates a TiktokenCounter.
func NewTiktokenCounter(logger *slog.Logger) *TiktokenCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TiktokenCounter{logger: logger}
}

func (c *TiktokenCounter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			c.logger.Warn("tiktoken encoding unavailable, estimating tokens from length",
				"encoding", tokenEncoding, "error", err)
			return
		}
		c.enc = enc
	})
	return c.enc
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	enc := c.encoding()
	if enc == nil {
		return c.fallback.Count(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Truncate(text string, tokens int) string {
	enc := c.encoding()
	if enc == nil {
		return c.fallback.Truncate(text, tokens)
	}
	ids := enc.Encode(text, nil, nil)
	if len(ids) <= tokens {
		return text
	}
	return enc.Decode(ids[:tokens])
}

// RuneEstimator assumes four runes per token.
type RuneEstimator struct{}

const runesPerToken = 4

func (RuneEstimator) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + runesPerToken - 1) / runesPerToken
}

func (RuneEstimator) Truncate(text string, tokens int) string {
	limit := tokens * runesPerToken
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
