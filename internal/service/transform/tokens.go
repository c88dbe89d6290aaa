package transform

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// TokenCounter estimates prompt size before a request is sent.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the BPE encoding. When it cannot be loaded (offline,
// no cache) the counter falls back to a characters/4 estimate.
func NewTokenCounter(logger *slog.Logger) *TokenCounter {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, estimating by length",
			"encoding", tokenEncoding,
			"error", err,
		)
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the token count of text.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.enc == nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
