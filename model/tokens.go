package model

import (
	"log"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// embedTokenLimit is the input window of text-embedding models in this class;
// longer chunks are truncated rather than rejected.
const embedTokenLimit = 2048

// TokenBudget trims embedding inputs to the model's token window. The
// tokenizer is loaded lazily; if it cannot be initialized we fall back to a
// word-count approximation instead of failing ingestion.
type TokenBudget struct {
	limit int
	once  sync.Once
	enc   *tiktoken.Tiktoken
}

func NewTokenBudget(limit int) *TokenBudget {
	return &TokenBudget{limit: limit}
}

func (b *TokenBudget) encoder() *tiktoken.Tiktoken {
	b.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Printf("[TOKENS] tokenizer unavailable, using word-count fallback: %v", err)
			return
		}
		b.enc = enc
	})
	return b.enc
}

// Count returns the token count of text, or an approximation when the
// tokenizer is unavailable.
func (b *TokenBudget) Count(text string) int {
	if enc := b.encoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// rough heuristic: one token per word plus a third for subword splits
	n := len(strings.Fields(text))
	return n + n/3
}

// Truncate returns text cut down to the budget, on a word boundary when the
// tokenizer is unavailable.
func (b *TokenBudget) Truncate(text string) string {
	if b.limit <= 0 || b.Count(text) <= b.limit {
		return text
	}
	if enc := b.encoder(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		return enc.Decode(tokens[:b.limit])
	}
	words := strings.Fields(text)
	keep := b.limit * 3 / 4
	if keep >= len(words) {
		return text
	}
	return strings.Join(words[:keep], " ")
}
