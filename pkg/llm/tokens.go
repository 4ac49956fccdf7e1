package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides token counting for prompt budgeting. All supported
// models approximate well enough with the GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter. The model name is accepted for future
// per-model encodings; today everything maps to the GPT-4 codec.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the token count of text, falling back to a
// 4-chars-per-token estimate when no codec is available.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TrimToBudget truncates text from the front so it fits within maxTokens.
// Older content ages out first; the tail of a feedback or evidence block is
// the most recent and most relevant part.
func (tc *TokenCounter) TrimToBudget(text string, maxTokens int) string {
	if maxTokens <= 0 || tc.CountTokens(text) <= maxTokens {
		return text
	}

	// Binary search on the byte offset; token counts are monotonic in
	// suffix length.
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi) / 2
		if tc.CountTokens(text[mid:]) <= maxTokens {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return text[lo:]
}
