package llm

import (
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/factura/pkg/models"
)

// TokenCounter estimates prompt sizes with the cl100k vocabulary. Counts feed
// the worker metrics and the per-session usage view.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter initializes the codec.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &TokenCounter{codec: codec}, nil
}

// Count returns the token count of one text, zero on encoding failure.
func (t *TokenCounter) Count(text string) int {
	n, err := t.codec.Count(text)
	if err != nil {
		return 0
	}
	return n
}

// CountHistory sums the token counts of a conversation.
func (t *TokenCounter) CountHistory(history []models.Message) int {
	total := 0
	for _, m := range history {
		total += t.Count(m.Content)
	}
	return total
}
