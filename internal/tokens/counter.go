// Package tokens provides token counting for chunk sizing and prompt budgets.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens in plain text for a given model.
type Counter interface {
	Count(model, text string) (int, error)
}

// TiktokenCounter counts with the model's real BPE encoding.
type TiktokenCounter struct {
	mu    sync.RWMutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewTiktokenCounter creates a counter with an empty codec cache.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		cache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// Count returns the number of tokens text encodes to under model's encoding.
func (c *TiktokenCounter) Count(model, text string) (int, error) {
	codec, err := c.codecFor(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	return len(ids), nil
}

func (c *TiktokenCounter) codecFor(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
		return codec, nil
	}

	encoding := encodingFor(model)

	c.mu.RLock()
	cached, ok := c.cache[encoding]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.mu.Lock()
	c.cache[encoding] = codec
	c.mu.Unlock()

	return codec, nil
}

// encodingFor maps a model name to its encoding family. Unknown models get
// o200k_base, the encoding newer models share.
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"),
		strings.HasPrefix(model, "gpt-3.5"),
		strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// Estimator approximates token counts from character length. Fallback for
// models tiktoken has no table for.
type Estimator struct {
	// CharsPerToken defaults to 4 when zero.
	CharsPerToken float64
}

func (e Estimator) Count(model, text string) (int, error) {
	cpt := e.CharsPerToken
	if cpt <= 0 {
		cpt = 4.0
	}
	return int(float64(len(text)) / cpt), nil
}

var (
	_ Counter = (*TiktokenCounter)(nil)
	_ Counter = Estimator{}
)
