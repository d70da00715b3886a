package index

import (
	"strings"

	"github.com/trailsec/ragtrail/internal/tokens"
)

// Chunker splits source text into paragraph-aligned chunks that fit a token
// budget, so indexed documents stay within the embedding model's window.
type Chunker struct {
	counter   tokens.Counter
	model     string
	maxTokens int
}

// NewChunker creates a chunker. maxTokens bounds each chunk; values below 1
// are treated as 1.
func NewChunker(counter tokens.Counter, model string, maxTokens int) *Chunker {
	if maxTokens < 1 {
		maxTokens = 1
	}
	return &Chunker{counter: counter, model: model, maxTokens: maxTokens}
}

// Split breaks text on blank lines and packs consecutive paragraphs into
// chunks of at most maxTokens. A single paragraph over the budget becomes its
// own chunk rather than being split mid-sentence.
func (c *Chunker) Split(text string) ([]string, error) {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n, err := c.counter.Count(c.model, para)
		if err != nil {
			return nil, err
		}
		if currentTokens > 0 && currentTokens+n > c.maxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += n
		if currentTokens >= c.maxTokens {
			flush()
		}
	}
	flush()

	return chunks, nil
}
