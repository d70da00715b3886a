// Package index is an in-memory vector index backing the retrieval stage.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Document is one indexed chunk.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string

	embedding []float64
}

// Match is a search hit with its similarity score.
type Match struct {
	Document Document
	Score    float64
}

// Embedder turns texts into embedding vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Index stores documents with embeddings and answers nearest-neighbor
// queries by cosine similarity. Safe for concurrent use.
type Index struct {
	embedder Embedder

	mu   sync.RWMutex
	docs []Document
}

// New creates an empty index using embedder for both documents and queries.
func New(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Add embeds and stores documents. Documents with empty text are skipped.
func (ix *Index) Add(ctx context.Context, docs []Document) error {
	var keep []Document
	var texts []string
	for _, d := range docs {
		if d.Text == "" {
			continue
		}
		keep = append(keep, d)
		texts = append(texts, d.Text)
	}
	if len(keep) == 0 {
		return nil
	}

	vecs, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(keep) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(keep))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i := range keep {
		keep[i].embedding = vecs[i]
		ix.docs = append(ix.docs, keep[i])
	}
	return nil
}

// Search returns the k documents most similar to query, highest score first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}
	qv := vecs[0]

	ix.mu.RLock()
	matches := make([]Match, 0, len(ix.docs))
	for _, d := range ix.docs {
		matches = append(matches, Match{Document: d, Score: cosine(qv, d.embedding)})
	}
	ix.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len reports the number of stored documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
