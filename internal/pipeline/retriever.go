package pipeline

import (
	"context"
	"fmt"

	"github.com/trailsec/ragtrail/internal/index"
)

// IndexRetriever retrieves from the in-memory vector index.
type IndexRetriever struct {
	index *index.Index
	topK  int
}

// NewIndexRetriever creates a retriever returning at most topK documents.
func NewIndexRetriever(ix *index.Index, topK int) *IndexRetriever {
	if topK < 1 {
		topK = 4
	}
	return &IndexRetriever{index: ix, topK: topK}
}

func (r *IndexRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	matches, err := r.index.Search(ctx, query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	docs := make([]Document, len(matches))
	for i, m := range matches {
		docs[i] = Document{ID: m.Document.ID, Text: m.Document.Text, Score: m.Score}
	}
	return docs, nil
}

func (r *IndexRetriever) Params() map[string]any {
	return map[string]any{"k": r.topK, "store": "memory"}
}

var _ Retriever = (*IndexRetriever)(nil)
