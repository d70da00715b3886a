package index

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// CorpusDoc is one source document from a corpus file.
type CorpusDoc struct {
	ID    string `koanf:"id"`
	Title string `koanf:"title"`
	Text  string `koanf:"text"`
}

// LoadCorpus reads a YAML corpus file with a top-level documents list.
func LoadCorpus(path string) ([]CorpusDoc, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	var docs []CorpusDoc
	if err := k.Unmarshal("documents", &docs); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	return docs, nil
}

// Seed chunks corpus documents and adds them to the index. Chunk ids append
// the chunk ordinal to the source document id.
func Seed(ctx context.Context, ix *Index, chunker *Chunker, docs []CorpusDoc) error {
	var chunks []Document
	for _, doc := range docs {
		parts, err := chunker.Split(doc.Text)
		if err != nil {
			return fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}
		for i, part := range parts {
			chunks = append(chunks, Document{
				ID:   fmt.Sprintf("%s#%d", doc.ID, i),
				Text: part,
				Metadata: map[string]string{
					"source": doc.ID,
					"title":  doc.Title,
				},
			})
		}
	}
	return ix.Add(ctx, chunks)
}
