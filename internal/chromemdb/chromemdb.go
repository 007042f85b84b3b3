package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-qa/internal/embedding"
	"pdf-qa/internal/models"
)

const (
	collectionName = "document"
	metaIndex      = "index"
)

// Index is an in-memory nearest-neighbour index over the chunks of one
// document. It is immutable once built.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	chunks     []models.Chunk
}

// Build embeds every chunk with embedder and stores the vectors in a fresh
// in-memory collection. Zero chunks produce an empty, queryable index.
func Build(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, embeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	idx := &Index{
		db:         db,
		collection: c,
		embedder:   embedder,
		chunks:     append([]models.Chunk(nil), chunks...),
	}
	if len(chunks) == 0 {
		return idx, nil
	}

	vectors, err := embedding.EmbedChunks(ctx, embedder, chunks)
	if err != nil {
		return nil, err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   chunk.Content,
			Metadata:  map[string]string{metaIndex: strconv.Itoa(chunk.Index)},
			Embedding: vectors[i],
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Debug().Int("chunks", c.Count()).Msg("Built vector index")
	return idx, nil
}

// Count returns the number of indexed chunks.
func (i *Index) Count() int {
	return i.collection.Count()
}

// Chunks returns the indexed chunks in insertion order.
func (i *Index) Chunks() []models.Chunk {
	return append([]models.Chunk(nil), i.chunks...)
}

// Embedder returns the embedder the index was built with. Queries must be
// embedded with the same model.
func (i *Index) Embedder() embeddings.Embedder {
	return i.embedder
}

// Query returns the min(k, Count()) chunks nearest to vector, ordered by
// non-decreasing cosine distance.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector is empty")
	}
	n := min(k, i.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := i.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.Metadata[metaIndex])
		if err != nil {
			return nil, fmt.Errorf("bad chunk index on document %s: %w", r.ID, err)
		}
		out = append(out, models.SearchResult{
			Chunk:    models.Chunk{Index: pos, Content: r.Content},
			Distance: 1 - r.Similarity,
		})
	}
	return out, nil
}

// QueryText embeds text with the index's embedder and runs Query.
func (i *Index) QueryText(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	if i.Count() == 0 {
		return nil, nil
	}
	vector, err := i.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return i.Query(ctx, vector, k)
}

func embeddingFunc(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}
