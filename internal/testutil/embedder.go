package testutil

import (
	"context"
	"strings"
	"sync"
)

// Embedder is a deterministic stand-in for a sentence embedding model.
// Texts listed in Vectors get that vector; any other text is embedded as
// a bag of letters plus a constant component so it is never zero.
type Embedder struct {
	Vectors map[string][]float32
	Err     error

	mu      sync.Mutex
	queries []string
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.Lock()
	e.queries = append(e.queries, text)
	e.mu.Unlock()
	return e.vector(text), nil
}

// Queries returns every text passed to EmbedQuery.
func (e *Embedder) Queries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

func (e *Embedder) vector(text string) []float32 {
	if v, ok := e.Vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	v := make([]float32, 27)
	v[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}
