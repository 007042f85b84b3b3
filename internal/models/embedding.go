package models

// Chunk is a bounded-length segment of the document text. Index is the
// position assigned by the splitter.
type Chunk struct {
	Index   int
	Content string
}

// SearchResult is a chunk returned by the index with its cosine distance
// to the query vector.
type SearchResult struct {
	Chunk    Chunk
	Distance float32
}

// Answer is the outcome of one question against the current document.
type Answer struct {
	Question string
	Context  string
	Prompt   string
	Sources  []SearchResult
	Content  string
}
