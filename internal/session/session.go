// Package session drives one document through extraction, chunking and
// indexing, then answers questions against it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-qa/internal/chromemdb"
	"pdf-qa/internal/config"
	"pdf-qa/internal/helper"
	"pdf-qa/internal/models"
	"pdf-qa/internal/parser"
	"pdf-qa/internal/rag"
)

var (
	ErrNoDocument    = errors.New("no document loaded")
	ErrEmptyQuestion = errors.New("question is empty")
)

// Document is the processed form of one uploaded PDF.
type Document struct {
	ID       string
	Name     string
	Text     string
	Chunks   []models.Chunk
	Index    *chromemdb.Index
	LoadedAt time.Time
}

// Session holds at most one document. Loading a new document replaces the
// previous one only after its index is fully built.
type Session struct {
	cfg      *config.Config
	splitter *parser.Splitter
	embedder embeddings.Embedder
	rag      *rag.RAG

	mu  sync.RWMutex
	doc *Document
}

func New(cfg *config.Config, embedder embeddings.Embedder, generator rag.Generator) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{
		cfg:      cfg,
		splitter: parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		embedder: embedder,
		rag:      rag.NewRAG(generator, cfg),
	}
}

func (s *Session) Extract(data []byte) (string, error) {
	return parser.ExtractText(data)
}

func (s *Session) Chunk(text string) ([]models.Chunk, error) {
	return s.splitter.Split(text)
}

func (s *Session) Index(ctx context.Context, chunks []models.Chunk) (*chromemdb.Index, error) {
	return chromemdb.Build(ctx, s.embedder, chunks)
}

// Load runs every ingestion stage on data and makes the result the current
// document. A document without text is still loaded; the returned error is
// then an *models.EmptyDocumentWarning and the document is non-nil.
func (s *Session) Load(ctx context.Context, name string, data []byte) (*Document, error) {
	start := time.Now()

	text, err := s.Extract(data)
	if err != nil {
		return nil, err
	}
	chunks, err := s.Chunk(text)
	if err != nil {
		return nil, err
	}
	index, err := s.Index(ctx, chunks)
	if err != nil {
		return nil, err
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	doc := &Document{
		ID:       id,
		Name:     name,
		Text:     text,
		Chunks:   chunks,
		Index:    index,
		LoadedAt: time.Now(),
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	log.Info().
		Str("document", name).
		Int("chars", len(text)).
		Int("chunks", len(chunks)).
		Dur("took", time.Since(start)).
		Msg("PDF processed and ready")

	if len(chunks) == 0 {
		return doc, &models.EmptyDocumentWarning{Name: name, Chunks: len(chunks)}
	}
	return doc, nil
}

// Document returns the current document, or nil.
func (s *Session) Document() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Preview returns the first chunks of the current document, truncated for
// display.
func (s *Session) Preview() []models.Chunk {
	doc := s.Document()
	if doc == nil {
		return nil
	}
	n := min(s.cfg.RAG.PreviewCount, len(doc.Chunks))
	out := make([]models.Chunk, n)
	for i := 0; i < n; i++ {
		out[i] = models.Chunk{
			Index:   doc.Chunks[i].Index,
			Content: helper.Truncate(doc.Chunks[i].Content, s.cfg.RAG.PreviewChars),
		}
	}
	return out
}

// Ask answers question against the current document.
func (s *Session) Ask(ctx context.Context, question string) (*models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	doc := s.Document()
	if doc == nil {
		return nil, ErrNoDocument
	}
	return s.rag.Query(ctx, doc.Index, question)
}
