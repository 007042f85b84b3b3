package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
	"pdf-qa/internal/session"
)

type Server struct {
	cfg     *config.Config
	session *session.Session
	router  chi.Router
}

func New(cfg *config.Config, s *session.Session) *Server {
	srv := &Server{cfg: cfg, session: s}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", srv.handleIndex)
	r.Post("/upload", srv.handleUpload)
	r.Post("/ask", srv.handleAsk)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/chunks", srv.handleChunks)
		r.Post("/ask", srv.handleAPIAsk)
	})

	srv.router = r
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("Listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.page(r.URL.Query().Get("debug") == "1"))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	data := s.page(false)

	file, header, err := r.FormFile("pdf")
	if err != nil {
		data.Error = fmt.Sprintf("failed to read upload: %v", err)
		s.render(w, http.StatusBadRequest, data)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		data.Error = "only PDF files are supported"
		s.render(w, http.StatusBadRequest, data)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		data.Error = fmt.Sprintf("failed to read upload: %v", err)
		s.render(w, http.StatusBadRequest, data)
		return
	}

	_, err = s.session.Load(r.Context(), header.Filename, content)
	var warn *models.EmptyDocumentWarning
	switch {
	case errors.As(err, &warn):
		log.Warn().Str("document", warn.Name).Msg("No extractable text")
		data = s.page(false)
		data.Warning = "No text could be extracted from this PDF. Answers will not have any context."
	case err != nil:
		log.Error().Err(err).Str("document", header.Filename).Msg("Error processing document")
		data.Error = describeError(err)
		s.render(w, http.StatusUnprocessableEntity, data)
		return
	default:
		data = s.page(false)
		data.Notice = "PDF processed and ready!"
	}
	s.render(w, http.StatusOK, data)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := r.FormValue("question")
	data := s.page(false)
	data.Question = question

	answer, err := s.session.Ask(r.Context(), question)
	if err != nil {
		log.Error().Err(err).Msg("Error answering question")
		data.Error = describeError(err)
		s.render(w, statusFor(err), data)
		return
	}

	rendered, err := renderMarkdown(answer.Content)
	if err != nil {
		data.Error = err.Error()
		s.render(w, http.StatusInternalServerError, data)
		return
	}
	data.Answer = rendered
	s.render(w, http.StatusOK, data)
}

type askRequest struct {
	Question string `json:"question"`
}

type source struct {
	Index    int     `json:"index"`
	Content  string  `json:"content"`
	Distance float32 `json:"distance"`
}

type askResponse struct {
	Answer  string   `json:"answer,omitempty"`
	Sources []source `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) handleAPIAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, askResponse{Error: "invalid request body"})
		return
	}

	answer, err := s.session.Ask(r.Context(), req.Question)
	if err != nil {
		log.Error().Err(err).Msg("Error answering question")
		writeJSON(w, statusFor(err), askResponse{Error: describeError(err)})
		return
	}

	resp := askResponse{Answer: answer.Content}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, source{
			Index:    src.Chunk.Index,
			Content:  src.Chunk.Content,
			Distance: src.Distance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	preview := s.session.Preview()
	out := make([]source, len(preview))
	for i, c := range preview {
		out[i] = source{Index: c.Index, Content: c.Content}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) page(showChunks bool) pageData {
	data := pageData{Document: s.session.Document(), ShowChunks: showChunks}
	if showChunks {
		for _, c := range s.session.Preview() {
			data.Chunks = append(data.Chunks, previewChunk{Number: c.Index + 1, Content: c.Content})
		}
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Error rendering page")
	}
}

func statusFor(err error) int {
	var (
		authErr *models.AuthError
		genErr  *models.GenerationError
	)
	switch {
	case errors.Is(err, session.ErrEmptyQuestion), errors.Is(err, session.ErrNoDocument):
		return http.StatusBadRequest
	case errors.As(err, &authErr), errors.As(err, &genErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error writing response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
