package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-qa/internal/chromemdb"
	"pdf-qa/internal/config"
	"pdf-qa/internal/iam"
	"pdf-qa/internal/llmservice"
	"pdf-qa/internal/models"
	"pdf-qa/internal/testutil"
)

type recordingGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (g *recordingGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

type fixedRetriever []models.SearchResult

func (f fixedRetriever) QueryText(context.Context, string, int) ([]models.SearchResult, error) {
	return f, nil
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("ctx line 1\nctx line 2", "What is it?")

	assert.True(t, strings.HasPrefix(prompt, "You are a helpful AI assistant."))
	assert.Contains(t, prompt, "Context:\nctx line 1\nctx line 2\n")
	assert.Contains(t, prompt, "Question:\nWhat is it?\n")
	assert.Contains(t, prompt, "Answer only using the provided context.")
	assert.True(t, strings.HasSuffix(prompt, `"The answer is not available in the provided context."`))
}

func TestQueryPromptContainsRankedChunks(t *testing.T) {
	retrieved := fixedRetriever{
		{Chunk: models.Chunk{Index: 4, Content: "best match"}},
		{Chunk: models.Chunk{Index: 0, Content: "second"}},
		{Chunk: models.Chunk{Index: 9, Content: "third"}},
	}
	gen := &recordingGenerator{reply: "an answer"}

	answer, err := NewRAG(gen, nil).Query(context.Background(), retrieved, "which one?")
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)

	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "best match\nsecond\nthird")
	assert.Contains(t, prompt, "which one?")
	assert.Contains(t, prompt, models.FallbackAnswer)
	assert.Equal(t, "an answer", answer.Content)
	assert.Len(t, answer.Sources, 3)
	assert.Equal(t, prompt, answer.Prompt)
}

func TestQueryUsesTopK(t *testing.T) {
	ctx := context.Background()
	var chunks []models.Chunk
	for i, s := range []string{"alpha apple", "beta banana", "gamma grape", "delta date", "epsilon egg"} {
		chunks = append(chunks, models.Chunk{Index: i, Content: s})
	}
	idx, err := chromemdb.Build(ctx, &testutil.Embedder{}, chunks)
	require.NoError(t, err)

	gen := &recordingGenerator{reply: "ok"}
	answer, err := NewRAG(gen, config.Default()).Query(ctx, idx, "apple")
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 3)
	assert.Len(t, strings.Split(answer.Context, "\n"), 3)
}

func TestQueryGenerationError(t *testing.T) {
	gen := &recordingGenerator{err: &models.GenerationError{StatusCode: 503, Body: "busy"}}
	_, err := NewRAG(gen, nil).Query(context.Background(), fixedRetriever{}, "q")

	var genErr *models.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Contains(t, err.Error(), "503")
}

func TestQueryWithoutDocument(t *testing.T) {
	_, err := NewRAG(&recordingGenerator{}, nil).Query(context.Background(), nil, "q")
	assert.Error(t, err)
}

// end to end against mocked identity and generation endpoints
func watsonxStack(t *testing.T, iamBody string, genStatus int, genBody string) (*llmservice.Client, *atomic.Int32, func() string) {
	t.Helper()
	var genHits atomic.Int32
	var lastInput atomic.Value
	lastInput.Store("")

	iamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(iamBody))
	}))
	t.Cleanup(iamSrv.Close)

	genSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		genHits.Add(1)
		var req llmservice.GenerationRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		lastInput.Store(req.Input)
		w.WriteHeader(genStatus)
		_, _ = w.Write([]byte(genBody))
	}))
	t.Cleanup(genSrv.Close)

	cfg := config.Default()
	cfg.Watsonx.BaseURL = genSrv.URL
	cfg.Watsonx.ProjectID = "p"
	ts := iam.NewTokenSource(context.Background(), iamSrv.Client(), iamSrv.URL, "key")
	return llmservice.NewClient(cfg.Watsonx, ts, genSrv.Client()), &genHits, func() string { return lastInput.Load().(string) }
}

func TestParisScenario(t *testing.T) {
	ctx := context.Background()
	client, hits, input := watsonxStack(t,
		`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`,
		http.StatusOK, `{"results":[{"generated_text":"Paris"}]}`)

	idx, err := chromemdb.Build(ctx, &testutil.Embedder{}, []models.Chunk{{Content: "Paris is the capital of France."}})
	require.NoError(t, err)

	answer, err := NewRAG(client, config.Default()).Query(ctx, idx, "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris", answer.Content)
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, answer.Context, "Paris is the capital of France.")
	assert.Contains(t, input(), "Paris is the capital of France.")
	assert.Contains(t, input(), "What is the capital of France?")
}

func TestMissingAccessTokenStopsBeforeGeneration(t *testing.T) {
	ctx := context.Background()
	client, hits, _ := watsonxStack(t, `{}`, http.StatusOK, `{"results":[{"generated_text":"x"}]}`)

	idx, err := chromemdb.Build(ctx, &testutil.Embedder{}, []models.Chunk{{Content: "some text"}})
	require.NoError(t, err)

	_, err = NewRAG(client, nil).Query(ctx, idx, "q")
	var authErr *models.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Zero(t, hits.Load())
}

func TestServerErrorScenario(t *testing.T) {
	ctx := context.Background()
	client, _, _ := watsonxStack(t,
		`{"access_token":"tok","token_type":"Bearer"}`,
		http.StatusInternalServerError, `{"errors":[{"code":"internal_error"}]}`)

	idx, err := chromemdb.Build(ctx, &testutil.Embedder{}, []models.Chunk{{Content: "some text"}})
	require.NoError(t, err)

	_, err = NewRAG(client, nil).Query(ctx, idx, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), `{"errors":[{"code":"internal_error"}]}`)
}
