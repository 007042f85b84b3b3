package llmservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"pdf-qa/internal/config"
	"pdf-qa/internal/iam"
	"pdf-qa/internal/models"
)

func testConfig(baseURL string) config.WatsonxConfig {
	cfg := config.Default().Watsonx
	cfg.BaseURL = baseURL
	cfg.ProjectID = "proj-1"
	return cfg
}

func TestGenerateContent(t *testing.T) {
	var got GenerationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ml/v1/text/generation", r.URL.Path)
		assert.Equal(t, "2024-05-01", r.URL.Query().Get("version"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"results":[{"generated_text":"Paris."}]}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/"), iam.StaticTokenSource("tok-1"), srv.Client())
	out, err := c.GenerateContent(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", out)

	assert.Equal(t, "ibm/granite-3-2-8b-instruct", got.ModelID)
	assert.Equal(t, "the prompt", got.Input)
	assert.Equal(t, "proj-1", got.ProjectID)
	assert.Equal(t, "greedy", got.Parameters.DecodingMethod)
	assert.Equal(t, 300, got.Parameters.MaxNewTokens)
}

func TestGenerateContentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`internal meltdown`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), iam.StaticTokenSource("tok"), srv.Client())
	_, err := c.GenerateContent(context.Background(), "p")
	require.Error(t, err)

	var genErr *models.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 500, genErr.StatusCode)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "internal meltdown")
}

func TestGenerateContentMissingField(t *testing.T) {
	for name, body := range map[string]string{
		"no results":   `{"results":[]}`,
		"no text":      `{"results":[{"stop_reason":"eos"}]}`,
		"not json":     `<html>gateway</html>`,
		"empty object": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL), iam.StaticTokenSource("tok"), srv.Client())
			_, err := c.GenerateContent(context.Background(), "p")

			var genErr *models.GenerationError
			require.True(t, errors.As(err, &genErr))
			assert.Equal(t, body, genErr.Body)
			assert.Contains(t, err.Error(), "200")
		})
	}
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, &models.AuthError{StatusCode: 200, Body: "{}"}
}

func TestGenerateContentAuthFailureSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), failingSource{}, srv.Client())
	_, err := c.GenerateContent(context.Background(), "p")

	var authErr *models.AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Zero(t, hits.Load())
}

func TestGenerateContentTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(testConfig(url), iam.StaticTokenSource("tok"), nil)
	_, err := c.GenerateContent(context.Background(), "p")

	var genErr *models.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Zero(t, genErr.StatusCode)
}
