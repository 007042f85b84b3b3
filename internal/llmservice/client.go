package llmservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

const generationPath = "/ml/v1/text/generation"

type Parameters struct {
	DecodingMethod string `json:"decoding_method"`
	MaxNewTokens   int    `json:"max_new_tokens"`
}

type GenerationRequest struct {
	ModelID    string     `json:"model_id"`
	Input      string     `json:"input"`
	ProjectID  string     `json:"project_id"`
	Parameters Parameters `json:"parameters"`
}

type generationResponse struct {
	Results []struct {
		GeneratedText *string `json:"generated_text"`
	} `json:"results"`
}

// Client calls the watsonx.ai text generation endpoint with a bearer
// token taken from its token source on every request.
type Client struct {
	cfg        config.WatsonxConfig
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

func NewClient(cfg config.WatsonxConfig, tokens oauth2.TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		// no timeout unless configured
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Client{cfg: cfg, tokens: tokens, httpClient: httpClient}
}

// Endpoint returns the full generation URL including the API version.
func (c *Client) Endpoint() string {
	q := url.Values{}
	q.Set("version", c.cfg.Version)
	return strings.TrimRight(c.cfg.BaseURL, "/") + generationPath + "?" + q.Encode()
}

// GenerateContent sends prompt with greedy decoding and returns the
// generated text. The token is resolved before any request is made, so an
// authentication failure never reaches the generation endpoint.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get bearer token: %w", err)
	}

	payload := GenerationRequest{
		ModelID:   c.cfg.ModelID,
		Input:     prompt,
		ProjectID: c.cfg.ProjectID,
		Parameters: Parameters{
			DecodingMethod: c.cfg.Decoding,
			MaxNewTokens:   c.cfg.MaxNewTokens,
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(jsonData))
	if err != nil {
		return "", &models.GenerationError{Err: err}
	}
	token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &models.GenerationError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.GenerationError{StatusCode: resp.StatusCode, Err: err}
	}

	log.Debug().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Watsonx response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &models.GenerationError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed generationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &models.GenerationError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if len(parsed.Results) == 0 || parsed.Results[0].GeneratedText == nil {
		return "", &models.GenerationError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        errors.New("response has no results[0].generated_text"),
		}
	}
	return *parsed.Results[0].GeneratedText, nil
}
