// Package iam exchanges an IBM Cloud API key for a bearer token.
package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"pdf-qa/internal/models"
)

const grantType = "urn:ibm:params:oauth:grant-type:apikey"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Expiration  int64  `json:"expiration"`
}

// GetToken performs one API key exchange against the identity endpoint at
// tokenURL. Any failure is returned as *models.AuthError.
func GetToken(ctx context.Context, client *http.Client, tokenURL, apiKey string) (*oauth2.Token, error) {
	if apiKey == "" {
		return nil, &models.AuthError{Err: errors.New("api key is empty")}
	}
	if client == nil {
		client = http.DefaultClient
	}

	form := url.Values{}
	form.Set("apikey", apiKey)
	form.Set("grant_type", grantType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &models.AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &models.AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.AuthError{StatusCode: resp.StatusCode, Err: err}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Failed to get IAM token")
		return nil, &models.AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	switch {
	case tr.Expiration > 0:
		tok.Expiry = time.Unix(tr.Expiration, 0)
	case tr.ExpiresIn > 0:
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	log.Debug().Time("expiry", tok.Expiry).Msg("Fetched IAM token")
	return tok, nil
}

type tokenSource struct {
	ctx    context.Context
	client *http.Client
	url    string
	apiKey string
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	return GetToken(s.ctx, s.client, s.url, s.apiKey)
}

// NewTokenSource returns a credential holder that fetches a token on first
// use and reuses it until it expires. Tokens without an expiry are kept
// for the life of the source. ctx bounds every refresh.
func NewTokenSource(ctx context.Context, client *http.Client, tokenURL, apiKey string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &tokenSource{
		ctx:    ctx,
		client: client,
		url:    tokenURL,
		apiKey: apiKey,
	})
}

// StaticTokenSource wraps an already issued bearer token.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// Describe renders err for display, keeping the raw endpoint body.
func Describe(err error) string {
	var authErr *models.AuthError
	if errors.As(err, &authErr) && authErr.Body != "" {
		return fmt.Sprintf("Failed to get IBM IAM token. Response:\n%s", authErr.Body)
	}
	return err.Error()
}
