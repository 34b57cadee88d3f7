// Package scribe talks to the ElevenLabs realtime speech-to-text service:
// single-use token exchange over HTTPS and the transcription websocket.
package scribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://api.elevenlabs.io"
	tokenPath      = "/v1/single-use-token/realtime_scribe"
)

// TokenClient exchanges the long-lived API key for single-use realtime
// tokens. It implements gateway.TokenSource.
type TokenClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewTokenClient(baseURL, apiKey string, timeout time.Duration) *TokenClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// FetchToken returns a fresh token. Every error is prefixed with
// "failed to get scribe token".
func (c *TokenClient) FetchToken(ctx context.Context) (string, error) {
	token, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get scribe token: %w", err)
	}
	return token, nil
}

func (c *TokenClient) fetch(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("api key is not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("response carried no token")
	}
	return out.Token, nil
}
