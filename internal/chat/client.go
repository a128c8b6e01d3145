// Package chat provides the client for the external question-answering
// assistant behind /api/chat. The answering logic is opaque.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/safebase-monitor/internal/errors"
)

// Client proxies chat questions to the external assistant endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a chat client with a per-call timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type askRequest struct {
	Question string                 `json:"question"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask forwards one question plus analysis context and returns the answer.
func (c *Client) Ask(ctx context.Context, question string, analysisContext map[string]interface{}) (string, error) {
	body, err := json.Marshal(askRequest{Question: question, Context: analysisContext})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewUpstreamError("chat", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewUpstreamError("chat", fmt.Errorf("status %d", resp.StatusCode))
	}

	var wire askResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", apperrors.NewUpstreamError("chat", fmt.Errorf("decode response: %w", err))
	}

	return wire.Answer, nil
}
