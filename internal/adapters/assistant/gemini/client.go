// Package gemini implements the chat provider port against the Google
// Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// DefaultBaseURL is the Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Config holds the Gemini client configuration.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the Gemini generateContent endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
}

var _ ports.ChatProviderPort = (*Client)(nil)

// NewClient creates a new Gemini client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// Name identifies the provider in logs and breaker state.
func (c *Client) Name() string { return "gemini" }

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Send submits the conversation and returns the assistant's reply text.
func (c *Client) Send(ctx context.Context, history []*ledger.ChatMessage, prompt string) (string, error) {
	req := generateRequest{Contents: buildContents(history, prompt)}

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to marshal request", err)
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", url.PathEscape(c.config.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.NewError(errors.CodeNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.handleErrorResponse(resp)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to decode response", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", errors.NewError(errors.CodeRemote, "response contained no candidates", nil)
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// buildContents converts the chat log to Gemini turns. Failed assistant
// turns stay local and are not replayed to the model.
func buildContents(history []*ledger.ChatMessage, prompt string) []content {
	contents := make([]content, 0, len(history)+1)
	for _, msg := range history {
		if msg.IsError {
			continue
		}
		role := "user"
		if msg.Role == ledger.ChatRoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Content}}})
	}
	return append(contents, content{Role: "user", Parts: []part{{Text: prompt}}})
}

// handleErrorResponse extracts error information from an error response.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewError(errors.CodeRemote,
			fmt.Sprintf("HTTP %d: failed to read error response", resp.StatusCode), err)
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return errors.NewError(errors.CodeRemote,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)), nil)
	}

	errCode := errors.CodeRemote
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errCode = errors.CodeAuth
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		errCode = errors.CodeValidation
	}

	return errors.NewError(errCode,
		fmt.Sprintf("%s: %s", errResp.Error.Status, errResp.Error.Message), nil)
}
