// Package openrouter implements the chat provider port against the
// OpenRouter chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// DefaultBaseURL is the OpenRouter API endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds the OpenRouter client configuration.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the OpenRouter chat completions endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
}

var _ ports.ChatProviderPort = (*Client)(nil)

// NewClient creates a new OpenRouter client.
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
func (c *Client) Name() string { return "openrouter" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send submits the conversation and returns the assistant's reply text.
func (c *Client) Send(ctx context.Context, history []*ledger.ChatMessage, prompt string) (string, error) {
	req := completionRequest{
		Model:    c.config.Model,
		Messages: buildMessages(history, prompt),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.NewError(errors.CodeNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.handleErrorResponse(resp)
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to decode response", err)
	}

	if len(result.Choices) == 0 {
		return "", errors.NewError(errors.CodeRemote, "response contained no choices", nil)
	}
	return result.Choices[0].Message.Content, nil
}

// buildMessages converts the chat log to completion turns. Failed assistant
// turns stay local and are not replayed to the model.
func buildMessages(history []*ledger.ChatMessage, prompt string) []message {
	messages := make([]message, 0, len(history)+1)
	for _, msg := range history {
		if msg.IsError {
			continue
		}
		messages = append(messages, message{Role: string(msg.Role), Content: msg.Content})
	}
	return append(messages, message{Role: "user", Content: prompt})
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
		fmt.Sprintf("provider error %d: %s", errResp.Error.Code, errResp.Error.Message), nil)
}
