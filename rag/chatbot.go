package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration for the OpenAI chat completions API.
const (
	DefaultChatBaseURL = "https://api.openai.com/v1"
	DefaultChatModel   = "gpt-3.5-turbo"
	DefaultChatTimeout = 120 * time.Second

	systemPrompt = "You are a helpful assistant."
)

// Answerer produces a free-text answer to a question given context.
type Answerer interface {
	Ask(ctx context.Context, question, context string) (string, error)
}

// ChatConfig holds configuration for the chatbot client.
type ChatConfig struct {
	// APIKey is required.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Model defaults to gpt-3.5-turbo.
	Model string
	// Timeout bounds each request.
	Timeout time.Duration
}

// Chatbot answers questions via the OpenAI chat completions API.
type Chatbot struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

var _ Answerer = (*Chatbot)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewChatbot creates a chatbot client.
func NewChatbot(cfg ChatConfig) (*Chatbot, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("rag: chat API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultChatBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultChatTimeout
	}

	return &Chatbot{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Ask sends the question plus the assembled context and returns the answer.
func (c *Chatbot) Ask(ctx context.Context, question, contextText string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("%s\n\nHere is the context:\n%s", question, contextText)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("rag: marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("rag: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("rag: chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("rag: read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("rag: decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("rag: chat API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rag: chat API status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("rag: chat API returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
