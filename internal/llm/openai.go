package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIClient calls the chat completions endpoint.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIClient constructs a client. An empty model means gpt-4o-mini.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model = normalizeModel(model); model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultOpenAIBaseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Temperature    float64               `json:"temperature"`
	Messages       []ChatMessage         `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatCompletion sends the conversation to OpenAI and returns the first
// choice. JSON mode maps onto response_format json_object.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", NewFatalError(fmt.Errorf("openai: missing API key"))
	}
	payload := openAIRequest{Model: c.model, Temperature: temperature, Messages: messages}
	if override := ModelFromContext(ctx); override != "" {
		payload.Model = override
	}
	if jsonFromContext(ctx) {
		payload.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.baseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", NewTransientError(fmt.Errorf("openai: send request: %w", err))
	}
	defer resp.Body.Close()

	var decoded openAIResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)
	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", statusError("openai", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("openai: decode response: %w", decodeErr)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
