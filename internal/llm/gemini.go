package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ChatMessage represents a generic chat turn in the prompt history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the chat capability used for preference extraction.
type Client interface {
	ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64) (string, error)
}

const (
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiClient wraps the Google Generative Language REST API.
type GeminiClient struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	tokenSource oauth2.TokenSource
}

// NewGeminiClient constructs a Gemini client. A non-nil tokenSource takes
// precedence over the API key.
func NewGeminiClient(apiKey, model string, timeout time.Duration, tokenSource oauth2.TokenSource) *GeminiClient {
	if model = normalizeModel(model); model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		apiKey:      apiKey,
		model:       model,
		baseURL:     defaultGeminiBaseURL,
		client:      &http.Client{Timeout: timeout},
		tokenSource: tokenSource,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// buildGeminiRequest folds system messages into the system instruction and
// maps the assistant role onto Gemini's "model".
func buildGeminiRequest(messages []ChatMessage, temperature float64, jsonMode bool) (geminiRequest, error) {
	req := geminiRequest{GenerationConfig: geminiGenerationConfig{Temperature: temperature}}
	if jsonMode {
		req.GenerationConfig.ResponseMIMEType = "application/json"
	}

	var system []string
	for _, msg := range messages {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		switch role {
		case "system":
			system = append(system, msg.Content)
			continue
		case "assistant":
			role = "model"
		default:
			role = "user"
		}
		req.Contents = append(req.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: msg.Content}}})
	}
	if len(req.Contents) == 0 {
		return geminiRequest{}, NewFatalError(fmt.Errorf("gemini: missing user or assistant messages"))
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}
	return req, nil
}

// authorize sets the bearer token, or the key query parameter when no token
// source is configured.
func (c *GeminiClient) authorize(req *http.Request) error {
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return NewFatalError(fmt.Errorf("gemini: fetch oauth token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		return nil
	}
	if strings.TrimSpace(c.apiKey) == "" {
		return NewFatalError(fmt.Errorf("gemini: missing API key or service account credentials"))
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	return nil
}

// ChatCompletion sends the conversation to Gemini and returns the text of
// the first candidate.
func (c *GeminiClient) ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	payload, err := buildGeminiRequest(messages, temperature, jsonFromContext(ctx))
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	model := c.model
	if override := ModelFromContext(ctx); override != "" {
		model = override
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.baseURL, "/"), url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", NewTransientError(fmt.Errorf("gemini: send request: %w", err))
	}
	defer resp.Body.Close()

	var decoded geminiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)
	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", statusError("gemini", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("gemini: decode response: %w", decodeErr)
	}
	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates")
	}

	var parts []string
	for _, part := range decoded.Candidates[0].Content.Parts {
		if text := strings.TrimSpace(part.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("gemini: candidate has no text")
	}
	return strings.Join(parts, "\n\n"), nil
}

func normalizeModel(model string) string {
	clean := strings.TrimSpace(model)
	return strings.TrimPrefix(clean, "models/")
}
