package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ClientConfig selects the genai backend. An API key targets the Gemini API;
// otherwise a project routes through Vertex AI with default credentials.
type ClientConfig struct {
	APIKey    string
	ProjectID string
	Location  string
}

// NewClient builds the genai client shared by the analyzer, the renderer and
// the validator. With no credentials it returns ErrCapabilityUnavailable so
// callers can start without vision features.
func NewClient(ctx context.Context, cfg ClientConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{}
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		cc.APIKey = strings.TrimSpace(cfg.APIKey)
		cc.Backend = genai.BackendGeminiAPI
	case strings.TrimSpace(cfg.ProjectID) != "":
		cc.Project = strings.TrimSpace(cfg.ProjectID)
		cc.Location = strings.TrimSpace(cfg.Location)
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, Unavailable("vision.client", errors.New("no gemini api key or cloud project configured"))
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, Unavailable("vision.client", fmt.Errorf("genai client: %w", err))
	}
	return client, nil
}
