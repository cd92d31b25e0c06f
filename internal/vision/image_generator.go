package vision

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ImageRequest is one image-generation call: the compiled prompt plus the
// optional photo being transformed.
type ImageRequest struct {
	Prompt string
	Input  *Photo
}

// ImageGenerator renders renovation concepts.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (GeneratedImage, error)
}

// GeminiImageGenerator renders interiors via Gemini image outputs.
type GeminiImageGenerator struct {
	models contentGenerator
	model  string
}

const (
	defaultImageModel  = "gemini-2.5-flash-image"
	capabilityGenerate = "vision.generate"
)

// NewGeminiImageGenerator constructs a generator on a shared genai client.
func NewGeminiImageGenerator(client *genai.Client, model string) *GeminiImageGenerator {
	var models contentGenerator
	if client != nil {
		models = client.Models
	}
	return newGeminiImageGenerator(models, model)
}

func newGeminiImageGenerator(models contentGenerator, model string) *GeminiImageGenerator {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = defaultImageModel
	}
	return &GeminiImageGenerator{models: models, model: model}
}

// Generate requests a photorealistic render. The caller bounds the call with
// its own deadline.
func (g *GeminiImageGenerator) Generate(ctx context.Context, req ImageRequest) (GeneratedImage, error) {
	if g == nil || g.models == nil {
		return GeneratedImage{}, Unavailable(capabilityGenerate, fmt.Errorf("vision: image generator not configured"))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return GeneratedImage{}, fmt.Errorf("vision: empty render prompt")
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Input != nil && len(req.Input.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Input.Data, detectMime(req.Input.Data, req.Input.MIMEType)))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return GeneratedImage{}, Classify(capabilityGenerate, fmt.Errorf("vision: render failed: %w", err))
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return GeneratedImage{}, Empty(capabilityGenerate, fmt.Errorf("vision: render returned no candidates"))
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if strings.TrimSpace(mime) == "" {
			mime = "image/png"
		}
		return GeneratedImage{Data: part.InlineData.Data, MIMEType: mime}, nil
	}
	return GeneratedImage{}, Empty(capabilityGenerate, fmt.Errorf("vision: render returned no image data"))
}
