package vision

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// StructureValidator compares a render against the source photo.
type StructureValidator interface {
	Validate(ctx context.Context, original Photo, generated GeneratedImage) (ValidationResult, error)
}

const (
	DefaultAcceptThreshold = 0.85
	capabilityValidate     = "vision.validate"
)

// GeminiValidator scores structural fidelity with a vision model.
type GeminiValidator struct {
	models    contentGenerator
	model     string
	threshold float64
}

// NewGeminiValidator constructs a validator. Renders scoring at or above
// threshold are acceptable.
func NewGeminiValidator(client *genai.Client, model string, threshold float64) *GeminiValidator {
	var models contentGenerator
	if client != nil {
		models = client.Models
	}
	return newGeminiValidator(models, model, threshold)
}

func newGeminiValidator(models contentGenerator, model string, threshold float64) *GeminiValidator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAcceptThreshold
	}
	return &GeminiValidator{
		models:    models,
		model:     normalizeVisionModel(model),
		threshold: threshold,
	}
}

const validationInstruction = `You are checking an AI renovation render for structural fidelity.
The FIRST image is the original room. The SECOND image is the proposed renovation.
Finishes, colours, furniture and fixtures are allowed to change. Geometry is not.

Compare:
- wall positions and angles
- window and door count, size and placement
- ceiling height and ceiling features
- camera position, angle and field of view
- room proportions and depth

Reply ONLY with JSON:
{"score": 0.0, "issues": ["..."], "recommendations": ["..."]}
"score" is 1.0 when the structure is identical and 0.0 when it is unrecognisable.`

// Validate returns the structural-fidelity verdict.
func (v *GeminiValidator) Validate(ctx context.Context, original Photo, generated GeneratedImage) (ValidationResult, error) {
	if v == nil || v.models == nil {
		return ValidationResult{}, newCapabilityError(capabilityValidate, ErrValidationUnavailable, fmt.Errorf("vision: validator not configured"))
	}
	if len(original.Data) == 0 || len(generated.Data) == 0 {
		return ValidationResult{}, newCapabilityError(capabilityValidate, ErrValidationUnavailable, fmt.Errorf("vision: both images are required"))
	}

	temperature := float32(0)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(validationInstruction),
			genai.NewPartFromBytes(original.Data, detectMime(original.Data, original.MIMEType)),
			genai.NewPartFromBytes(generated.Data, detectMime(generated.Data, generated.MIMEType)),
		}, genai.RoleUser),
	}
	resp, err := v.models.GenerateContent(ctx, v.model, contents, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return ValidationResult{}, newCapabilityError(capabilityValidate, ErrValidationUnavailable, err)
	}

	var raw struct {
		Score           float64  `json:"score"`
		Issues          []string `json:"issues"`
		Recommendations []string `json:"recommendations"`
	}
	if err := decodeJSONObject(responseText(resp), &raw); err != nil {
		return ValidationResult{}, newCapabilityError(capabilityValidate, ErrValidationUnavailable, err)
	}

	score := clamp01(raw.Score)
	return ValidationResult{
		IsAcceptable:    score >= v.threshold,
		Score:           score,
		Issues:          cleanList(raw.Issues),
		Recommendations: cleanList(raw.Recommendations),
	}, nil
}

// SummarizeIssues renders validator issues for prompt reinforcement.
func SummarizeIssues(issues []string, limit int) string {
	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	return strings.Join(issues, "; ")
}
