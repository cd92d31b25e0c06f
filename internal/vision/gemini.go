package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Analyzer extracts structured room geometry from renovation photos.
type Analyzer interface {
	Analyze(ctx context.Context, photo Photo, hint RoomType) (RoomAnalysis, error)
	QuickCheck(ctx context.Context, photo Photo) (QuickCheck, error)
}

// contentGenerator is the subset of *genai.Models the adapters need.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

const (
	MaxVisionImageBytes = 7 * 1024 * 1024
	defaultVisionModel  = "gemini-2.5-flash"

	capabilityAnalyze    = "vision.analyze"
	capabilityQuickCheck = "vision.quick_check"
)

// GeminiAnalyzer implements Analyzer on top of a shared genai client.
type GeminiAnalyzer struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiAnalyzer constructs an analyzer. A nil client yields an analyzer
// that reports ErrCapabilityUnavailable.
func NewGeminiAnalyzer(client *genai.Client, model string, timeout time.Duration, logger *zap.Logger) *GeminiAnalyzer {
	var models contentGenerator
	if client != nil {
		models = client.Models
	}
	return newGeminiAnalyzer(models, model, timeout, logger)
}

func newGeminiAnalyzer(models contentGenerator, model string, timeout time.Duration, logger *zap.Logger) *GeminiAnalyzer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiAnalyzer{
		models:  models,
		model:   normalizeVisionModel(model),
		timeout: timeout,
		logger:  logger,
	}
}

const analysisInstruction = `You are an architectural surveyor preparing a renovation brief. Study the photo and describe the room's PHYSICAL STRUCTURE precisely. Do not suggest designs.

You MUST:
- Enumerate every visible wall (left, back, right, partial) with approximate dimensions and surface material.
- Enumerate every opening (window, door, archway, pass-through) with its type, the wall it sits on, its approximate size and its position on that wall.
- Describe the dominant light source direction, intensity and colour temperature.
- Describe the camera perspective: height, angle, lens feel, and which walls are in frame.
- List the structural elements a renovation must keep (walls, openings, beams, columns, ceiling features, stairs).
- List explicit preservation constraints phrased as instructions, e.g. "keep the window on the back wall centred above the sink".
- List fixed fixtures (sink, toilet, range, fireplace, radiators).
- Give a confidence between 0 and 1 for the whole analysis.

Reply ONLY with JSON in this shape:
{
  "room_type": "kitchen|bathroom|living_room|bedroom|dining_room|basement|office|laundry|exterior|other",
  "condition": "excellent|good|fair|poor",
  "structural_elements": ["..."],
  "fixtures": ["..."],
  "layout_type": "e.g. galley, L-shaped, open plan",
  "lighting": "direction, intensity and temperature of the light",
  "perspective": "camera position and angle",
  "preservation_constraints": ["..."],
  "confidence": 0.0,
  "wall_count": 0,
  "walls": [{"position": "back", "dimensions": "approx 4m wide", "material": "painted drywall", "openings": [{"type": "window", "wall": "back", "size": "1.2m x 1m", "position": "centred"}]}],
  "ceiling_height": "approx 2.5m",
  "spatial_zones": ["..."],
  "architectural_lines": ["..."]
}`

const quickCheckInstruction = `Look at the photo and answer ONLY with JSON:
{"room_type": "kitchen|bathroom|living_room|bedroom|dining_room|basement|office|laundry|exterior|other", "is_valid": true, "confidence": 0.0}
"is_valid" is true only when the photo clearly shows an interior room or a house exterior that could be renovated.`

// Analyze runs the full structural analysis.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, photo Photo, hint RoomType) (RoomAnalysis, error) {
	if g == nil || g.models == nil {
		return RoomAnalysis{}, Unavailable(capabilityAnalyze, fmt.Errorf("vision: analyzer not configured"))
	}
	prompt := analysisInstruction
	if hint != RoomUnknown {
		prompt = fmt.Sprintf("%s\n\nThe homeowner says this is a %s.", prompt, strings.ReplaceAll(string(hint), "_", " "))
	}

	text, err := g.ask(ctx, capabilityAnalyze, prompt, photo)
	if err != nil {
		return RoomAnalysis{}, err
	}

	analysis, err := parseRoomAnalysis(text)
	if err != nil {
		return RoomAnalysis{}, newCapabilityError(capabilityAnalyze, ErrAnalysisFailed, err)
	}
	if analysis.RoomType == RoomOther && hint != RoomUnknown {
		analysis.RoomType = hint
	}
	g.logger.Debug("room analysed",
		zap.String("room_type", string(analysis.RoomType)),
		zap.Int("structural_elements", len(analysis.StructuralElements)),
		zap.Float64("confidence", analysis.Confidence))
	return analysis, nil
}

// QuickCheck runs the cheap validity probe.
func (g *GeminiAnalyzer) QuickCheck(ctx context.Context, photo Photo) (QuickCheck, error) {
	if g == nil || g.models == nil {
		return QuickCheck{}, Unavailable(capabilityQuickCheck, fmt.Errorf("vision: analyzer not configured"))
	}
	text, err := g.ask(ctx, capabilityQuickCheck, quickCheckInstruction, photo)
	if err != nil {
		return QuickCheck{}, err
	}

	var raw struct {
		RoomType   string  `json:"room_type"`
		IsValid    bool    `json:"is_valid"`
		Confidence float64 `json:"confidence"`
	}
	if err := decodeJSONObject(text, &raw); err != nil {
		return QuickCheck{}, newCapabilityError(capabilityQuickCheck, ErrAnalysisFailed, err)
	}
	return QuickCheck{
		RoomType:   ParseRoomType(raw.RoomType),
		IsValid:    raw.IsValid,
		Confidence: clamp01(raw.Confidence),
	}, nil
}

func (g *GeminiAnalyzer) ask(ctx context.Context, capability, prompt string, photo Photo) (string, error) {
	if len(photo.Data) == 0 {
		return "", fmt.Errorf("vision: empty image data")
	}
	if len(photo.Data) > MaxVisionImageBytes {
		return "", fmt.Errorf("vision: image exceeds %d bytes", MaxVisionImageBytes)
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := float32(0.1)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(photo.Data, detectMime(photo.Data, photo.MIMEType)),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(childCtx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", Classify(capability, fmt.Errorf("vision: generate content: %w", err))
	}

	text := responseText(resp)
	if text == "" {
		return "", newCapabilityError(capability, ErrAnalysisFailed, fmt.Errorf("vision: empty response"))
	}
	return text, nil
}

type rawAnalysis struct {
	RoomType                string   `json:"room_type"`
	Condition               string   `json:"condition"`
	StructuralElements      []string `json:"structural_elements"`
	Fixtures                []string `json:"fixtures"`
	LayoutType              string   `json:"layout_type"`
	Lighting                string   `json:"lighting"`
	Perspective             string   `json:"perspective"`
	PreservationConstraints []string `json:"preservation_constraints"`
	Confidence              float64  `json:"confidence"`
	WallCount               int      `json:"wall_count"`
	Walls                   []Wall   `json:"walls"`
	CeilingHeight           string   `json:"ceiling_height"`
	SpatialZones            []string `json:"spatial_zones"`
	ArchitecturalLines      []string `json:"architectural_lines"`
}

func parseRoomAnalysis(text string) (RoomAnalysis, error) {
	var raw rawAnalysis
	if err := decodeJSONObject(text, &raw); err != nil {
		return RoomAnalysis{}, err
	}

	wallCount := raw.WallCount
	if wallCount == 0 {
		wallCount = len(raw.Walls)
	}
	return RoomAnalysis{
		RoomType:                ParseRoomType(raw.RoomType),
		Condition:               ParseCondition(raw.Condition),
		StructuralElements:      cleanList(raw.StructuralElements),
		Fixtures:                cleanList(raw.Fixtures),
		LayoutType:              strings.TrimSpace(raw.LayoutType),
		Lighting:                strings.TrimSpace(raw.Lighting),
		Perspective:             strings.TrimSpace(raw.Perspective),
		PreservationConstraints: cleanList(raw.PreservationConstraints),
		Confidence:              clamp01(raw.Confidence),
		WallCount:               wallCount,
		Walls:                   raw.Walls,
		CeilingHeight:           strings.TrimSpace(raw.CeilingHeight),
		SpatialZones:            cleanList(raw.SpatialZones),
		ArchitecturalLines:      cleanList(raw.ArchitecturalLines),
	}, nil
}

// decodeJSONObject tolerates prose or code fences around the JSON object.
func decodeJSONObject(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("vision: no JSON object in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("vision: parse response: %w", err)
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if trimmed := strings.TrimSpace(part.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n")
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func detectMime(data []byte, provided string) string {
	mime := strings.TrimSpace(provided)
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if !strings.Contains(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}

func normalizeVisionModel(model string) string {
	clean := strings.TrimSpace(model)
	clean = strings.TrimPrefix(clean, "models/")
	clean = strings.ToLower(clean)
	clean = strings.TrimSuffix(clean, "-latest")

	switch clean {
	case "":
		return defaultVisionModel
	default:
		return clean
	}
}
