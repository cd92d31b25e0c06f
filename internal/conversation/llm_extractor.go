package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"renovateAi/internal/catalog"
	"renovateAi/internal/llm"
	"renovateAi/internal/vision"
)

// LLMExtractor asks a chat model for Preferences and falls back to another
// Extractor when the model fails or answers with something unparseable.
type LLMExtractor struct {
	client   llm.Client
	model    string
	fallback Extractor
	logger   *zap.Logger
}

// NewLLMExtractor constructs an extractor. A non-empty model is sent as a
// per-call override of the client's default. A nil fallback means
// KeywordExtractor.
func NewLLMExtractor(client llm.Client, model string, fallback Extractor, logger *zap.Logger) *LLMExtractor {
	if fallback == nil {
		fallback = KeywordExtractor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{client: client, model: model, fallback: fallback, logger: logger}
}

var extractionSystemPrompt = fmt.Sprintf(`You extract home renovation preferences from a homeowner's chat message.
Reply ONLY with JSON:
{"desired_changes": ["..."], "preserve": ["..."], "materials": ["..."], "style": "", "room_type": ""}
- desired_changes: short imperative phrases such as "replace countertops".
- preserve: things the homeowner wants kept, such as "window".
- materials: named materials or finishes.
- style: one of %s, or free text if none fits, or "" if no style is mentioned.
- room_type: kitchen, bathroom, living_room, bedroom, dining_room, basement, office, laundry, exterior, or "".
Never invent preferences that are not in the message.`, strings.Join(catalog.StyleNames(), ", "))

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (Preferences, error) {
	if e.client == nil {
		return e.fallback.Extract(ctx, text)
	}
	callCtx := llm.WithJSONResponse(llm.WithModel(ctx, e.model))
	reply, err := e.client.ChatCompletion(callCtx, []llm.ChatMessage{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: text},
	}, 0.1)
	if err == nil {
		var prefs Preferences
		prefs, err = parsePreferences(reply)
		if err == nil {
			return prefs, nil
		}
	}
	if ctx.Err() != nil {
		return Preferences{}, ctx.Err()
	}

	e.logger.Warn("model extraction failed, using fallback extractor", zap.Error(err))
	return e.fallback.Extract(ctx, text)
}

func parsePreferences(reply string) (Preferences, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Preferences{}, fmt.Errorf("conversation: no JSON object in extraction reply")
	}
	var raw struct {
		DesiredChanges []string `json:"desired_changes"`
		Preserve       []string `json:"preserve"`
		Materials      []string `json:"materials"`
		Style          string   `json:"style"`
		RoomType       string   `json:"room_type"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Preferences{}, fmt.Errorf("conversation: parse extraction reply: %w", err)
	}

	p := Preferences{
		DesiredChanges: unionInto(nil, raw.DesiredChanges),
		Preserve:       unionInto(nil, raw.Preserve),
		Materials:      unionInto(nil, raw.Materials),
		Style:          strings.TrimSpace(raw.Style),
	}
	if rt := vision.ParseRoomType(raw.RoomType); rt != vision.RoomOther {
		p.RoomType = rt
	}
	return p, nil
}
