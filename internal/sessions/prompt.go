package sessions

import (
	"renovateAi/internal/prompts"
	"renovateAi/internal/storage"
	"renovateAi/internal/vision"
)

// PromptData assembles compiler input from a session. Room type falls back
// to the analysis when the conversation never named one, and a degraded
// analysis is left out so its placeholders never reach the prompt.
func PromptData(s storage.Session) prompts.Data {
	c := s.Conversation
	d := prompts.Data{
		RoomType:       string(c.Extracted.RoomType),
		Style:          c.Extracted.Style,
		CustomRoomType: s.Overrides.CustomRoomType,
		CustomStyle:    s.Overrides.CustomStyle,
		Constraints:    s.Overrides.Constraints,
		VoiceSummary:   s.Overrides.VoiceSummary,
	}

	if a := c.Analysis; a != nil && !a.Degraded {
		analysis := *a
		d.Analysis = &analysis
		if d.RoomType == "" && a.RoomType != vision.RoomUnknown {
			d.RoomType = string(a.RoomType)
		}
	}

	x := c.Extracted
	if len(x.DesiredChanges)+len(x.Preserve)+len(x.Materials) > 0 {
		d.Intent = &prompts.DesignIntent{
			Changes:   append([]string(nil), x.DesiredChanges...),
			Preserve:  append([]string(nil), x.Preserve...),
			Materials: append([]string(nil), x.Materials...),
		}
	}
	return d
}

func compilePrompt(d prompts.Data, quick bool) string {
	if quick {
		return prompts.CompileQuick(d)
	}
	return prompts.Compile(d)
}
