package conversation

import (
	"fmt"
	"strings"

	"renovateAi/internal/catalog"
	"renovateAi/internal/vision"
)

// Missing-info labels, reported in this order.
const (
	MissingRoomType = "room type"
	MissingStyle    = "style preference"
)

// Readiness is the verdict of CheckReadiness.
type Readiness struct {
	IsReady           bool     `json:"is_ready"`
	MissingInfo       []string `json:"missing_info"`
	QualityConfidence float64  `json:"quality_confidence"`
	GenerationSummary string   `json:"generation_summary"`
	SuggestedStyle    string   `json:"suggested_style,omitempty"`
}

// CheckReadiness reports whether enough intent has been gathered to spend a
// generation call. A style is required; after that either one desired change
// or ReadinessTurnThreshold user turns suffice.
func (m *Machine) CheckReadiness(c Context) Readiness {
	data := c.Extracted
	missing := []string{}
	if data.RoomType == vision.RoomUnknown {
		missing = append(missing, MissingRoomType)
	}
	if data.Style == "" {
		missing = append(missing, MissingStyle)
	}

	r := Readiness{
		IsReady:           isReady(c, m.policy),
		MissingInfo:       missing,
		QualityConfidence: confidence(c),
		GenerationSummary: summarize(data),
	}
	if data.Style == "" {
		r.SuggestedStyle = suggestedStyle(data.RoomType)
	}
	return r
}

func suggestedStyle(rt vision.RoomType) string {
	if rt == vision.RoomUnknown {
		return ""
	}
	if room, ok := catalog.LookupRoom(string(rt)); ok {
		return room.SuggestedStyle
	}
	return ""
}

func summarize(data ExtractedData) string {
	room := "room"
	if data.RoomType != vision.RoomUnknown {
		room = humanize(string(data.RoomType))
	}
	style := "an undecided style"
	if data.Style != "" {
		style = humanize(data.Style) + " style"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s in %s", capitalize(room), style)
	if len(data.DesiredChanges) > 0 {
		fmt.Fprintf(&b, "; changes: %s", strings.Join(data.DesiredChanges, ", "))
	}
	if len(data.Materials) > 0 {
		fmt.Fprintf(&b, "; materials: %s", strings.Join(data.Materials, ", "))
	}
	if len(data.Preserve) > 0 {
		fmt.Fprintf(&b, "; keep: %s", strings.Join(data.Preserve, ", "))
	}
	return b.String()
}

// NextQuestion returns the clarifying question to ask next, or false when
// there is nothing to ask: before the photo is analysed, once generation is
// ready, and after MaxQuestionTurns user turns.
func (m *Machine) NextQuestion(c Context) (string, bool) {
	if c.State == StatePhotoAnalysis || c.State == StateGenerationReady {
		return "", false
	}
	if c.TurnCount >= m.policy.MaxQuestionTurns {
		return "", false
	}

	data := c.Extracted
	room := "room"
	if data.RoomType != vision.RoomUnknown && data.RoomType != vision.RoomOther {
		room = humanize(string(data.RoomType))
	}

	if len(data.DesiredChanges) == 0 {
		return fmt.Sprintf("What would you most like to change about your %s?", room), true
	}
	if data.Style == "" {
		q := "Which style are you drawn to? For example: modern, farmhouse, scandinavian, industrial or coastal."
		if s := suggestedStyle(data.RoomType); s != "" {
			q += fmt.Sprintf(" Many %s renovations work well in a %s style.", room, humanize(s))
		}
		return q, true
	}
	if c.State != StateRefinement {
		return "", false
	}
	if len(data.Materials) == 0 {
		return "Do you have any materials or finishes in mind, such as wood species, stone or metal accents?", true
	}
	if len(data.Preserve) == 0 {
		return fmt.Sprintf("Is there anything in your %s you definitely want to keep as it is?", room), true
	}
	return "", false
}

func humanize(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
