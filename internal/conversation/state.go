// Package conversation tracks one visualization session from photo upload to
// generation readiness. Every operation is pure: it takes a Context and
// returns a new one, leaving the input untouched.
package conversation

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"renovateAi/internal/vision"
)

// State is a step of the intent-gathering flow.
type State string

const (
	StatePhotoAnalysis   State = "photo_analysis"
	StateIntentGathering State = "intent_gathering"
	StateStyleSelection  State = "style_selection"
	StateRefinement      State = "refinement"
	StateGenerationReady State = "generation_ready"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtractedData accumulates design intent. The sets only grow and Style is
// written once.
type ExtractedData struct {
	DesiredChanges []string        `json:"desired_changes"`
	Preserve       []string        `json:"preserve"`
	Materials      []string        `json:"materials"`
	Style          string          `json:"style,omitempty"`
	RoomType       vision.RoomType `json:"room_type,omitempty"`
	Confidence     float64         `json:"confidence"`
}

// Context is the full state of one session.
type Context struct {
	ID        string               `json:"id"`
	State     State                `json:"state"`
	TurnCount int                  `json:"turn_count"`
	History   []Message            `json:"history"`
	Analysis  *vision.RoomAnalysis `json:"analysis,omitempty"`
	Extracted ExtractedData        `json:"extracted"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewSession starts an empty session in StatePhotoAnalysis.
func NewSession() Context {
	return newSession(uuid.NewString(), time.Now().UTC())
}

func newSession(id string, now time.Time) Context {
	return Context{
		ID:        id,
		State:     StatePhotoAnalysis,
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Extracted: ExtractedData{
			DesiredChanges: []string{},
			Preserve:       []string{},
			Materials:      []string{},
			Confidence:     baseConfidence,
		},
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (c Context) Clone() Context {
	out := c
	out.History = slices.Clone(c.History)
	out.Extracted.DesiredChanges = slices.Clone(c.Extracted.DesiredChanges)
	out.Extracted.Preserve = slices.Clone(c.Extracted.Preserve)
	out.Extracted.Materials = slices.Clone(c.Extracted.Materials)
	if c.Analysis != nil {
		analysis := cloneAnalysis(*c.Analysis)
		out.Analysis = &analysis
	}
	return out
}

func cloneAnalysis(a vision.RoomAnalysis) vision.RoomAnalysis {
	a.StructuralElements = slices.Clone(a.StructuralElements)
	a.Fixtures = slices.Clone(a.Fixtures)
	a.PreservationConstraints = slices.Clone(a.PreservationConstraints)
	a.SpatialZones = slices.Clone(a.SpatialZones)
	a.ArchitecturalLines = slices.Clone(a.ArchitecturalLines)
	if a.Walls != nil {
		walls := make([]vision.Wall, len(a.Walls))
		for i, w := range a.Walls {
			w.Openings = slices.Clone(w.Openings)
			walls[i] = w
		}
		a.Walls = walls
	}
	return a
}

// Policy holds the tunable thresholds of the flow.
type Policy struct {
	// ReadinessTurnThreshold is how many user turns substitute for an
	// explicit desired change once a style is known.
	ReadinessTurnThreshold int
	// MaxQuestionTurns is the number of user turns after which the machine
	// stops asking questions.
	MaxQuestionTurns int
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{ReadinessTurnThreshold: 2, MaxQuestionTurns: 5}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.ReadinessTurnThreshold <= 0 {
		p.ReadinessTurnThreshold = def.ReadinessTurnThreshold
	}
	if p.MaxQuestionTurns <= 0 {
		p.MaxQuestionTurns = def.MaxQuestionTurns
	}
	return p
}

// NextTransition returns the state c should move to, or c.State when no
// transition applies. It moves at most one step and never mutates c.
func NextTransition(c Context, p Policy) State {
	p = p.normalized()
	data := c.Extracted
	hasStyle := data.Style != ""
	hasChanges := len(data.DesiredChanges) > 0

	switch c.State {
	case StatePhotoAnalysis:
		if c.Analysis != nil {
			return StateIntentGathering
		}
	case StateIntentGathering:
		switch {
		case hasChanges && hasStyle:
			return StateRefinement
		case hasChanges:
			return StateStyleSelection
		case hasStyle && c.TurnCount >= p.ReadinessTurnThreshold:
			return StateRefinement
		}
	case StateStyleSelection:
		if hasStyle {
			return StateRefinement
		}
	case StateRefinement:
		if isReady(c, p) || c.TurnCount >= p.MaxQuestionTurns {
			return StateGenerationReady
		}
	}
	return c.State
}

// Advance applies one NextTransition step.
func Advance(c Context, p Policy) Context {
	next := NextTransition(c, p)
	if next == c.State {
		return c
	}
	out := c.Clone()
	out.State = next
	return out
}

// Settle advances c until no further transition applies.
func Settle(c Context, p Policy) Context {
	// five states, so four hops is the longest possible chain
	for i := 0; i < 4; i++ {
		next := Advance(c, p)
		if next.State == c.State {
			return next
		}
		c = next
	}
	return c
}

func isReady(c Context, p Policy) bool {
	if c.Extracted.Style == "" {
		return false
	}
	return len(c.Extracted.DesiredChanges) > 0 || c.TurnCount >= p.ReadinessTurnThreshold
}

// unionInto appends the values of add not already in set, comparing
// case-insensitively and ignoring blanks.
func unionInto(set []string, add []string) []string {
	seen := make(map[string]struct{}, len(set)+len(add))
	for _, v := range set {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range add {
		v = strings.Join(strings.Fields(v), " ")
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		set = append(set, v)
	}
	return set
}
