package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"renovateAi/internal/catalog"
	"renovateAi/internal/vision"
)

var (
	// ErrAnalysisAttached is returned when a session already has an analysis.
	ErrAnalysisAttached = errors.New("conversation: photo analysis already attached")
	// ErrInvalidRole is returned for roles other than user and assistant.
	ErrInvalidRole = errors.New("conversation: invalid message role")
)

const (
	baseConfidence     = 0.2
	analysisConfidence = 0.2
	styleConfidence    = 0.3
	changeConfidence   = 0.1
	maxChangeBonus     = 3
)

// Machine applies conversation operations under one Policy. It holds no
// session state.
type Machine struct {
	policy    Policy
	extractor Extractor
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option customises a Machine.
type Option func(*Machine)

// WithExtractor sets the preference extractor used by IngestText.
func WithExtractor(e Extractor) Option { return func(m *Machine) { m.extractor = e } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

// NewMachine builds a Machine. Without WithExtractor, IngestText uses the
// keyword extractor.
func NewMachine(policy Policy, opts ...Option) *Machine {
	m := &Machine{
		policy:    policy.normalized(),
		extractor: KeywordExtractor{},
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the thresholds in use.
func (m *Machine) Policy() Policy { return m.policy }

// NewSession starts a session using the machine's clock.
func (m *Machine) NewSession() Context {
	return newSession(m.newID(), m.now())
}

// Ingest appends a message and unions prefs into the extracted data. Only
// user messages count as turns. The style is kept if already set.
func (m *Machine) Ingest(c Context, role Role, text string, prefs *Preferences) (Context, error) {
	if role != RoleUser && role != RoleAssistant {
		return c, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	out := c.Clone()
	now := m.now()
	out.History = append(out.History, Message{
		ID:        m.newID(),
		Role:      role,
		Content:   text,
		Timestamp: now,
	})
	if role == RoleUser {
		out.TurnCount++
	}
	if prefs != nil {
		mergePreferences(&out.Extracted, *prefs)
	}
	out.Extracted.Confidence = confidence(out)
	out.UpdatedAt = now
	return out, nil
}

// ApplyPreferences unions prefs into c without recording a message or a
// turn. It serves choices made outside the chat, such as a custom style.
func (m *Machine) ApplyPreferences(c Context, prefs Preferences) Context {
	out := c.Clone()
	mergePreferences(&out.Extracted, prefs)
	out.Extracted.Confidence = confidence(out)
	out.UpdatedAt = m.now()
	return out
}

// Extract runs the extractor over a user message. Assistant messages and
// blank text yield nil. Extraction failures are logged and also yield nil,
// so the message can still be recorded; only cancellation is returned.
func (m *Machine) Extract(ctx context.Context, sessionID string, role Role, text string) (*Preferences, error) {
	if role != RoleUser || m.extractor == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	extracted, err := m.extractor.Extract(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn("preference extraction failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, nil
	}
	return &extracted, nil
}

// IngestText extracts preferences from text and ingests the message.
func (m *Machine) IngestText(ctx context.Context, c Context, role Role, text string) (Context, error) {
	prefs, err := m.Extract(ctx, c.ID, role, text)
	if err != nil {
		return c, err
	}
	return m.Ingest(c, role, text, prefs)
}

// AttachAnalysis records the photo analysis once, seeding the room type and
// the preserve set.
func (m *Machine) AttachAnalysis(c Context, analysis vision.RoomAnalysis) (Context, error) {
	if c.Analysis != nil {
		return c, ErrAnalysisAttached
	}
	out := c.Clone()
	a := cloneAnalysis(analysis)
	out.Analysis = &a

	if out.Extracted.RoomType == vision.RoomUnknown && a.RoomType != vision.RoomUnknown && a.RoomType != vision.RoomOther {
		out.Extracted.RoomType = a.RoomType
	}
	out.Extracted.Preserve = unionInto(out.Extracted.Preserve, a.PreservationConstraints)
	out.Extracted.Confidence = confidence(out)
	out.UpdatedAt = m.now()
	return out, nil
}

// NextTransition is NextTransition under the machine's policy.
func (m *Machine) NextTransition(c Context) State { return NextTransition(c, m.policy) }

// Advance is Advance under the machine's policy.
func (m *Machine) Advance(c Context) Context { return Advance(c, m.policy) }

// Settle is Settle under the machine's policy.
func (m *Machine) Settle(c Context) Context { return Settle(c, m.policy) }

func mergePreferences(dst *ExtractedData, p Preferences) {
	dst.DesiredChanges = unionInto(dst.DesiredChanges, p.DesiredChanges)
	dst.Preserve = unionInto(dst.Preserve, p.Preserve)
	dst.Materials = unionInto(dst.Materials, p.Materials)
	if dst.Style == "" {
		dst.Style = normalizeStyle(p.Style)
	}
	if dst.RoomType == vision.RoomUnknown && p.RoomType != vision.RoomOther {
		dst.RoomType = p.RoomType
	}
}

// normalizeStyle maps catalog styles to their key and keeps custom styles
// as trimmed free text.
func normalizeStyle(raw string) string {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return ""
	}
	if s, ok := catalog.LookupStyle(raw); ok {
		return s.Key
	}
	return raw
}

func confidence(c Context) float64 {
	score := baseConfidence
	if c.Analysis != nil {
		score += analysisConfidence
	}
	if c.Extracted.Style != "" {
		score += styleConfidence
	}
	score += changeConfidence * float64(min(len(c.Extracted.DesiredChanges), maxChangeBonus))
	return min(score, 1)
}
