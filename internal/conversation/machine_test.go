package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renovateAi/internal/vision"
)

func newTestMachine(opts ...Option) *Machine {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})}, opts...)
	m := NewMachine(DefaultPolicy(), opts...)
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return m
}

func kitchenAnalysis() vision.RoomAnalysis {
	return vision.RoomAnalysis{
		RoomType:                vision.RoomKitchen,
		StructuralElements:      []string{"back wall window"},
		PreservationConstraints: []string{"keep the window centred above the sink", "Keep the window centred above the sink"},
		Confidence:              0.8,
	}
}

func TestFreshSessionIsNotReady(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()

	assert.Equal(t, "id-1", c.ID)
	assert.Equal(t, StatePhotoAnalysis, c.State)
	r := m.CheckReadiness(c)
	assert.False(t, r.IsReady)
	assert.Equal(t, []string{MissingRoomType, MissingStyle}, r.MissingInfo)
	assert.Empty(t, r.SuggestedStyle)

	_, ok := m.NextQuestion(c)
	assert.False(t, ok)
	assert.Equal(t, StatePhotoAnalysis, m.NextTransition(c))
}

func TestIngestCountsOnlyUserTurns(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()

	c, err := m.Ingest(c, RoleUser, "hello", nil)
	require.NoError(t, err)
	c, err = m.Ingest(c, RoleAssistant, "hi! what should we change?", nil)
	require.NoError(t, err)
	c, err = m.Ingest(c, RoleUser, "the floors", &Preferences{DesiredChanges: []string{"replace floors"}})
	require.NoError(t, err)

	assert.Equal(t, 2, c.TurnCount)
	require.Len(t, c.History, 3)
	assert.Equal(t, RoleAssistant, c.History[1].Role)
	assert.NotEqual(t, c.History[0].ID, c.History[2].ID)
	assert.True(t, c.History[2].Timestamp.After(c.History[0].Timestamp))

	_, err = m.Ingest(c, Role("system"), "nope", nil)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestIngestIsMonotonic(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()
	steps := []struct {
		role  Role
		prefs *Preferences
	}{
		{RoleUser, &Preferences{DesiredChanges: []string{"replace countertops"}, Materials: []string{"quartz"}}},
		{RoleAssistant, nil},
		{RoleUser, &Preferences{DesiredChanges: []string{"Replace Countertops", "paint cabinets"}}},
		{RoleUser, &Preferences{Preserve: []string{"window"}, Materials: []string{"Quartz", "brass"}}},
		{RoleUser, &Preferences{}},
		{RoleUser, nil},
	}

	prev := c
	for i, step := range steps {
		next, err := m.Ingest(prev, step.role, fmt.Sprintf("turn %d", i), step.prefs)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(next.Extracted.DesiredChanges), len(prev.Extracted.DesiredChanges))
		assert.GreaterOrEqual(t, len(next.Extracted.Preserve), len(prev.Extracted.Preserve))
		assert.GreaterOrEqual(t, len(next.Extracted.Materials), len(prev.Extracted.Materials))
		assert.GreaterOrEqual(t, next.Extracted.Confidence, prev.Extracted.Confidence)
		want := prev.TurnCount
		if step.role == RoleUser {
			want++
		}
		assert.Equal(t, want, next.TurnCount)
		prev = next
	}

	assert.Equal(t, []string{"replace countertops", "paint cabinets"}, prev.Extracted.DesiredChanges)
	assert.Equal(t, []string{"quartz", "brass"}, prev.Extracted.Materials)
	assert.Equal(t, []string{"window"}, prev.Extracted.Preserve)
	assert.Empty(t, c.History, "original context must not change")
}

func TestStyleIsWriteOnce(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()
	c, _ = m.Ingest(c, RoleUser, "modern please", &Preferences{Style: "Modern"})
	c, _ = m.Ingest(c, RoleUser, "actually farmhouse", &Preferences{Style: "farmhouse"})
	assert.Equal(t, "modern", c.Extracted.Style)

	custom := m.NewSession()
	custom, _ = m.Ingest(custom, RoleUser, "x", &Preferences{Style: "  art   deco "})
	assert.Equal(t, "art deco", custom.Extracted.Style)
}

func TestReadinessAfterTurnsWithStyle(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()
	c, _ = m.Ingest(c, RoleUser, "hi", nil)
	c, _ = m.Ingest(c, RoleUser, "I like modern", &Preferences{Style: "modern"})
	c, _ = m.Ingest(c, RoleUser, "not sure what else", nil)
	require.Equal(t, 3, c.TurnCount)

	r := m.CheckReadiness(c)
	assert.True(t, r.IsReady)
	assert.Equal(t, []string{MissingRoomType}, r.MissingInfo)
}

func TestReadinessWithStyleAndChange(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()
	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{Style: "farmhouse"})
	assert.False(t, m.CheckReadiness(c).IsReady)

	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{DesiredChanges: []string{"add an island"}, RoomType: vision.RoomKitchen})
	r := m.CheckReadiness(c)
	assert.True(t, r.IsReady)
	assert.Empty(t, r.MissingInfo)
	assert.Equal(t, "Kitchen in farmhouse style; changes: add an island", r.GenerationSummary)
}

func TestSuggestedStyleComesFromRoom(t *testing.T) {
	m := newTestMachine()
	c, err := m.AttachAnalysis(m.NewSession(), kitchenAnalysis())
	require.NoError(t, err)
	r := m.CheckReadiness(c)
	assert.NotEmpty(t, r.SuggestedStyle)
	assert.Equal(t, []string{MissingStyle}, r.MissingInfo)
}

func TestAttachAnalysisIsOneShot(t *testing.T) {
	m := newTestMachine()
	start := m.NewSession()
	c, err := m.AttachAnalysis(start, kitchenAnalysis())
	require.NoError(t, err)

	assert.Nil(t, start.Analysis)
	require.NotNil(t, c.Analysis)
	assert.Equal(t, vision.RoomKitchen, c.Extracted.RoomType)
	assert.Equal(t, []string{"keep the window centred above the sink"}, c.Extracted.Preserve)
	assert.Greater(t, c.Extracted.Confidence, start.Extracted.Confidence)

	again, err := m.AttachAnalysis(c, vision.RoomAnalysis{RoomType: vision.RoomBathroom})
	assert.ErrorIs(t, err, ErrAnalysisAttached)
	assert.Equal(t, vision.RoomKitchen, again.Analysis.RoomType)
}

func TestAttachAnalysisKeepsUserRoomType(t *testing.T) {
	m := newTestMachine()
	c, _ := m.Ingest(m.NewSession(), RoleUser, "x", &Preferences{RoomType: vision.RoomBathroom})
	c, err := m.AttachAnalysis(c, kitchenAnalysis())
	require.NoError(t, err)
	assert.Equal(t, vision.RoomBathroom, c.Extracted.RoomType)

	degraded, err := m.AttachAnalysis(m.NewSession(), vision.NeutralAnalysis(vision.RoomUnknown))
	require.NoError(t, err)
	assert.Equal(t, vision.RoomUnknown, degraded.Extracted.RoomType)
}

func TestTransitionsMoveOneStepAtATime(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()

	c, _ = m.AttachAnalysis(c, kitchenAnalysis())
	assert.Equal(t, StateIntentGathering, m.NextTransition(c))
	assert.Equal(t, StatePhotoAnalysis, c.State, "NextTransition must not mutate")
	c = m.Advance(c)
	assert.Equal(t, StateIntentGathering, c.State)
	assert.Equal(t, StateIntentGathering, m.NextTransition(c))

	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{DesiredChanges: []string{"replace cabinets"}})
	c = m.Advance(c)
	assert.Equal(t, StateStyleSelection, c.State)

	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{Style: "industrial"})
	c = m.Advance(c)
	assert.Equal(t, StateRefinement, c.State)

	c = m.Advance(c)
	assert.Equal(t, StateGenerationReady, c.State)
	assert.Equal(t, StateGenerationReady, m.NextTransition(c))
}

func TestStyleDrivenPathSkipsStyleSelection(t *testing.T) {
	m := newTestMachine()
	c, _ := m.AttachAnalysis(m.NewSession(), kitchenAnalysis())
	c = m.Advance(c)
	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{Style: "japandi"})
	assert.Equal(t, StateIntentGathering, m.NextTransition(c), "one turn is not enough")

	c, _ = m.Ingest(c, RoleUser, "y", nil)
	c = m.Settle(c)
	assert.Equal(t, StateGenerationReady, c.State)
}

func TestRefinementGivesUpAfterTurnBudget(t *testing.T) {
	m := newTestMachine()
	c := m.NewSession()
	c.State = StateRefinement
	for i := 0; i < 5; i++ {
		c, _ = m.Ingest(c, RoleUser, "hmm", nil)
	}
	assert.Equal(t, StateGenerationReady, m.NextTransition(c))
}

func TestNextQuestion(t *testing.T) {
	m := newTestMachine()
	c, _ := m.AttachAnalysis(m.NewSession(), vision.RoomAnalysis{RoomType: vision.RoomKitchen})
	c = m.Advance(c)

	q, ok := m.NextQuestion(c)
	require.True(t, ok)
	assert.Contains(t, q, "change about your kitchen")

	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{DesiredChanges: []string{"paint cabinets"}})
	c = m.Advance(c)
	q, ok = m.NextQuestion(c)
	require.True(t, ok)
	assert.Contains(t, q, "style")

	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{Style: "coastal"})
	c.State = StateRefinement
	q, ok = m.NextQuestion(c)
	require.True(t, ok)
	assert.Contains(t, q, "materials")

	c, _ = m.Ingest(c, RoleUser, "x", &Preferences{Materials: []string{"oak"}})
	q, ok = m.NextQuestion(c)
	require.True(t, ok)
	assert.Contains(t, q, "keep")

	c = m.Settle(c)
	_, ok = m.NextQuestion(c)
	assert.False(t, ok)
}

func TestNextQuestionStopsAfterFiveTurns(t *testing.T) {
	m := newTestMachine()
	c, _ := m.AttachAnalysis(m.NewSession(), kitchenAnalysis())
	c = m.Advance(c)
	for i := 0; i < 5; i++ {
		c, _ = m.Ingest(c, RoleUser, "dunno", nil)
	}
	_, ok := m.NextQuestion(c)
	assert.False(t, ok)
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string) (Preferences, error) {
	return Preferences{}, fmt.Errorf("extractor down")
}

func TestIngestTextRunsExtractor(t *testing.T) {
	m := newTestMachine()
	c, err := m.IngestText(context.Background(), m.NewSession(), RoleUser, "Replace the countertops with quartz, farmhouse vibe please.")
	require.NoError(t, err)
	assert.Equal(t, "farmhouse", c.Extracted.Style)
	assert.Equal(t, []string{"replace countertops"}, c.Extracted.DesiredChanges)
	assert.Equal(t, []string{"quartz"}, c.Extracted.Materials)

	c, err = m.IngestText(context.Background(), c, RoleAssistant, "Let's add an island.")
	require.NoError(t, err)
	assert.Len(t, c.Extracted.DesiredChanges, 1, "assistant text is not extracted")
}

func TestRejectedStyleIsNotLockedIn(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()
	c, err := m.IngestText(ctx, m.NewSession(), RoleUser, "I like modern but definitely not farmhouse")
	require.NoError(t, err)
	assert.Equal(t, "modern", c.Extracted.Style)

	c, err = m.IngestText(ctx, m.NewSession(), RoleUser, "no farmhouse please")
	require.NoError(t, err)
	assert.Empty(t, c.Extracted.Style)

	c, err = m.IngestText(ctx, c, RoleUser, "To be clear: modern.")
	require.NoError(t, err)
	assert.Equal(t, "modern", c.Extracted.Style)
}

func TestIngestTextSurvivesExtractorFailure(t *testing.T) {
	broken := newTestMachine(WithExtractor(failingExtractor{}))
	c, err := broken.IngestText(context.Background(), broken.NewSession(), RoleUser, "modern")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TurnCount)
	assert.Empty(t, c.Extracted.Style)
}
