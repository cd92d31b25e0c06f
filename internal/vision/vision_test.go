package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var pngPhoto = Photo{Data: []byte("\x89PNG\r\n\x1a\nfake-image-body")}

type stubModels struct {
	mu       sync.Mutex
	calls    int
	contents [][]*genai.Content
	reply    func(call int) (*genai.GenerateContentResponse, error)
}

func (s *stubModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.contents = append(s.contents, contents)
	s.mu.Unlock()
	return s.reply(call)
}

func textReply(text string) func(int) (*genai.GenerateContentResponse, error) {
	return func(int) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}}}, nil
	}
}

func errReply(err error) func(int) (*genai.GenerateContentResponse, error) {
	return func(int) (*genai.GenerateContentResponse, error) { return nil, err }
}

func TestParseRoomType(t *testing.T) {
	cases := map[string]RoomType{
		"Kitchen":     RoomKitchen,
		"living room": RoomLiving,
		"Living-Room": RoomLiving,
		"lounge":      RoomLiving,
		"ensuite":     RoomBathroom,
		"garage":      RoomOther,
		"  ":          RoomUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRoomType(in), in)
	}
}

func TestGeminiAnalyzerParsesFencedJSON(t *testing.T) {
	models := &stubModels{reply: textReply("Here you go:\n```json\n" + `{
		"room_type": "kitchen",
		"condition": "dated",
		"structural_elements": ["back wall window", "Back wall window", " island "],
		"fixtures": ["sink"],
		"layout_type": "galley",
		"lighting": "soft daylight from the left",
		"perspective": "eye level from the doorway",
		"preservation_constraints": ["keep the window centred above the sink"],
		"confidence": 1.7,
		"walls": [{"position": "back"}, {"position": "left"}]
	}` + "\n```")}
	analyzer := newGeminiAnalyzer(models, "models/Gemini-2.5-Flash-latest", 0, nil)
	assert.Equal(t, "gemini-2.5-flash", analyzer.model)

	got, err := analyzer.Analyze(context.Background(), pngPhoto, RoomKitchen)
	require.NoError(t, err)
	assert.Equal(t, RoomKitchen, got.RoomType)
	assert.Equal(t, ConditionFair, got.Condition)
	assert.Equal(t, []string{"back wall window", "island"}, got.StructuralElements)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, 2, got.WallCount)
	assert.False(t, got.Degraded)

	require.Len(t, models.contents, 1)
	parts := models.contents[0][0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "The homeowner says this is a kitchen.")
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
}

func TestGeminiAnalyzerKeepsHintWhenModelUnsure(t *testing.T) {
	models := &stubModels{reply: textReply(`{"room_type": "other", "confidence": 0.4}`)}
	got, err := newGeminiAnalyzer(models, "", time.Second, nil).Analyze(context.Background(), pngPhoto, RoomBathroom)
	require.NoError(t, err)
	assert.Equal(t, RoomBathroom, got.RoomType)
}

func TestGeminiAnalyzerErrors(t *testing.T) {
	_, err := newGeminiAnalyzer(nil, "", 0, nil).Analyze(context.Background(), pngPhoto, RoomUnknown)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	models := &stubModels{reply: textReply("I cannot help with that")}
	_, err = newGeminiAnalyzer(models, "", 0, nil).Analyze(context.Background(), pngPhoto, RoomUnknown)
	assert.ErrorIs(t, err, ErrAnalysisFailed)

	_, err = newGeminiAnalyzer(models, "", 0, nil).Analyze(context.Background(), Photo{}, RoomUnknown)
	assert.Error(t, err)

	quota := &stubModels{reply: errReply(genai.APIError{Code: 429, Message: "slow down"})}
	_, err = newGeminiAnalyzer(quota, "", 0, nil).QuickCheck(context.Background(), pngPhoto)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.True(t, IsTerminal(err))
}

func TestGeminiAnalyzerQuickCheck(t *testing.T) {
	models := &stubModels{reply: textReply(`{"room_type": "Bathroom", "is_valid": true, "confidence": 0.92}`)}
	got, err := newGeminiAnalyzer(models, "", 0, nil).QuickCheck(context.Background(), pngPhoto)
	require.NoError(t, err)
	assert.Equal(t, QuickCheck{RoomType: RoomBathroom, IsValid: true, Confidence: 0.92}, got)
}

func TestClassify(t *testing.T) {
	plain := errors.New("boom")
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"quota", genai.APIError{Code: 429}, ErrQuotaExceeded},
		{"forbidden", fmt.Errorf("wrapped: %w", genai.APIError{Code: 403}), ErrCapabilityUnavailable},
		{"gateway timeout", genai.APIError{Code: 504}, ErrGenerationTimeout},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrGenerationTimeout},
		{"grpc quota", status.Error(codes.ResourceExhausted, "quota"), ErrQuotaExceeded},
		{"grpc auth", status.Error(codes.Unauthenticated, "no creds"), ErrCapabilityUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify("test", tc.err)
			assert.ErrorIs(t, got, tc.kind)
			var ce *CapabilityError
			require.ErrorAs(t, got, &ce)
			assert.Equal(t, "test", ce.Capability)
		})
	}

	assert.Same(t, plain, Classify("test", plain))
	assert.NoError(t, Classify("test", nil))
	assert.ErrorIs(t, Classify("test", context.Canceled), context.Canceled)

	already := Empty("other", plain)
	assert.Same(t, already, Classify("test", already))
}

func TestRetryability(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(Unavailable("x", nil)))
	assert.False(t, IsRetryable(newCapabilityError("x", ErrQuotaExceeded, nil)))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(newCapabilityError("x", ErrGenerationTimeout, nil)))
	assert.True(t, IsRetryable(Empty("x", nil)))
	assert.True(t, IsRetryable(errors.New("transient")))
}

type countingAnalyzer struct {
	mu       sync.Mutex
	calls    int
	analysis RoomAnalysis
	err      error
}

func (c *countingAnalyzer) Analyze(context.Context, Photo, RoomType) (RoomAnalysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.analysis, c.err
}

func (c *countingAnalyzer) QuickCheck(context.Context, Photo) (QuickCheck, error) {
	return QuickCheck{}, c.err
}

func TestDegradingFallsBackToNeutral(t *testing.T) {
	base := &countingAnalyzer{err: Unavailable("vision.analyze", errors.New("no key"))}
	got, err := Degrading(base, nil).Analyze(context.Background(), pngPhoto, RoomKitchen)
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, RoomKitchen, got.RoomType)
	assert.InDelta(t, 0.1, got.Confidence, 1e-9)

	got, err = Degrading(nil, nil).Analyze(context.Background(), pngPhoto, RoomUnknown)
	require.NoError(t, err)
	assert.Equal(t, RoomOther, got.RoomType)

	check, err := Degrading(base, nil).QuickCheck(context.Background(), pngPhoto)
	require.NoError(t, err)
	assert.True(t, check.IsValid)
}

func TestDegradingHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base := &countingAnalyzer{err: context.Canceled}
	_, err := Degrading(base, nil).Analyze(ctx, pngPhoto, RoomKitchen)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedAnalyzer(t *testing.T) {
	base := &countingAnalyzer{analysis: RoomAnalysis{RoomType: RoomKitchen, Confidence: 0.8}}
	cached := Cached(base, time.Minute).(*cachedAnalyzer)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got, err := cached.Analyze(context.Background(), pngPhoto, RoomKitchen)
		require.NoError(t, err)
		assert.Equal(t, RoomKitchen, got.RoomType)
	}
	assert.Equal(t, 1, base.calls)

	// a different hint is a different key
	_, err := cached.Analyze(context.Background(), pngPhoto, RoomBathroom)
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls)

	now = now.Add(2 * time.Minute)
	_, err = cached.Analyze(context.Background(), pngPhoto, RoomKitchen)
	require.NoError(t, err)
	assert.Equal(t, 3, base.calls)
}

func TestCachedSkipsDegraded(t *testing.T) {
	base := &countingAnalyzer{analysis: NeutralAnalysis(RoomKitchen)}
	cached := Cached(base, time.Minute)
	_, _ = cached.Analyze(context.Background(), pngPhoto, RoomKitchen)
	_, _ = cached.Analyze(context.Background(), pngPhoto, RoomKitchen)
	assert.Equal(t, 2, base.calls)

	assert.Same(t, base, Cached(base, 0))
}

func TestGeminiImageGenerator(t *testing.T) {
	models := &stubModels{reply: func(int) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here is the render"},
				{InlineData: &genai.Blob{Data: []byte("render"), MIMEType: ""}},
			}},
		}}}, nil
	}}
	gen := newGeminiImageGenerator(models, "")
	assert.Equal(t, defaultImageModel, gen.model)

	img, err := gen.Generate(context.Background(), ImageRequest{Prompt: "a kitchen", Input: &pngPhoto})
	require.NoError(t, err)
	assert.Equal(t, []byte("render"), img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Len(t, models.contents[0][0].Parts, 2)
}

func TestGeminiImageGeneratorErrors(t *testing.T) {
	_, err := newGeminiImageGenerator(nil, "").Generate(context.Background(), ImageRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	textOnly := &stubModels{reply: textReply("sorry, no image")}
	_, err = newGeminiImageGenerator(textOnly, "").Generate(context.Background(), ImageRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrGenerationEmpty)
	assert.True(t, IsRetryable(err))

	slow := &stubModels{reply: errReply(context.DeadlineExceeded)}
	_, err = newGeminiImageGenerator(slow, "").Generate(context.Background(), ImageRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrGenerationTimeout)
}

func TestGeminiValidator(t *testing.T) {
	render := GeneratedImage{Data: []byte("render"), MIMEType: "image/png"}

	good := &stubModels{reply: textReply(`{"score": 0.91, "issues": [], "recommendations": []}`)}
	got, err := newGeminiValidator(good, "", 0).Validate(context.Background(), pngPhoto, render)
	require.NoError(t, err)
	assert.True(t, got.IsAcceptable)
	assert.InDelta(t, 0.91, got.Score, 1e-9)

	poor := &stubModels{reply: textReply(`{"score": 0.6, "issues": ["window moved", "ceiling lowered"]}`)}
	got, err = newGeminiValidator(poor, "", 0.85).Validate(context.Background(), pngPhoto, render)
	require.NoError(t, err)
	assert.False(t, got.IsAcceptable)
	assert.Equal(t, "window moved; ceiling lowered", SummarizeIssues(got.Issues, 0))
	assert.Equal(t, "window moved", SummarizeIssues(got.Issues, 1))

	broken := &stubModels{reply: errReply(errors.New("upstream"))}
	_, err = newGeminiValidator(broken, "", 0).Validate(context.Background(), pngPhoto, render)
	assert.ErrorIs(t, err, ErrValidationUnavailable)

	_, err = newGeminiValidator(good, "", 0).Validate(context.Background(), pngPhoto, GeneratedImage{})
	assert.ErrorIs(t, err, ErrValidationUnavailable)
}
