package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"renovateAi/internal/events"
	"renovateAi/internal/prompts"
	"renovateAi/internal/vision"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubImages struct {
	mu      sync.Mutex
	prompts []string
	reply   func(ctx context.Context, call int) (vision.GeneratedImage, error)
}

func (s *stubImages) Generate(ctx context.Context, req vision.ImageRequest) (vision.GeneratedImage, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	call := len(s.prompts)
	s.mu.Unlock()
	if s.reply == nil {
		return image(call), nil
	}
	return s.reply(ctx, call)
}

func (s *stubImages) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func image(n int) vision.GeneratedImage {
	return vision.GeneratedImage{Data: []byte(fmt.Sprintf("render-%d", n)), MIMEType: "image/png"}
}

type stubValidator struct {
	mu      sync.Mutex
	results []vision.ValidationResult
	err     error
	calls   int
}

func (s *stubValidator) Validate(_ context.Context, _ vision.Photo, _ vision.GeneratedImage) (vision.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return vision.ValidationResult{}, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(evt events.Event) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func testRequest() Request {
	return Request{
		SessionID: "sess-1",
		Photo:     vision.Photo{Data: []byte("original"), MIMEType: "image/jpeg"},
		Prompt:    prompts.Data{RoomType: "kitchen", Style: "farmhouse"},
	}
}

func reject(score float64, issues ...string) vision.ValidationResult {
	return vision.ValidationResult{Score: score, Issues: issues}
}

func accept(score float64) vision.ValidationResult {
	return vision.ValidationResult{IsAcceptable: true, Score: score}
}

func TestGenerateRetriesWithReinforcement(t *testing.T) {
	images := &stubImages{}
	validator := &stubValidator{results: []vision.ValidationResult{reject(0.55, "window moved"), accept(0.91)}}
	pub := &recordingPublisher{}
	g := NewGenerator(images, DefaultPolicy(), WithValidator(validator), WithPublisher(pub))

	c, err := g.Generate(context.Background(), testRequest(), 0)
	require.NoError(t, err)

	assert.Equal(t, image(2), c.Image)
	assert.True(t, c.Refined)
	assert.Equal(t, 2, c.Attempts)
	require.NotNil(t, c.ValidationScore)
	assert.InDelta(t, 0.91, *c.ValidationScore, 1e-9)

	require.Len(t, images.prompts, 2)
	assert.NotContains(t, images.prompts[0], prompts.HeaderCorrection)
	assert.Contains(t, images.prompts[1], prompts.HeaderCorrection)
	assert.Contains(t, images.prompts[1], "scored 0.55")
	assert.Contains(t, images.prompts[1], "window moved")
	assert.Equal(t, []events.Kind{events.KindAttemptFailed, events.KindConceptValidated}, pub.kinds())
}

func TestGenerateValidatorFailsOpen(t *testing.T) {
	images := &stubImages{}
	validator := &stubValidator{err: vision.Unavailable("vision.validate", errors.New("boom"))}
	g := NewGenerator(images, DefaultPolicy(), WithValidator(validator))

	c, err := g.Generate(context.Background(), testRequest(), 0)
	require.NoError(t, err)
	assert.Equal(t, image(1), c.Image)
	assert.False(t, c.Refined)
	assert.Nil(t, c.ValidationScore)
	assert.Equal(t, 1, images.calls())
}

func TestGenerateReturnsBestAttemptWhenBudgetExhausted(t *testing.T) {
	images := &stubImages{}
	validator := &stubValidator{results: []vision.ValidationResult{reject(0.7), reject(0.4)}}
	g := NewGenerator(images, DefaultPolicy(), WithValidator(validator))

	c, err := g.Generate(context.Background(), testRequest(), 0)
	require.NoError(t, err)
	assert.Equal(t, image(1), c.Image)
	assert.False(t, c.Refined)
	assert.Equal(t, 1, c.Attempts)
	require.NotNil(t, c.ValidationScore)
	assert.InDelta(t, 0.7, *c.ValidationScore, 1e-9)
	assert.Equal(t, 2, images.calls())
}

func TestGenerateSecondaryConceptIsSingleShot(t *testing.T) {
	images := &stubImages{}
	validator := &stubValidator{results: []vision.ValidationResult{reject(0.3)}}
	g := NewGenerator(images, DefaultPolicy(), WithValidator(validator))

	c, err := g.Generate(context.Background(), testRequest(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, images.calls())
	assert.Equal(t, 2, c.VariationIndex)
	assert.Contains(t, c.Prompt, prompts.HeaderVariation+" 2:")
}

func TestGenerateTerminalErrorIsNotRetried(t *testing.T) {
	for name, kind := range map[string]error{
		"unavailable": vision.ErrCapabilityUnavailable,
		"quota":       vision.ErrQuotaExceeded,
	} {
		t.Run(name, func(t *testing.T) {
			images := &stubImages{reply: func(context.Context, int) (vision.GeneratedImage, error) {
				return vision.GeneratedImage{}, &vision.CapabilityError{Capability: "vision.generate", Kind: kind}
			}}
			g := NewGenerator(images, Policy{MaxRetries: 3, ValidationAttempts: 2})

			_, err := g.Generate(context.Background(), testRequest(), 0)
			require.ErrorIs(t, err, kind)
			assert.Equal(t, 1, images.calls())
		})
	}
}

func TestGenerateRetryableErrorConsumesBudget(t *testing.T) {
	images := &stubImages{reply: func(_ context.Context, call int) (vision.GeneratedImage, error) {
		if call == 1 {
			return vision.GeneratedImage{}, nil
		}
		return image(call), nil
	}}
	pub := &recordingPublisher{}
	g := NewGenerator(images, DefaultPolicy(), WithPublisher(pub))

	c, err := g.Generate(context.Background(), testRequest(), 0)
	require.NoError(t, err)
	assert.Equal(t, image(2), c.Image)
	assert.Equal(t, 2, c.Attempts)
	assert.False(t, c.Refined)
	assert.Equal(t, []events.Kind{events.KindAttemptFailed}, pub.kinds())

	_, err = NewGenerator(images, DefaultPolicy()).Generate(context.Background(), testRequest(), 1)
	assert.NoError(t, err)
}

func TestGenerateAttemptTimeout(t *testing.T) {
	images := &stubImages{reply: func(ctx context.Context, _ int) (vision.GeneratedImage, error) {
		<-ctx.Done()
		return vision.GeneratedImage{}, ctx.Err()
	}}
	g := NewGenerator(images, Policy{MaxRetries: 1, AttemptTimeout: 10 * time.Millisecond})

	_, err := g.Generate(context.Background(), testRequest(), 0)
	require.ErrorIs(t, err, vision.ErrGenerationTimeout)
	assert.True(t, vision.IsRetryable(err))
	assert.Equal(t, 2, images.calls())
}

func TestGenerateWithoutValidatorAcceptsFirstRender(t *testing.T) {
	images := &stubImages{}
	c, err := NewGenerator(images, DefaultPolicy()).Generate(context.Background(), testRequest(), 0)
	require.NoError(t, err)
	assert.Equal(t, image(1), c.Image)
	assert.Nil(t, c.ValidationScore)
}

func TestGenerateSkipsValidationBeyondBudget(t *testing.T) {
	images := &stubImages{}
	validator := &stubValidator{results: []vision.ValidationResult{reject(0.2)}}
	g := NewGenerator(images, Policy{MaxRetries: 3, ValidationAttempts: 1}, WithValidator(validator))

	c, err := g.Generate(context.Background(), testRequest(), 0)
	require.NoError(t, err)
	assert.Equal(t, image(2), c.Image)
	assert.True(t, c.Refined)
	assert.Nil(t, c.ValidationScore)
	assert.Equal(t, 1, validator.calls)
}

func TestGenerateQuickMode(t *testing.T) {
	images := &stubImages{}
	req := testRequest()
	req.Quick = true
	req.Prompt.Analysis = &vision.RoomAnalysis{StructuralElements: []string{"exposed beam"}}

	_, err := NewGenerator(images, DefaultPolicy()).Generate(context.Background(), req, 0)
	require.NoError(t, err)
	assert.NotContains(t, images.prompts[0], "exposed beam")
}

func TestGenerateWithoutImageCapability(t *testing.T) {
	_, err := NewGenerator(nil, DefaultPolicy()).Generate(context.Background(), testRequest(), 0)
	assert.ErrorIs(t, err, vision.ErrCapabilityUnavailable)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	images := &stubImages{reply: func(ctx context.Context, _ int) (vision.GeneratedImage, error) {
		cancel()
		return vision.GeneratedImage{}, ctx.Err()
	}}

	_, err := NewGenerator(images, DefaultPolicy()).Generate(ctx, testRequest(), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, images.calls())
}
