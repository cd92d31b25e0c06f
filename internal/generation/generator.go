// Package generation renders renovation concepts: a generate, validate and
// retry loop per concept, fanned out across variation seeds by Orchestrator.
package generation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"renovateAi/internal/events"
	"renovateAi/internal/metrics"
	"renovateAi/internal/prompts"
	"renovateAi/internal/vision"
)

// Policy bounds how much a single concept may cost.
type Policy struct {
	// MaxRetries is the number of reinforcement retries granted to the
	// primary concept. Secondary concepts are single-shot.
	MaxRetries int
	// ValidationAttempts caps how many attempts of one concept are sent to
	// the validator. Later attempts are returned as-is.
	ValidationAttempts int
	AttemptTimeout     time.Duration
	ValidationTimeout  time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:         1,
		ValidationAttempts: 2,
		AttemptTimeout:     90 * time.Second,
		ValidationTimeout:  45 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.ValidationAttempts < 0 {
		p.ValidationAttempts = 0
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	if p.ValidationTimeout <= 0 {
		p.ValidationTimeout = def.ValidationTimeout
	}
	return p
}

// Request is the input shared by every concept of a batch.
type Request struct {
	SessionID string
	Photo     vision.Photo
	Prompt    prompts.Data
	// Quick compiles with prompts.CompileQuick.
	Quick bool
}

// Concept is one rendered candidate.
type Concept struct {
	Image          vision.GeneratedImage `json:"image"`
	VariationIndex int                   `json:"variation_index"`
	Attempts       int                   `json:"attempts"`
	// Refined marks a result produced by a reinforced retry prompt.
	Refined         bool     `json:"refined"`
	ValidationScore *float64 `json:"validation_score,omitempty"`
	Prompt          string   `json:"-"`
}

// Publisher receives progress events. *events.Broker satisfies it.
type Publisher interface {
	Publish(evt events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// Generator runs the control loop for one concept.
type Generator struct {
	images    vision.ImageGenerator
	validator vision.StructureValidator
	policy    Policy
	logger    *zap.Logger
	publisher Publisher
	metrics   *metrics.Metrics
}

// Option customises a Generator.
type Option func(*Generator)

// WithValidator enables structural validation. Without one every render is
// accepted as produced.
func WithValidator(v vision.StructureValidator) Option {
	return func(g *Generator) { g.validator = v }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithPublisher sets the progress event sink.
func WithPublisher(p Publisher) Option {
	return func(g *Generator) {
		if p != nil {
			g.publisher = p
		}
	}
}

// WithMetrics records attempts and scores.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator constructs the control loop around an image capability.
func NewGenerator(images vision.ImageGenerator, policy Policy, opts ...Option) *Generator {
	g := &Generator{
		images:    images,
		policy:    policy.normalized(),
		logger:    zap.NewNop(),
		publisher: nopPublisher{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the effective policy.
func (g *Generator) Policy() Policy {
	return g.policy
}

const capabilityGenerate = "vision.generate"

// loopState is the whole of the retry bookkeeping for one concept.
type loopState struct {
	attempt       int
	maxAttempts   int
	lastErr       error
	best          *Concept
	reinforcement *prompts.Reinforcement
}

func (s *loopState) keep(c Concept) {
	if s.best == nil || score(c) > score(*s.best) {
		s.best = &c
	}
}

func score(c Concept) float64 {
	if c.ValidationScore == nil {
		return -1
	}
	return *c.ValidationScore
}

// Generate renders the concept for variationIndex. Terminal capability
// errors and caller cancellation return immediately. Validation is
// advisory: a failing validator accepts the render, and an exhausted retry
// budget returns the best-scoring attempt.
func (g *Generator) Generate(ctx context.Context, req Request, variationIndex int) (Concept, error) {
	if g.images == nil {
		return Concept{}, vision.Unavailable(capabilityGenerate, errors.New("generation: no image generator configured"))
	}

	st := loopState{maxAttempts: 1}
	if variationIndex == 0 {
		st.maxAttempts += g.policy.MaxRetries
	}
	log := g.logger.With(zap.String("session_id", req.SessionID), zap.Int("variation", variationIndex))

	for st.attempt < st.maxAttempts {
		data := req.Prompt
		data.VariationIndex = variationIndex
		data.Reinforcement = st.reinforcement
		prompt := compile(data, req.Quick)
		reinforced := st.reinforcement != nil

		st.attempt++
		img, err := g.render(ctx, req.Photo, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return Concept{}, ctx.Err()
			}
			g.metrics.Attempt("error")
			if vision.IsTerminal(err) {
				log.Error("image generation unavailable", zap.Int("attempt", st.attempt), zap.Error(err))
				return Concept{}, err
			}
			log.Warn("image generation attempt failed", zap.Int("attempt", st.attempt), zap.Error(err))
			g.publish(req.SessionID, events.KindAttemptFailed, variationIndex, st.attempt, nil, err)
			st.lastErr = err
			continue
		}

		c := Concept{
			Image:          img,
			VariationIndex: variationIndex,
			Attempts:       st.attempt,
			Refined:        reinforced,
			Prompt:         prompt,
		}
		if g.validator == nil || st.attempt > g.policy.ValidationAttempts || len(req.Photo.Data) == 0 {
			g.metrics.Attempt("unvalidated")
			return c, nil
		}

		result, err := g.validate(ctx, req.Photo, img)
		if err != nil {
			if ctx.Err() != nil {
				return Concept{}, ctx.Err()
			}
			// A broken validator never blocks a render.
			log.Warn("structural validation unavailable, accepting render", zap.Int("attempt", st.attempt), zap.Error(err))
			g.metrics.Attempt("unvalidated")
			return c, nil
		}

		s := result.Score
		c.ValidationScore = &s
		g.metrics.ValidationScore(s)
		if result.IsAcceptable {
			g.metrics.Attempt("accepted")
			g.publish(req.SessionID, events.KindConceptValidated, variationIndex, st.attempt, &s, nil)
			log.Info("render accepted", zap.Int("attempt", st.attempt), zap.Float64("score", s), zap.Bool("refined", reinforced))
			return c, nil
		}

		g.metrics.Attempt("rejected")
		log.Info("render below structural threshold", zap.Int("attempt", st.attempt), zap.Float64("score", s), zap.Strings("issues", result.Issues))
		g.publish(req.SessionID, events.KindAttemptFailed, variationIndex, st.attempt, &s, nil)
		st.keep(c)
		st.reinforcement = &prompts.Reinforcement{Score: s, Issues: result.Issues}
	}

	if st.best != nil {
		log.Info("retry budget exhausted, returning best attempt", zap.Int("attempt", st.best.Attempts), zap.Float64("score", score(*st.best)))
		return *st.best, nil
	}
	return Concept{}, st.lastErr
}

func (g *Generator) render(ctx context.Context, photo vision.Photo, prompt string) (vision.GeneratedImage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.policy.AttemptTimeout)
	defer cancel()

	req := vision.ImageRequest{Prompt: prompt}
	if len(photo.Data) > 0 {
		req.Input = &photo
	}
	start := time.Now()
	img, err := g.images.Generate(attemptCtx, req)
	g.metrics.ObserveCall(capabilityGenerate, time.Since(start))
	if err != nil {
		return vision.GeneratedImage{}, vision.Classify(capabilityGenerate, err)
	}
	if len(img.Data) == 0 {
		return vision.GeneratedImage{}, vision.Empty(capabilityGenerate, nil)
	}
	return img, nil
}

func (g *Generator) validate(ctx context.Context, photo vision.Photo, img vision.GeneratedImage) (vision.ValidationResult, error) {
	validateCtx, cancel := context.WithTimeout(ctx, g.policy.ValidationTimeout)
	defer cancel()

	start := time.Now()
	result, err := g.validator.Validate(validateCtx, photo, img)
	g.metrics.ObserveCall("vision.validate", time.Since(start))
	return result, err
}

func (g *Generator) publish(sessionID string, kind events.Kind, variationIndex, attempt int, s *float64, err error) {
	evt := events.Event{
		SessionID:      sessionID,
		Kind:           kind,
		VariationIndex: variationIndex,
		Attempt:        attempt,
		Score:          s,
	}
	if err != nil {
		evt.Error = err.Error()
	}
	g.publisher.Publish(evt)
}

func compile(d prompts.Data, quick bool) string {
	if quick {
		return prompts.CompileQuick(d)
	}
	return prompts.Compile(d)
}
