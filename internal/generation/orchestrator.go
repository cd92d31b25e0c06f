package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"renovateAi/internal/events"
	"renovateAi/internal/metrics"
	"renovateAi/internal/vision"
)

// MaxConcepts is the largest batch GenerateConcepts will run.
const MaxConcepts = 4

// ErrNoConcepts is returned when every concept of a batch failed. It is
// joined with the per-concept errors.
var ErrNoConcepts = errors.New("generation: no concepts produced")

// Batch is the outcome of GenerateConcepts.
type Batch struct {
	// Concepts holds the successful renders ordered by variation index.
	Concepts []Concept
	// PrimaryErr is set when the primary concept (variation 0) hit a terminal
	// error while other variations still succeeded.
	PrimaryErr error
}

// ConceptRunner renders one concept. *Generator satisfies it.
type ConceptRunner interface {
	Generate(ctx context.Context, req Request, variationIndex int) (Concept, error)
}

// Orchestrator fans a Request out across variation seeds.
type Orchestrator struct {
	runner    ConceptRunner
	logger    *zap.Logger
	publisher Publisher
	metrics   *metrics.Metrics
}

// NewOrchestrator wires a batch runner. Logger, publisher and metrics may be
// nil.
func NewOrchestrator(runner ConceptRunner, logger *zap.Logger, publisher Publisher, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Orchestrator{runner: runner, logger: logger, publisher: publisher, metrics: m}
}

// ClampCount limits a requested batch size to 1..MaxConcepts.
func ClampCount(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxConcepts:
		return MaxConcepts
	default:
		return n
	}
}

// GenerateConcepts runs count concepts concurrently, one per variation index.
// Failed concepts are logged and left out; a terminal failure of the primary
// concept is reported in Batch.PrimaryErr. Zero successes yields
// ErrNoConcepts joined with every concept's error. Cancelling ctx abandons
// the batch and returns ctx.Err().
func (o *Orchestrator) GenerateConcepts(ctx context.Context, req Request, count int) (Batch, error) {
	count = ClampCount(count)
	start := time.Now()
	log := o.logger.With(zap.String("session_id", req.SessionID), zap.Int("count", count))
	o.publisher.Publish(events.Event{SessionID: req.SessionID, Kind: events.KindBatchStarted})

	results := make([]*Concept, count)
	var (
		mu         sync.Mutex
		errs       []error
		primaryErr error
	)

	var g errgroup.Group
	for idx := 0; idx < count; idx++ {
		g.Go(func() error {
			o.publisher.Publish(events.Event{SessionID: req.SessionID, Kind: events.KindConceptStarted, VariationIndex: idx})
			c, err := o.runner.Generate(ctx, req, idx)
			if err != nil {
				o.metrics.Concept("failed")
				o.publisher.Publish(events.Event{SessionID: req.SessionID, Kind: events.KindConceptFailed, VariationIndex: idx, Error: err.Error()})
				primary := idx == 0 && vision.IsTerminal(err)
				switch {
				case ctx.Err() != nil:
				case primary:
					log.Error("primary concept failed", zap.Error(err))
				default:
					log.Warn("concept failed", zap.Int("variation", idx), zap.Error(err))
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("concept %d: %w", idx, err))
				if primary {
					primaryErr = err
				}
				mu.Unlock()
				return nil
			}
			c.VariationIndex = idx
			o.metrics.Concept("completed")
			o.publisher.Publish(events.Event{
				SessionID:      req.SessionID,
				Kind:           events.KindConceptCompleted,
				VariationIndex: idx,
				Attempt:        c.Attempts,
				Score:          c.ValidationScore,
			})
			results[idx] = &c
			return nil
		})
	}
	_ = g.Wait()
	o.metrics.Batch(time.Since(start))

	if err := ctx.Err(); err != nil {
		log.Info("concept batch cancelled")
		return Batch{}, err
	}

	concepts := make([]Concept, 0, count)
	for _, c := range results {
		if c != nil {
			concepts = append(concepts, *c)
		}
	}
	done := events.Event{SessionID: req.SessionID, Kind: events.KindBatchCompleted, Concepts: len(concepts)}
	if primaryErr != nil {
		done.Error = primaryErr.Error()
	}
	o.publisher.Publish(done)
	log.Info("concept batch finished", zap.Int("succeeded", len(concepts)), zap.Int("failed", len(errs)), zap.Duration("elapsed", time.Since(start)))

	if len(concepts) == 0 {
		return Batch{}, errors.Join(append([]error{ErrNoConcepts}, errs...)...)
	}
	return Batch{Concepts: concepts, PrimaryErr: primaryErr}, nil
}
