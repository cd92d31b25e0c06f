package events

import (
	"sync"
	"time"
)

// Kind names a progress step of a concept batch.
type Kind string

const (
	KindBatchStarted     Kind = "batch_started"
	KindConceptStarted   Kind = "concept_started"
	KindAttemptFailed    Kind = "attempt_failed"
	KindConceptValidated Kind = "concept_validated"
	KindConceptCompleted Kind = "concept_completed"
	KindConceptFailed    Kind = "concept_failed"
	KindBatchCompleted   Kind = "batch_completed"
)

// Event describes one progress update for a session's concept batch.
type Event struct {
	SessionID      string    `json:"session_id"`
	Kind           Kind      `json:"kind"`
	VariationIndex int       `json:"variation_index"`
	Attempt        int       `json:"attempt,omitempty"`
	Score          *float64  `json:"score,omitempty"`
	Error          string    `json:"error,omitempty"`
	Concepts       int       `json:"concepts,omitempty"`
	At             time.Time `json:"at"`
}

// Broker manages SSE subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]string
}

// NewBroker constructs a broker instance.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan Event]string),
	}
}

// Subscribe returns a channel that receives events for sessionID, or for
// every session when sessionID is empty.
func (b *Broker) Subscribe(sessionID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = sessionID
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel from the broker.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish fan-outs the event to matching subscribers.
func (b *Broker) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	for ch, session := range b.subscribers {
		if session != "" && session != evt.SessionID {
			continue
		}
		select {
		case ch <- evt:
		default:
			// drop if subscriber is slow
		}
	}
	b.mu.RUnlock()
}
