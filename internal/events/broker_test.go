package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFiltersBySession(t *testing.T) {
	b := NewBroker()
	mine := b.Subscribe("s1")
	all := b.Subscribe("")
	defer b.Unsubscribe(mine)
	defer b.Unsubscribe(all)

	b.Publish(Event{SessionID: "s2", Kind: KindBatchStarted})
	b.Publish(Event{SessionID: "s1", Kind: KindConceptCompleted, VariationIndex: 2})

	got := <-mine
	assert.Equal(t, KindConceptCompleted, got.Kind)
	assert.Equal(t, 2, got.VariationIndex)
	assert.False(t, got.At.IsZero())
	assert.Len(t, mine, 0)

	require.Len(t, all, 2)
	assert.Equal(t, "s2", (<-all).SessionID)
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("")
	for i := 0; i < 100; i++ {
		b.Publish(Event{SessionID: "s", VariationIndex: i})
	}
	assert.Equal(t, cap(ch), len(ch))

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	_, open := <-ch
	for open {
		_, open = <-ch
	}
}
