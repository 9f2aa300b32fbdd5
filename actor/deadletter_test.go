package actor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDeadLetterQueueEviction is scenario S8: a queue bounded at 3 holds
// msg1..msg4, leaving length 3 with msg1 evicted and one eviction recorded
// via Total() growing past the retained length.
func TestDeadLetterQueueEviction(t *testing.T) {
	t.Parallel()

	q := NewDeadLetterQueue(3)
	for i := 1; i <= 4; i++ {
		q.add(DeadLetterEntry{Envelope: NewEnvelope(i), TargetID: "x"})
	}

	entries := q.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, 2, entries[0].Envelope.Payload())
	require.Equal(t, 4, q.Total())
}

// TestDeadLetterQueueNeverExceedsCapacity is invariant 7, checked over a
// larger run than the literal scenario.
func TestDeadLetterQueueNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	q := NewDeadLetterQueue(5)
	for i := 0; i < 100; i++ {
		q.add(DeadLetterEntry{Envelope: NewEnvelope(i), TargetID: "x"})
		require.LessOrEqual(t, len(q.Entries()), 5)
	}
	require.Equal(t, 100, q.Total())
}
