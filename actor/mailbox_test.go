package actor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMailboxFIFOOrder is invariant 1: envelopes dequeue in enqueue order.
func TestMailboxFIFOOrder(t *testing.T) {
	t.Parallel()

	mb := newMailbox()
	for i := 0; i < 5; i++ {
		require.NoError(t, mb.enqueue(NewEnvelope(i)))
	}

	for i := 0; i < 5; i++ {
		env, ok := mb.dequeue()
		require.True(t, ok)
		require.Equal(t, i, env.Payload())
	}

	_, ok := mb.dequeue()
	require.False(t, ok)
}

// TestMailboxCloseDrainsAndRejects covers the close/dispose contract:
// enqueue after close fails, and close returns everything still queued so
// the caller can route it to the dead-letter queue.
func TestMailboxCloseDrainsAndRejects(t *testing.T) {
	t.Parallel()

	mb := newMailbox()
	require.NoError(t, mb.enqueue(NewEnvelope("a")))
	require.NoError(t, mb.enqueue(NewEnvelope("b")))

	drained := mb.close()
	require.Len(t, drained, 2)

	err := mb.enqueue(NewEnvelope("c"))
	require.Error(t, err)
}
