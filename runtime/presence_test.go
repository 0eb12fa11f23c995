package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_Transitions(t *testing.T) {
	assert := require.New(t)
	presence := NewPresence()

	// Only the first online and last offline are transitions
	assert.True(presence.MarkOnline("alice"))
	assert.False(presence.MarkOnline("alice"))
	assert.True(presence.IsOnline("alice"))

	assert.True(presence.MarkOffline("alice"))
	assert.False(presence.MarkOffline("alice"))
	assert.False(presence.IsOnline("alice"))
}

func TestPresence_SnapshotSorted(t *testing.T) {
	assert := require.New(t)
	presence := NewPresence()
	presence.MarkOnline("charlie")
	presence.MarkOnline("alice")
	presence.MarkOnline("bob")

	assert.Equal([]string{"alice", "bob", "charlie"}, presence.Snapshot())
}
