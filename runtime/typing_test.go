package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTypingStart_RefreshStaysSilent(t *testing.T) {
	assert := require.New(t)
	table := NewTypingTable()
	deadline := time.Now().Add(3 * time.Second)

	// Given alice starts typing
	assert.True(table.Start("room-1", "alice", "Alice", deadline))

	// When she keeps typing before the entry expires
	started := table.Start("room-1", "alice", "Alice", deadline.Add(time.Second))

	// Then the second start is a refresh, not a new transition
	assert.False(started)
	assert.Len(table.ActiveIn("room-1"), 1)
}

func TestTypingStop_OnlyOnce(t *testing.T) {
	assert := require.New(t)
	table := NewTypingTable()
	table.Start("room-1", "alice", "Alice", time.Now().Add(3*time.Second))

	stopped, displayName := table.Stop("room-1", "alice")
	assert.True(stopped)
	assert.Equal("Alice", displayName)

	stopped, _ = table.Stop("room-1", "alice")
	assert.False(stopped)
}

func TestTypingExpire_ReturnsOnlyPastDeadline(t *testing.T) {
	assert := require.New(t)
	table := NewTypingTable()
	now := time.Now()
	table.Start("room-1", "alice", "Alice", now.Add(1*time.Second))
	table.Start("room-1", "bob", "Bob", now.Add(10*time.Second))

	expired := table.Expire(now.Add(2 * time.Second))

	assert.Len(expired, 1)
	assert.Equal("alice", expired[0].UserID)
	assert.Len(table.ActiveIn("room-1"), 1)
}

func TestTypingDropUser_AllConversations(t *testing.T) {
	assert := require.New(t)
	table := NewTypingTable()
	deadline := time.Now().Add(3 * time.Second)
	table.Start("room-1", "alice", "Alice", deadline)
	table.Start("room-2", "alice", "Alice", deadline)
	table.Start("room-1", "bob", "Bob", deadline)

	dropped := table.DropUser("alice")

	assert.Len(dropped, 2)
	assert.Len(table.ActiveIn("room-1"), 1)
	assert.Empty(table.ActiveIn("room-2"))
}
