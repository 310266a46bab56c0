package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomDefaults(t *testing.T) {
	r := NewRoom("alice", "main")
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "alice", r.Host)
	assert.Equal(t, []string{"alice"}, r.Members)
	assert.Equal(t, DefaultCapacity, r.Capacity)
	assert.Equal(t, 7, r.Remaining())
	assert.False(t, r.Full())
}

func TestJoinRespectsCapacity(t *testing.T) {
	r := NewRoom("alice", "")
	require.NoError(t, r.SetCapacity(2))
	require.NoError(t, r.Join("bob"))
	assert.True(t, r.Full())
	assert.ErrorIs(t, r.Join("carol"), ErrRoomFull)
	assert.Len(t, r.Members, 2)
}

func TestJoinRejectsDuplicate(t *testing.T) {
	r := NewRoom("alice", "")
	assert.ErrorIs(t, r.Join("alice"), ErrAlreadyMember)
}

func TestSetCapacityBounds(t *testing.T) {
	r := NewRoom("alice", "")
	assert.ErrorIs(t, r.SetCapacity(1), ErrCapacityBounds)
	assert.ErrorIs(t, r.SetCapacity(9), ErrCapacityBounds)
	require.NoError(t, r.Join("bob"))
	require.NoError(t, r.Join("carol"))
	assert.ErrorIs(t, r.SetCapacity(2), ErrCapacityTooLow)
	require.NoError(t, r.SetCapacity(3))
	assert.Equal(t, 3, r.Capacity)
}

func TestSetHostReorders(t *testing.T) {
	r := NewRoom("alice", "")
	require.NoError(t, r.Join("bob"))
	require.NoError(t, r.Join("carol"))
	require.NoError(t, r.Join("dave"))

	require.NoError(t, r.SetHost("carol"))
	assert.Equal(t, "carol", r.Host)
	assert.Equal(t, []string{"carol", "alice", "bob", "dave"}, r.Members)

	assert.ErrorIs(t, r.SetHost("mallory"), ErrNotMember)
}

func TestRemoveMember(t *testing.T) {
	r := NewRoom("alice", "")
	require.NoError(t, r.Join("bob"))
	assert.ErrorIs(t, r.RemoveMember("alice"), ErrCannotKickHost)
	assert.ErrorIs(t, r.RemoveMember("ghost"), ErrNotMember)
	require.NoError(t, r.RemoveMember("bob"))
	assert.Equal(t, []string{"alice"}, r.Members)
}
