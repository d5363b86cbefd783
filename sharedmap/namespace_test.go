package sharedmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamespace(t *testing.T) {
	replica := NewCluster().Join("a")
	participants := Namespace(replica, "participants/")
	messages := Namespace(replica, "messages/")
	events := []ValueChanged{}
	participants.Subscribe(func(ev ValueChanged) {
		events = append(events, ev)
	})

	require.NoError(t, participants.Set("jon", "1"))
	require.NoError(t, messages.Set("m1", "hello"))
	require.True(t, participants.Has("jon"))
	require.False(t, participants.Has("m1"))
	require.Equal(t, 1, participants.Len())
	require.Equal(t, 2, replica.Len())
	value, ok := replica.Get("participants/jon")
	require.True(t, ok)
	require.Equal(t, "1", value)

	require.NoError(t, participants.Clear())
	require.Equal(t, 0, participants.Len())
	require.Equal(t, 1, messages.Len())
	require.Equal(t, []ValueChanged{
		{Key: "jon", Local: true, Exists: true},
		{Key: "jon", HadPrevious: true, Local: true},
	}, events)
}
