package gossip

import (
	"testing"

	proto "github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/caucus/sharedmap"
	"go.uber.org/zap"
)

func newState(t *testing.T, layer Layer) *State {
	s, err := NewState("test", layer, zap.NewNop())
	require.NoError(t, err)
	return s
}

func collect(m sharedmap.Map) *[]sharedmap.ValueChanged {
	events := &[]sharedmap.ValueChanged{}
	m.Subscribe(func(ev sharedmap.ValueChanged) {
		*events = append(*events, ev)
	})
	return events
}

func withClock(t *testing.T, ts *int64) {
	old := now
	now = func() int64 { return *ts }
	t.Cleanup(func() { now = old })
}

func TestState(t *testing.T) {
	s := newState(t, MockedLayer())
	events := collect(s)

	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("a", "3"))
	value, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "3", value)
	require.Equal(t, 2, s.Len())

	keys := []string{}
	s.Range(func(key, value string) bool {
		keys = append(keys, key)
		return true
	})
	require.Equal(t, []string{"a", "b"}, keys)

	deleted, err := s.Delete("a")
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = s.Delete("a")
	require.NoError(t, err)
	require.False(t, deleted)
	require.False(t, s.Has("a"))

	require.NoError(t, s.Clear())
	require.Equal(t, 0, s.Len())

	require.Equal(t, []sharedmap.ValueChanged{
		{Key: "b", Local: true, Exists: true},
		{Key: "a", Local: true, Exists: true},
		{Key: "a", HadPrevious: true, Local: true, Exists: true},
		{Key: "a", HadPrevious: true, Local: true},
		{Key: "b", HadPrevious: true, Local: true},
	}, *events)
}

func TestState_Replication(t *testing.T) {
	layer := NewLoopback()
	local := newState(t, layer)
	remote := newState(t, layer)
	events := collect(remote)

	require.NoError(t, local.Set("k", "v1"))
	require.NoError(t, local.Set("k", "v2"))
	_, err := local.Delete("k")
	require.NoError(t, err)
	require.NoError(t, local.Set("other", "v"))
	require.NoError(t, local.Clear())

	require.Equal(t, []sharedmap.ValueChanged{
		{Key: "k", Exists: true},
		{Key: "k", HadPrevious: true, Exists: true},
		{Key: "k", HadPrevious: true},
		{Key: "other", Exists: true},
		{Key: "other", HadPrevious: true},
	}, *events)
	require.Equal(t, 0, remote.Len())
}

func TestState_Merge(t *testing.T) {
	ts := int64(10)
	withClock(t, &ts)

	t.Run("concurrent writes converge", func(t *testing.T) {
		a := newState(t, MockedLayer())
		b := newState(t, MockedLayer())
		require.NoError(t, a.Set("k", "from-a"))
		require.NoError(t, b.Set("k", "from-b"))

		require.NoError(t, a.Merge(b.MarshalBinary(), true))
		require.NoError(t, b.Merge(a.MarshalBinary(), true))
		valueA, _ := a.Get("k")
		valueB, _ := b.Get("k")
		require.Equal(t, "from-b", valueA)
		require.Equal(t, valueA, valueB)
	})
	t.Run("deletion beats a concurrent write", func(t *testing.T) {
		a := newState(t, MockedLayer())
		b := newState(t, MockedLayer())
		ts = 20
		require.NoError(t, a.Set("k", "v"))
		require.NoError(t, b.Merge(a.MarshalBinary(), true))
		ts = 30
		require.NoError(t, a.Set("k", "edited"))
		_, err := b.Delete("k")
		require.NoError(t, err)

		require.NoError(t, a.Merge(b.MarshalBinary(), true))
		require.NoError(t, b.Merge(a.MarshalBinary(), true))
		require.False(t, a.Has("k"))
		require.False(t, b.Has("k"))
	})
	t.Run("stale updates are ignored", func(t *testing.T) {
		a := newState(t, MockedLayer())
		b := newState(t, MockedLayer())
		ts = 40
		require.NoError(t, a.Set("k", "old"))
		stale := a.MarshalBinary()
		ts = 50
		require.NoError(t, a.Set("k", "new"))
		require.NoError(t, b.Merge(a.MarshalBinary(), false))

		events := collect(b)
		require.NoError(t, b.Merge(stale, false))
		require.Empty(t, *events)
		value, _ := b.Get("k")
		require.Equal(t, "new", value)
	})
	t.Run("local writes win over what was seen", func(t *testing.T) {
		a := newState(t, MockedLayer())
		b := newState(t, MockedLayer())
		ts = 100
		require.NoError(t, a.Set("k", "remote"))
		require.NoError(t, b.Merge(a.MarshalBinary(), false))
		ts = 60
		require.NoError(t, b.Set("k", "local"))
		require.NoError(t, a.Merge(b.MarshalBinary(), false))
		value, _ := a.Get("k")
		require.Equal(t, "local", value)
	})
	t.Run("garbage is rejected", func(t *testing.T) {
		a := newState(t, MockedLayer())
		require.Error(t, a.Merge([]byte{0xff, 0xff, 0xff}, false))
	})
}

func TestState_GC(t *testing.T) {
	ts := int64(10)
	withClock(t, &ts)
	s := newState(t, MockedLayer())
	require.NoError(t, s.Set("old", "v"))
	require.NoError(t, s.Set("recent", "v"))
	require.NoError(t, s.Set("alive", "v"))
	ts = 20
	_, err := s.Delete("old")
	require.NoError(t, err)
	ts = 40
	_, err = s.Delete("recent")
	require.NoError(t, err)

	require.NoError(t, s.GC(30))
	dump := &EntryList{}
	require.NoError(t, proto.Unmarshal(s.MarshalBinary(), dump))
	keys := []string{}
	for _, entry := range dump.Entries {
		keys = append(keys, entry.Key)
	}
	require.Equal(t, []string{"alive", "recent"}, keys)
}
