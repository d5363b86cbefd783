package sharedmap

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(m Map) *[]ValueChanged {
	events := &[]ValueChanged{}
	m.Subscribe(func(ev ValueChanged) {
		*events = append(*events, ev)
	})
	return events
}

func TestCluster(t *testing.T) {
	cluster := NewCluster()
	a := cluster.Join("a")
	b := cluster.Join("b")
	eventsA := record(a)
	eventsB := record(b)

	t.Run("set", func(t *testing.T) {
		require.NoError(t, a.Set("k1", "v1"))
		value, ok := b.Get("k1")
		require.True(t, ok)
		require.Equal(t, "v1", value)
		require.Equal(t, []ValueChanged{{Key: "k1", Local: true, Exists: true}}, *eventsA)
		require.Equal(t, []ValueChanged{{Key: "k1", Local: false, Exists: true}}, *eventsB)
	})
	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, b.Set("k1", "v2"))
		last := (*eventsA)[len(*eventsA)-1]
		require.Equal(t, ValueChanged{Key: "k1", HadPrevious: true, Exists: true}, last)
	})
	t.Run("range is ordered", func(t *testing.T) {
		require.NoError(t, a.Set("k0", "v0"))
		keys := []string{}
		a.Range(func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
		require.Equal(t, []string{"k0", "k1"}, keys)
		require.Equal(t, 2, b.Len())
	})
	t.Run("delete", func(t *testing.T) {
		deleted, err := a.Delete("k0")
		require.NoError(t, err)
		require.True(t, deleted)
		require.False(t, b.Has("k0"))
		last := (*eventsB)[len(*eventsB)-1]
		require.Equal(t, ValueChanged{Key: "k0", HadPrevious: true, Exists: false}, last)

		count := len(*eventsB)
		deleted, err = a.Delete("k0")
		require.NoError(t, err)
		require.False(t, deleted)
		require.Equal(t, count, len(*eventsB))
	})
	t.Run("clear", func(t *testing.T) {
		require.NoError(t, b.Clear())
		require.Equal(t, 0, a.Len())
		last := (*eventsA)[len(*eventsA)-1]
		assert.Equal(t, ValueChanged{Key: "k1", HadPrevious: true}, last)
	})
	t.Run("close", func(t *testing.T) {
		require.NoError(t, b.Close())
		require.Equal(t, ErrClosed, b.Set("k", "v"))
		count := len(*eventsB)
		require.NoError(t, a.Set("k", "v"))
		require.Equal(t, count, len(*eventsB))
	})
	t.Run("closed errors keep their kind through wrapping", func(t *testing.T) {
		_, err := b.Delete("k")
		require.Equal(t, ErrClosed, err)
		err = Namespace(b, "room/").Set("k", "v")
		require.Equal(t, ErrClosed, errors.Cause(err))
		require.Equal(t, ErrClosed, errors.Cause(errors.Wrap(b.Clear(), "failed to clear")))
	})
}

func TestTable(t *testing.T) {
	table := NewTable()
	_, had := table.Set("b", "1")
	require.False(t, had)
	old, had := table.Set("b", "2")
	require.True(t, had)
	require.Equal(t, "1", old)
	table.Set("a", "3")
	require.Equal(t, []string{"a", "b"}, table.Keys())
	old, had = table.Delete("a")
	require.True(t, had)
	require.Equal(t, "3", old)
	table.Clear()
	require.Equal(t, 0, table.Len())
}

func TestListeners(t *testing.T) {
	l := Listeners{}
	calls := []int{}
	cancel1 := l.Subscribe(func(ValueChanged) { calls = append(calls, 1) })
	l.Subscribe(func(ValueChanged) { calls = append(calls, 2) })
	l.Emit(ValueChanged{})
	cancel1()
	cancel1()
	l.Emit(ValueChanged{})
	require.Equal(t, []int{1, 2, 2}, calls)
	require.Equal(t, 1, l.Len())
}
