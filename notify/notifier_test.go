package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	added   = NewInterest("added")
	removed = NewInterest("removed")
)

func TestInterest(t *testing.T) {
	require.True(t, NewInterest("a").Equals(NewInterest("a")))
	require.False(t, NewInterest("a").Equals(NewInterest("b")))
	require.Equal(t, NewInterest("a"), NewInterest("a"))
}

func TestNotifier(t *testing.T) {
	t.Run("dispatch in registration order", func(t *testing.T) {
		n := NewNotifier()
		calls := []string{}
		for _, name := range []string{"first", "second", "third"} {
			name := name
			n.AddObserver(added, ObserverFor(func(_ Interest, notification Notification[string]) {
				calls = append(calls, name+":"+notification.Payload())
			}))
		}
		n.NotifyObservers(added, NewNotification(added, "k"))
		require.Equal(t, []string{"first:k", "second:k", "third:k"}, calls)
	})
	t.Run("only matching interests", func(t *testing.T) {
		n := &Notifier{}
		count := 0
		n.AddObserver(removed, ObserverFor(func(Interest, Notification[string]) {
			count++
		}))
		n.NotifyObservers(added, NewNotification(added, "k"))
		assert.Equal(t, 0, count)
		n.NotifyObservers(removed, NewNotification(removed, "k"))
		assert.Equal(t, 1, count)
	})
	t.Run("notifications before registration are lost", func(t *testing.T) {
		n := NewNotifier()
		n.NotifyObservers(added, NewNotification(added, "early"))
		got := []string{}
		n.AddObserver(added, ObserverFor(func(_ Interest, notification Notification[string]) {
			got = append(got, notification.Payload())
		}))
		n.NotifyObservers(added, NewNotification(added, "late"))
		require.Equal(t, []string{"late"}, got)
	})
	t.Run("cancel", func(t *testing.T) {
		n := NewNotifier()
		count := 0
		cancel := n.AddObserver(added, func(Interest, interface{}) { count++ })
		require.Equal(t, 1, n.Len())
		cancel()
		cancel()
		require.Equal(t, 0, n.Len())
		n.NotifyObservers(added, NewNotification(added, "k"))
		require.Equal(t, 0, count)
	})
	t.Run("registration during dispatch is deferred", func(t *testing.T) {
		n := NewNotifier()
		count := 0
		n.AddObserver(added, func(Interest, interface{}) {
			n.AddObserver(added, func(Interest, interface{}) { count++ })
		})
		n.NotifyObservers(added, NewNotification(added, "k"))
		require.Equal(t, 0, count)
		n.NotifyObservers(added, NewNotification(added, "k"))
		require.Equal(t, 1, count)
	})
	t.Run("payload type mismatch panics", func(t *testing.T) {
		n := NewNotifier()
		n.AddObserver(added, ObserverFor(func(Interest, Notification[string]) {}))
		require.Panics(t, func() {
			n.NotifyObservers(added, NewNotification(added, 42))
		})
	})
}

func BenchmarkNotifier(b *testing.B) {
	n := NewNotifier()
	n.AddObserver(added, ObserverFor(func(Interest, Notification[string]) {}))
	notification := NewNotification(added, "k")
	for i := 0; i < b.N; i++ {
		n.NotifyObservers(added, notification)
	}
}
