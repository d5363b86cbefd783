package raftmap

import (
	"bytes"
	"context"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/caucus/sharedmap"
	"go.uber.org/zap"
)

type eventLog struct {
	mtx    sync.Mutex
	events []sharedmap.ValueChanged
}

func (l *eventLog) record(ev sharedmap.ValueChanged) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.events = append(l.events, ev)
}
func (l *eventLog) all() []sharedmap.ValueChanged {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return append([]sharedmap.ValueChanged{}, l.events...)
}

func TestMap(t *testing.T) {
	maps, err := NewInmemCluster(zap.NewNop(), "a", "b", "c")
	require.NoError(t, err)
	defer shutdownAll(maps)
	leader, err := WaitLeader(maps, 5*time.Second)
	require.NoError(t, err)
	var follower *Map
	for _, m := range maps {
		if m != leader {
			follower = m
			break
		}
	}
	leaderEvents := &eventLog{}
	followerEvents := &eventLog{}
	leader.Subscribe(leaderEvents.record)
	follower.Subscribe(followerEvents.record)

	t.Run("writes replicate", func(t *testing.T) {
		require.NoError(t, leader.Set("k", "v"))
		value, ok := leader.Get("k")
		require.True(t, ok)
		require.Equal(t, "v", value)
		require.Eventually(t, func() bool {
			return follower.Has("k")
		}, 5*time.Second, 10*time.Millisecond)
	})
	t.Run("delete reports presence", func(t *testing.T) {
		deleted, err := leader.Delete("k")
		require.NoError(t, err)
		require.True(t, deleted)
		deleted, err = leader.Delete("k")
		require.NoError(t, err)
		require.False(t, deleted)
	})
	t.Run("clear", func(t *testing.T) {
		require.NoError(t, leader.Set("a", "1"))
		require.NoError(t, leader.Set("b", "2"))
		require.Equal(t, 2, leader.Len())
		require.NoError(t, leader.Clear())
		require.Equal(t, 0, leader.Len())
	})
	t.Run("every member knows the leader", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		leaderAddress, err := follower.WaitForLeader(ctx)
		require.NoError(t, err)
		require.Equal(t, leader.Address(), leaderAddress)
		require.Equal(t, leader.Address(), leader.Leader())
	})
	t.Run("followers reject writes", func(t *testing.T) {
		err := follower.Set("x", "y")
		require.Equal(t, raft.ErrNotLeader, errors.Cause(err))
	})
	t.Run("events are flagged local on the issuing member only", func(t *testing.T) {
		expected := []sharedmap.ValueChanged{
			{Key: "k", Exists: true},
			{Key: "k", HadPrevious: true},
			{Key: "a", Exists: true},
			{Key: "b", Exists: true},
			{Key: "a", HadPrevious: true},
			{Key: "b", HadPrevious: true},
		}
		require.Eventually(t, func() bool {
			return len(followerEvents.all()) == len(expected)
		}, 5*time.Second, 10*time.Millisecond)
		require.Equal(t, expected, followerEvents.all())
		local := leaderEvents.all()
		require.Equal(t, len(expected), len(local))
		for _, ev := range local {
			require.True(t, ev.Local)
		}
	})
}

type sink struct {
	bytes.Buffer
}

func (s *sink) ID() string    { return "test" }
func (s *sink) Cancel() error { return nil }
func (s *sink) Close() error  { return nil }

func TestFSM_Snapshot(t *testing.T) {
	source := newMap("a", "a", zap.NewNop(), 0)
	source.table.Set("kept", "1")
	source.table.Set("changed", "old")
	snap, err := (&fsm{m: source}).Snapshot()
	require.NoError(t, err)
	out := &sink{}
	require.NoError(t, snap.Persist(out))

	target := newMap("b", "b", zap.NewNop(), 0)
	target.table.Set("kept", "1")
	target.table.Set("changed", "new")
	target.table.Set("gone", "x")
	events := &eventLog{}
	target.Subscribe(events.record)
	require.NoError(t, (&fsm{m: target}).Restore(ioutil.NopCloser(bytes.NewReader(out.Bytes()))))

	require.Equal(t, []sharedmap.ValueChanged{
		{Key: "gone", HadPrevious: true},
		{Key: "changed", HadPrevious: true, Exists: true},
	}, events.all())
	value, _ := target.Get("changed")
	require.Equal(t, "old", value)
	require.Equal(t, 2, target.Len())
}
