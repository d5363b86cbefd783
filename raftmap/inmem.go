package raftmap

import (
	"time"

	"github.com/hashicorp/raft"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewInmemCluster starts one raft member per id, connected through in-memory
// transports and bootstrapped together. Nothing is persisted.
func NewInmemCluster(logger *zap.Logger, ids ...string) ([]*Map, error) {
	transports := make([]*raft.InmemTransport, len(ids))
	servers := make([]raft.Server, len(ids))
	for idx, id := range ids {
		addr, transport := raft.NewInmemTransport(raft.ServerAddress(id))
		transports[idx] = transport
		servers[idx] = raft.Server{ID: raft.ServerID(id), Address: addr}
	}
	for _, a := range transports {
		for _, b := range transports {
			if a != b {
				a.Connect(b.LocalAddr(), b)
			}
		}
	}
	maps := make([]*Map, 0, len(ids))
	for idx, id := range ids {
		conf := raftConfig(id)
		conf.HeartbeatTimeout = 50 * time.Millisecond
		conf.ElectionTimeout = 50 * time.Millisecond
		conf.LeaderLeaseTimeout = 50 * time.Millisecond
		conf.CommitTimeout = 5 * time.Millisecond

		store := raft.NewInmemStore()
		snapshots := raft.NewInmemSnapshotStore()
		err := raft.BootstrapCluster(conf, store, store, snapshots, transports[idx], raft.Configuration{Servers: servers})
		if err != nil {
			shutdownAll(maps)
			return nil, errors.Wrap(err, "failed to bootstrap raft cluster")
		}
		m := newMap(id, transports[idx].LocalAddr(), logger, time.Second)
		if err := m.start(conf, store, store, snapshots, transports[idx]); err != nil {
			shutdownAll(maps)
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, nil
}

func shutdownAll(maps []*Map) {
	for _, m := range maps {
		m.Shutdown()
	}
}

// WaitLeader blocks until one of maps leads the cluster, or timeout expires.
func WaitLeader(maps []*Map, timeout time.Duration) (*Map, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, m := range maps {
			if m.IsLeader() {
				return m, nil
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil, ErrNoLeader
}
