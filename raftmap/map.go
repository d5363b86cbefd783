package raftmap

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	proto "github.com/golang/protobuf/proto"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/pkg/errors"
	"github.com/vx-labs/caucus/sharedmap"
	"go.uber.org/zap"
)

const defaultApplyTimeout = 10 * time.Second

var ErrNoLeader = errors.New("no raft leader elected")

// Peer is a voting member of the raft cluster.
type Peer struct {
	ID      string
	Address string
}

type Config struct {
	ID            string
	BindAddress   string
	AdvertiseAddr string
	DataDir       string
	// Bootstrap starts a new cluster made of this member and Peers, unless
	// the data directory already holds raft state.
	Bootstrap    bool
	Peers        []Peer
	ApplyTimeout time.Duration
}

// Map is a shared map whose mutations are committed through a raft log.
// Mutations are only accepted by the leader: on other members they fail with
// raft.ErrNotLeader. Reads are served from the local replica of the log.
type Map struct {
	id           string
	raft         *raft.Raft
	address      raft.ServerAddress
	mtx          sync.RWMutex
	table        *sharedmap.Table
	listeners    sharedmap.Listeners
	logger       *zap.Logger
	applyTimeout time.Duration
	closers      []io.Closer
	observations chan raft.Observation
	observer     *raft.Observer
}

var _ sharedmap.Map = &Map{}

func raftOutput() io.Writer {
	if os.Getenv("ENABLE_RAFT_LOG") != "true" {
		return ioutil.Discard
	}
	return os.Stderr
}

func raftConfig(id string) *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(id)
	config.LogOutput = raftOutput()
	return config
}

func newMap(id string, address raft.ServerAddress, logger *zap.Logger, applyTimeout time.Duration) *Map {
	if applyTimeout == 0 {
		applyTimeout = defaultApplyTimeout
	}
	return &Map{
		id:           id,
		address:      address,
		table:        sharedmap.NewTable(),
		logger:       logger.With(zap.String("raft_node", id)),
		applyTimeout: applyTimeout,
	}
}

// Open starts a raft member persisting its log in a bolt database under
// config.DataDir.
func Open(config Config, logger *zap.Logger) (*Map, error) {
	if err := os.MkdirAll(config.DataDir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create raft data directory")
	}
	var advertise net.Addr
	if config.AdvertiseAddr != "" {
		addr, err := net.ResolveTCPAddr("tcp", config.AdvertiseAddr)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve raft advertised address")
		}
		advertise = addr
	}
	transport, err := raft.NewTCPTransport(config.BindAddress, advertise, 3, 10*time.Second, raftOutput())
	if err != nil {
		return nil, errors.Wrap(err, "failed to start raft transport")
	}
	snapshots, err := raft.NewFileSnapshotStore(config.DataDir, 2, raftOutput())
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("failed to create snapshot store: %s", err)
	}
	boltDB, err := raftboltdb.NewBoltStore(filepath.Join(config.DataDir, "raft.db"))
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("failed to create boltdb store: %s", err)
	}
	cacheStore, err := raft.NewLogCache(512, boltDB)
	if err != nil {
		boltDB.Close()
		transport.Close()
		return nil, err
	}
	m := newMap(config.ID, transport.LocalAddr(), logger, config.ApplyTimeout)
	m.closers = []io.Closer{boltDB, transport}

	raftConf := raftConfig(config.ID)
	if config.Bootstrap {
		existing, err := raft.HasExistingState(cacheStore, boltDB, snapshots)
		if err != nil {
			m.close()
			return nil, err
		}
		if !existing {
			servers := []raft.Server{{ID: raft.ServerID(config.ID), Address: transport.LocalAddr()}}
			for _, peer := range config.Peers {
				servers = append(servers, raft.Server{ID: raft.ServerID(peer.ID), Address: raft.ServerAddress(peer.Address)})
			}
			err = raft.BootstrapCluster(raftConf, cacheStore, boltDB, snapshots, transport, raft.Configuration{Servers: servers})
			if err != nil {
				m.close()
				return nil, errors.Wrap(err, "failed to bootstrap raft cluster")
			}
		}
	}
	if err := m.start(raftConf, cacheStore, boltDB, snapshots, transport); err != nil {
		m.close()
		return nil, err
	}
	return m, nil
}

func (m *Map) start(conf *raft.Config, logs raft.LogStore, stable raft.StableStore, snaps raft.SnapshotStore, transport raft.Transport) error {
	ra, err := raft.NewRaft(conf, &fsm{m: m}, logs, stable, snaps, transport)
	if err != nil {
		return fmt.Errorf("new raft: %s", err)
	}
	m.raft = ra
	m.observations = make(chan raft.Observation)
	m.observer = raft.NewObserver(m.observations, true, func(o *raft.Observation) bool {
		_, ok := o.Data.(raft.LeaderObservation)
		return ok
	})
	m.raft.RegisterObserver(m.observer)
	go m.leaderRoutine()
	return nil
}

func (m *Map) leaderRoutine() {
	wasLeader := false
	for ob := range m.observations {
		leader := ob.Raft.Leader()
		if leader == m.address {
			wasLeader = true
			m.logger.Info("raft cluster leadership acquired")
		} else if leader != "" && wasLeader {
			wasLeader = false
			m.logger.Info("raft cluster leadership lost")
		}
	}
}

func (m *Map) ID() string {
	return m.id
}

func (m *Map) IsLeader() bool {
	return m.raft != nil && m.raft.State() == raft.Leader
}

// Leader returns the address of the current leader, or an empty string when
// there is none.
func (m *Map) Leader() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// Address is the address this member is reached at.
func (m *Map) Address() string {
	return string(m.address)
}

// WaitForLeader blocks until the cluster elected a leader, and returns its
// address.
func (m *Map) WaitForLeader(ctx context.Context) (string, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if leader := m.Leader(); leader != "" {
			return leader, nil
		}
		select {
		case <-ctx.Done():
			return "", errors.Wrap(ErrNoLeader, ctx.Err().Error())
		case <-ticker.C:
		}
	}
}

func (m *Map) Health() string {
	if m.raft == nil {
		return "critical"
	}
	if m.raft.Leader() == "" {
		return "warning"
	}
	return "ok"
}

// AddVoter adopts a new member. Only the leader can do so.
func (m *Map) AddVoter(id, address string) error {
	err := m.raft.AddVoter(raft.ServerID(id), raft.ServerAddress(address), 0, 0).Error()
	if err != nil {
		return errors.Wrapf(err, "failed to adopt raft node %s", id)
	}
	m.logger.Info("adopted new raft node", zap.String("new_node", id))
	return nil
}

func (m *Map) apply(cmd *Command) (interface{}, error) {
	cmd.Origin = m.id
	payload, err := proto.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	promise := m.raft.Apply(payload, m.applyTimeout)
	if err := promise.Error(); err != nil {
		return nil, err
	}
	resp := promise.Response()
	if err, ok := resp.(error); ok {
		return nil, err
	}
	return resp, nil
}

func (m *Map) Get(key string) (string, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.table.Get(key)
}

func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Map) Set(key, value string) error {
	_, err := m.apply(&Command{Op: OpSet, Key: key, Value: value})
	return err
}

func (m *Map) Delete(key string) (bool, error) {
	resp, err := m.apply(&Command{Op: OpDelete, Key: key})
	if err != nil {
		return false, err
	}
	deleted, _ := resp.(bool)
	return deleted, nil
}

func (m *Map) Clear() error {
	_, err := m.apply(&Command{Op: OpClear})
	return err
}

// Range walks a snapshot of the local replica in key order.
func (m *Map) Range(f func(key, value string) bool) {
	snapshot := sharedmap.NewTable()
	m.mtx.RLock()
	m.table.Range(func(key, value string) bool {
		snapshot.Set(key, value)
		return true
	})
	m.mtx.RUnlock()
	snapshot.Range(f)
}

func (m *Map) Len() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.table.Len()
}

func (m *Map) Subscribe(f func(sharedmap.ValueChanged)) func() {
	return m.listeners.Subscribe(f)
}

func (m *Map) close() {
	for _, closer := range m.closers {
		closer.Close()
	}
}

// Shutdown stops the raft member and releases its stores.
func (m *Map) Shutdown() error {
	if m.observer != nil {
		m.raft.DeregisterObserver(m.observer)
		close(m.observations)
		m.observer = nil
	}
	err := m.raft.Shutdown().Error()
	m.close()
	return err
}
