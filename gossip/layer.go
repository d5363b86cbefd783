package gossip

import (
	"io/ioutil"
	"os"
	"sync"
	"time"

	proto "github.com/golang/protobuf/proto"
	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"
)

// Config describes how a member joins the gossip mesh.
type Config struct {
	ID            string
	BindAddress   string
	BindPort      int
	AdvertiseAddr string
	AdvertisePort int
}

// MemberlistLayer carries the deltas of every hosted state over memberlist
// broadcasts, and their full states over memberlist push/pull syncs.
type MemberlistLayer struct {
	id         string
	mlist      *memberlist.Memberlist
	logger     *zap.Logger
	mtx        sync.RWMutex
	states     map[string]GossipState
	bcastQueue *memberlist.TransmitLimitedQueue
}

var _ Layer = &MemberlistLayer{}

func (m *MemberlistLayer) AddState(key string, state GossipState) (Channel, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	old, ok := m.states[key]
	m.states[key] = state
	if ok {
		err := state.Merge(old.MarshalBinary(), true)
		if err != nil {
			return nil, err
		}
	}
	return &channel{
		bcast: m.bcastQueue,
		key:   key,
	}, nil
}

func (m *MemberlistLayer) state(key string) (GossipState, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	s, ok := m.states[key]
	return s, ok
}

func (m *MemberlistLayer) NotifyMsg(b []byte) {
	var p Part
	if err := proto.Unmarshal(b, &p); err != nil {
		m.logger.Error("failed to decode remote state", zap.Error(err))
		return
	}
	s, ok := m.state(p.Key)
	if !ok {
		return
	}
	if err := s.Merge(p.Data, false); err != nil {
		m.logger.Error("failed to merge remote state", zap.Error(err))
		return
	}
}
func (m *MemberlistLayer) Health() string {
	if m.mlist.NumMembers() == 1 {
		return "warning"
	}
	return "ok"
}
func (m *MemberlistLayer) GetBroadcasts(overhead, limit int) [][]byte {
	return m.bcastQueue.GetBroadcasts(overhead, limit)
}
func (m *MemberlistLayer) NodeMeta(limit int) []byte {
	return nil
}
func (m *MemberlistLayer) LocalState(join bool) []byte {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	dump := &FullState{
		Parts: make([]*Part, 0, len(m.states)),
	}
	for key, state := range m.states {
		dump.Parts = append(dump.Parts, &Part{Key: key, Data: state.MarshalBinary()})
	}
	payload, err := proto.Marshal(dump)
	if err != nil {
		m.logger.Error("failed to marshal full state", zap.Error(err))
		return nil
	}
	return payload
}
func (m *MemberlistLayer) MergeRemoteState(buf []byte, join bool) {
	var fs FullState
	if err := proto.Unmarshal(buf, &fs); err != nil {
		m.logger.Error("failed to decode remote state", zap.Error(err))
		return
	}
	for _, p := range fs.Parts {
		s, ok := m.state(p.Key)
		if !ok {
			continue
		}
		if err := s.Merge(p.Data, true); err != nil {
			m.logger.Error("failed to merge remote state", zap.Error(err))
			return
		}
	}
}

// Join contacts the given hosts, skipping the ones already members.
func (m *MemberlistLayer) Join(newHosts []string) error {
	if len(newHosts) == 0 {
		return nil
	}
	hosts := []string{}
	curHosts := m.mlist.Members()
	for idx := range newHosts {
		host := newHosts[idx]
		found := false
		for idx := range curHosts {
			if curHosts[idx].Address() == host {
				found = true
				break
			}
		}
		if !found {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		return nil
	}
	if m.mlist.NumMembers() == 1 {
		m.logger.Debug("joining cluster", zap.Strings("nodes", hosts), zap.Strings("provided_nodes", newHosts))
	}
	count, err := m.mlist.Join(hosts)
	if err != nil {
		if count == 0 {
			if m.mlist.NumMembers() == 1 {
				m.logger.Warn("failed to join cluster", zap.Error(err))
				return err
			}
		}
		m.logger.Warn("failed to join some member of cluster", zap.Error(err))
	}
	return nil
}

// IsNodeKnown reports whether a member named id is part of the mesh.
func (m *MemberlistLayer) IsNodeKnown(id string) bool {
	for _, member := range m.mlist.Members() {
		if member.Name == id {
			return true
		}
	}
	return false
}

func (m *MemberlistLayer) Members() []*memberlist.Node {
	return m.mlist.Members()
}

func (m *MemberlistLayer) Leave() {
	m.mlist.Leave(5 * time.Second)
	m.mlist.Shutdown()
}

func (m *MemberlistLayer) numMembers() int {
	if m.mlist == nil {
		return 1
	}
	return m.mlist.NumMembers()
}

func NewMemberlistLayer(logger *zap.Logger, userConfig Config) (*MemberlistLayer, error) {
	self := &MemberlistLayer{
		id:     userConfig.ID,
		states: map[string]GossipState{},
		logger: logger,
	}

	self.bcastQueue = &memberlist.TransmitLimitedQueue{
		NumNodes:       self.numMembers,
		RetransmitMult: 3,
	}

	config := memberlist.DefaultLANConfig()
	if userConfig.BindAddress != "" {
		config.BindAddr = userConfig.BindAddress
	}
	config.BindPort = userConfig.BindPort
	config.AdvertiseAddr = userConfig.AdvertiseAddr
	config.AdvertisePort = userConfig.AdvertisePort
	config.Name = userConfig.ID
	config.Delegate = self
	if os.Getenv("ENABLE_MEMBERLIST_LOG") != "true" {
		config.LogOutput = ioutil.Discard
	}
	list, err := memberlist.Create(config)
	if err != nil {
		return nil, err
	}
	self.mlist = list
	logger.Debug("created gossip layer", zap.String("node_id", userConfig.ID))
	return self, nil
}
