package gossip

import (
	"errors"
	"sync"
)

var (
	ErrStateKeyAlreadySet = errors.New("specified key is already taken")
)

type mockedChannel struct{}

func (m *mockedChannel) Broadcast([]byte) {}

type mockedLayer struct{}

func (m *mockedLayer) AddState(key string, state GossipState) (Channel, error) {
	return &mockedChannel{}, nil
}

// MockedLayer returns a layer whose channels drop every broadcast.
func MockedLayer() Layer {
	return &mockedLayer{}
}

// Loopback is an in-process layer: a broadcast on one state is merged
// synchronously into every other state registered under the same key. A
// state added under a known key first receives the full state of its peers.
type Loopback struct {
	mtx    sync.Mutex
	states map[string][]GossipState
}

func NewLoopback() *Loopback {
	return &Loopback{states: map[string][]GossipState{}}
}

func (l *Loopback) AddState(key string, state GossipState) (Channel, error) {
	l.mtx.Lock()
	peers := l.states[key]
	for _, known := range peers {
		if known == state {
			l.mtx.Unlock()
			return nil, ErrStateKeyAlreadySet
		}
	}
	l.states[key] = append(peers, state)
	l.mtx.Unlock()
	for _, peer := range peers {
		if err := state.Merge(peer.MarshalBinary(), true); err != nil {
			return nil, err
		}
	}
	return &loopbackChannel{layer: l, key: key, origin: state}, nil
}

func (l *Loopback) peers(key string, origin GossipState) []GossipState {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	out := make([]GossipState, 0, len(l.states[key]))
	for _, state := range l.states[key] {
		if state != origin {
			out = append(out, state)
		}
	}
	return out
}

type loopbackChannel struct {
	layer  *Loopback
	key    string
	origin GossipState
}

func (c *loopbackChannel) Broadcast(b []byte) {
	for _, state := range c.layer.peers(c.key, c.origin) {
		state.Merge(b, false)
	}
}
