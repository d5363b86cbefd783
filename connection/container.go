package connection

import (
	"context"
	"sync"

	"github.com/vx-labs/caucus/gossip"
	"github.com/vx-labs/caucus/raftmap"
	"github.com/vx-labs/caucus/sharedmap"
	"go.uber.org/zap"
)

// Container is the set of named shared maps a conversation is made of.
type Container interface {
	ID() string
	Map(name string) (sharedmap.Map, error)
	Close() error
}

// Hub hosts in-process containers. Participants opening the same container
// id share its maps.
type Hub struct {
	mtx      sync.Mutex
	clusters map[string]*sharedmap.Cluster
}

func NewHub() *Hub {
	return &Hub{clusters: map[string]*sharedmap.Cluster{}}
}

func (h *Hub) cluster(name string) *sharedmap.Cluster {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	c, ok := h.clusters[name]
	if !ok {
		c = sharedmap.NewCluster()
		h.clusters[name] = c
	}
	return c
}

// Open returns participantID's view of the container id.
func (h *Hub) Open(id, participantID string) Container {
	return &memoryContainer{hub: h, id: id, participant: participantID}
}

type memoryContainer struct {
	hub         *Hub
	id          string
	participant string
	mtx         sync.Mutex
	replicas    []*sharedmap.Replica
}

func (c *memoryContainer) ID() string {
	return c.id
}

func (c *memoryContainer) Map(name string) (sharedmap.Map, error) {
	replica := c.hub.cluster(c.id + "/" + name).Join(c.participant)
	c.mtx.Lock()
	c.replicas = append(c.replicas, replica)
	c.mtx.Unlock()
	return replica, nil
}

func (c *memoryContainer) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, replica := range c.replicas {
		replica.Close()
	}
	c.replicas = nil
	return nil
}

type gossipContainer struct {
	id     string
	layer  gossip.Layer
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewGossipContainer hosts the container's maps as gossip states named
// "<id>/<map>" on layer. Tombstones are collected until Close.
func NewGossipContainer(id string, layer gossip.Layer, logger *zap.Logger) Container {
	ctx, cancel := context.WithCancel(context.Background())
	return &gossipContainer{id: id, layer: layer, logger: logger, ctx: ctx, cancel: cancel}
}

func (c *gossipContainer) ID() string {
	return c.id
}

func (c *gossipContainer) Map(name string) (sharedmap.Map, error) {
	state, err := gossip.NewState(c.id+"/"+name, c.layer, c.logger)
	if err != nil {
		return nil, err
	}
	go state.RunGC(c.ctx)
	return state, nil
}

func (c *gossipContainer) Close() error {
	c.cancel()
	return nil
}

type raftContainer struct {
	id string
	m  *raftmap.Map
}

// NewRaftContainer stores the container's maps in m, each under the
// "<id>/<map>/" key prefix. m is not closed with the container.
func NewRaftContainer(id string, m *raftmap.Map) Container {
	return &raftContainer{id: id, m: m}
}

func (c *raftContainer) ID() string {
	return c.id
}

func (c *raftContainer) Map(name string) (sharedmap.Map, error) {
	return sharedmap.Namespace(c.m, c.id+"/"+name+"/"), nil
}

func (c *raftContainer) Close() error {
	return nil
}
